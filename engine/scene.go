package engine

// Scene maps an illuminance bracket to brightness targets.
type Scene struct {
	Name     string
	MinLux   float64
	Screen   float64
	Keyboard float64
}

// scenes is ordered by ascending minimum lux. Selection scans from the
// brightest entry downward and keeps the first whose threshold is met,
// so at exact boundary values the brighter entry wins.
var scenes = []Scene{
	{"pitch black", 0, 30, 100},
	{"dim indoors", 11, 40, 75},
	{"normal indoors", 301, 60, 50},
	{"bright indoors", 1001, 70, 25},
	{"dim outdoors", 5001, 80, 20},
	{"cloudy outdoors", 10001, 90, 0},
	{"direct sunlight", 30001, 100, 0},
}

// luxHysteresis is the minimum change between consecutive readings
// before the scene is re-evaluated, debouncing sensor jitter.
const luxHysteresis = 10.0

// sceneFor resolves a lux reading to its scene profile.
func sceneFor(lux float64) Scene {
	for i := len(scenes) - 1; i >= 0; i-- {
		if scenes[i].MinLux <= lux {
			return scenes[i]
		}
	}
	return scenes[0]
}
