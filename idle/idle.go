// Package idle watches the X server's IDLETIME counter and reports
// threshold crossings: the user has been idle long enough, or input
// arrived and the counter reset.
package idle

// Kind identifies which watch fired.
type Kind int

const (
	// IdleReached means the idle counter climbed past the armed timeout.
	IdleReached Kind = iota
	// ActivityResumed means the idle counter decreased, i.e. user input.
	ActivityResumed
)

func (k Kind) String() string {
	switch k {
	case IdleReached:
		return "idle-reached"
	case ActivityResumed:
		return "activity-resumed"
	default:
		return "unknown"
	}
}

// Event is one watch firing. IdleMs carries the counter value in
// milliseconds at the moment the watch triggered.
type Event struct {
	Kind   Kind
	IdleMs int64
}
