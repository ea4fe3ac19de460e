// dimd dims the display backlight (and optionally the keyboard
// backlight) when the user goes idle and restores it on activity. With
// ambient light enabled it also follows a light sensor and picks
// scene-appropriate brightness levels.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/fang"
	"github.com/jezek/xgb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/taigrr/dimd/ambient"
	"github.com/taigrr/dimd/backlight"
	"github.com/taigrr/dimd/dbusctl"
	"github.com/taigrr/dimd/engine"
	"github.com/taigrr/dimd/idle"
)

var version = "dev"

var (
	useAmbient    bool
	brightenSteps int
	debug         bool
	dimKeyboard   bool
	noScreen      bool
	dimPercent    int
	dimSteps      int
	dimTimeout    int
)

func main() {
	cmd := &cobra.Command{
		Use:   "dimd",
		Short: "Idle backlight dimming daemon",
		Long: `dimd watches the X server's IDLETIME counter and gradually dims the
display backlight when the user goes idle, restoring it on activity.
It can also turn the keyboard backlight off while idle, and follow an
ambient light sensor to pick scene-appropriate brightness levels.

Send SIGUSR1 to force an immediate dim and SIGUSR2 to force an
immediate brighten; the same requests are available on the session bus
as org.taigrr.Dimd. A second SIGINT/SIGTERM exits immediately without
restoring brightness.`,
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVarP(&useAmbient, "ambient", "a", false,
		"follow the ambient light sensor")
	cmd.Flags().IntVarP(&brightenSteps, "brighten-steps", "b", engine.DefaultBrightenSteps,
		"steps when brightening")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"debug output")
	cmd.Flags().BoolVarP(&dimKeyboard, "keyboard", "k", false,
		"also dim the keyboard backlight")
	cmd.Flags().BoolVarP(&noScreen, "no-screen", "n", false,
		"don't dim the screen")
	cmd.Flags().IntVarP(&dimPercent, "percent", "p", engine.DefaultDimPercent,
		"screen brightness percentage when dimmed")
	cmd.Flags().IntVarP(&dimSteps, "steps", "s", engine.DefaultDimSteps,
		"steps when dimming")
	cmd.Flags().IntVarP(&dimTimeout, "timeout", "t", int(engine.DefaultDimTimeout/time.Second),
		"idle seconds before dimming")

	if err := fang.Execute(context.Background(), cmd); err != nil {
		os.Exit(1)
	}
}

func run() error {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	cfg := engine.Config{
		DimTimeout:      time.Duration(dimTimeout) * time.Second,
		DimPercent:      dimPercent,
		DimSteps:        dimSteps,
		BrightenSteps:   brightenSteps,
		DimScreen:       !noScreen,
		DimKeyboard:     dimKeyboard,
		UseAmbientLight: useAmbient,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "dimd: %v\n", err)
		os.Exit(2)
	}

	conn, err := xgb.NewConn()
	if err != nil {
		return fmt.Errorf("can't open display: %w", err)
	}
	defer conn.Close()

	var screen backlight.Control
	if cfg.DimScreen || cfg.UseAmbientLight {
		s, err := backlight.OpenScreen(conn)
		if err != nil {
			return err
		}
		screen = s
	}

	var keyboard backlight.Control
	if cfg.DimKeyboard || cfg.UseAmbientLight {
		k, err := backlight.OpenKeyboard()
		if err != nil {
			if cfg.DimKeyboard {
				return fmt.Errorf("keyboard backlight: %w", err)
			}
			// ambient-only: adjust what exists, skip what doesn't
			log.Debug().Err(err).Msg("no keyboard backlight, screen only")
		} else {
			keyboard = k
			defer k.Close()
		}
	}

	var sensor ambient.Sensor
	if cfg.UseAmbientLight {
		sensor, err = ambient.Open()
		if err != nil {
			return fmt.Errorf("ambient light: %w", err)
		}
		defer sensor.Close()
	}

	watcher, err := idle.Open(conn)
	if err != nil {
		return err
	}
	defer watcher.Close()

	ctrl := engine.NewController()

	// Signal handlers only raise requests; all device work happens on
	// the engine loop.
	sigc := make(chan os.Signal, 4)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2)
	go func() {
		for sig := range sigc {
			switch sig {
			case syscall.SIGUSR1:
				ctrl.Raise(engine.RequestDim)
			case syscall.SIGUSR2:
				ctrl.Raise(engine.RequestBrighten)
			default:
				ctrl.Raise(engine.RequestExit)
			}
		}
	}()

	if closeBus, err := dbusctl.Export(ctrl); err != nil {
		log.Warn().Err(err).Msg("bus control interface unavailable")
	} else {
		defer closeBus()
	}

	log.Info().Int("percent", cfg.DimPercent).
		Dur("timeout", cfg.DimTimeout).
		Bool("keyboard", cfg.DimKeyboard).
		Bool("ambient", cfg.UseAmbientLight).
		Msg("dimming when idle")

	return engine.New(cfg, screen, keyboard, sensor, watcher, ctrl).Run()
}
