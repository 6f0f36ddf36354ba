package main

import (
	"fmt"
	"io"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fheroes2/gameshell/ui"
)

var (
	consoleMouse      bool
	consoleTimestamps bool

	consoleCmd = &cobra.Command{
		Use:   "console",
		Short: "Interactive announcer console",
		Long: paragraph(fmt.Sprintf("\n%s lines and hear them through the configured speech engine, with the announcer's counters on screen. Handy for tuning voices and the debounce window.",
			keyword("Type"))),
		Args: cobra.NoArgs,
		RunE: runConsole,
	}
)

func init() {
	consoleCmd.Flags().BoolVarP(&consoleMouse, "mouse", "m", false, "enable mouse wheel scrolling")
	consoleCmd.Flags().BoolVarP(&consoleTimestamps, "timestamps", "t", false, "show when each line was sent")
}

func runConsole(*cobra.Command, []string) error {
	// Read environment to get console tuning
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.EnableMouse = consoleMouse
	uiCfg.ShowTimestamps = consoleTimestamps

	// Log lines would tear the alternate screen.
	if logFile == "" {
		log.SetOutput(io.Discard)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := startAnnouncer(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	if _, err := ui.NewProgram(a, uiCfg).Run(); err != nil {
		return fmt.Errorf("unable to run console: %w", err)
	}
	return nil
}
