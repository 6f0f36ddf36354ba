package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/shell"
)

var (
	announceHold time.Duration

	announceCmd = &cobra.Command{
		Use:   "announce [TEXT...]",
		Short: "Speak announcements from arguments or stdin",
		Long: paragraph(fmt.Sprintf("\n%s each argument, or each line of stdin, the way the game's announcements are spoken. Prefix a line with + to queue it behind the current one and with ~ for a lower pitch.",
			keyword("Speak"))),
		Example: paragraph("gameshell announce \"+Gold: 500\" \"~Enemy hero\"\necho Castle | gameshell announce --speech log"),
		RunE:    runAnnounce,
	}
)

func init() {
	announceCmd.Flags().DurationVar(&announceHold, "hold", 2*time.Second, "time to keep speaking after the last announcement")
}

func startAnnouncer(ctx context.Context) (*announce.Announcer, error) {
	dev, err := shell.NewDevice(cfg.Speech, log.Default())
	if err != nil {
		return nil, err
	}
	a := shell.NewAnnouncer(cfg.Announce, dev, log.Default())
	a.Start(ctx)
	return a, nil
}

func runAnnounce(_ *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := startAnnouncer(ctx)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
	state := a.WaitReady(waitCtx)
	waitCancel()
	log.Debug("speech state", "state", state)

	if len(args) > 0 {
		for _, arg := range args {
			a.Announce(arg)
		}
	} else if err := announce.Pump(ctx, os.Stdin, a); err != nil && ctx.Err() == nil {
		return fmt.Errorf("unable to read announcements: %w", err)
	}
	if err := a.Flush(); err != nil {
		return err
	}

	select {
	case <-time.After(announceHold):
	case <-ctx.Done():
	}

	s := a.Stats()
	log.Info("done", "spoken", s.Spoken, "repeated", s.Deduplicated, "not_ready", s.NotReady, "failed", s.Failed)
	return nil
}
