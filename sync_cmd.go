package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	syncCheck bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the bundled assets without starting the game",
		Long: paragraph(fmt.Sprintf("\n%s the bundled asset groups into the external directory when the bundled digest differs from the local copy.",
			keyword("Extract"))),
		Example: paragraph("gameshell sync\ngameshell sync --check"),
		Args:    cobra.NoArgs,
		RunE:    runSync,
	}
)

func init() {
	syncCmd.Flags().BoolVar(&syncCheck, "check", false, "only report whether a synchronization is needed")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	sh := newShell()
	out := cmd.OutOrStdout()

	if syncCheck {
		sync, closer, err := sh.Synchronizer()
		if err != nil {
			return err
		}
		defer closer.Close() //nolint:errcheck
		if sync.Changed() {
			fmt.Fprintln(out, keyword("assets changed")+", a synchronization is needed")
		} else {
			fmt.Fprintln(out, "assets are up to date")
		}
		return nil
	}

	res, err := sh.SyncAssets(ctx)
	if err != nil {
		return err
	}
	if res.Skipped {
		fmt.Fprintln(out, "assets are up to date")
		return nil
	}
	fmt.Fprintf(out, "extracted %s files, %s directories, %s in %s\n",
		humanize.Comma(int64(res.Files)), humanize.Comma(int64(res.Dirs)),
		humanize.Bytes(uint64(res.Bytes)), res.Duration.Round(time.Millisecond)) //nolint:gosec
	return nil
}
