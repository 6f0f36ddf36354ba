package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fheroes2/gameshell/assets"
)

var (
	digestGroups []string
	digestOutput string

	digestCmd = &cobra.Command{
		Use:   "digest [BUNDLE]",
		Short: "Compute the digest of an asset bundle",
		Long: paragraph(fmt.Sprintf("\n%s the fingerprint of the asset groups in a bundle. Packagers ship it as the bundle's digest blob so launches can tell whether extraction is needed. Without --output it is written into the bundle directory.",
			keyword("Compute"))),
		Example: paragraph("gameshell digest ./assets\ngameshell digest game.apk --output -"),
		Args:    cobra.MaximumNArgs(1),
		RunE:    runDigest,
	}
)

func init() {
	digestCmd.Flags().StringSliceVar(&digestGroups, "groups", nil, "bundle roots to include (default from assets.groups)")
	digestCmd.Flags().StringVarP(&digestOutput, "output", "o", "", "file to write, or - for stdout")
}

func runDigest(cmd *cobra.Command, args []string) error {
	path := cfg.Paths.Bundle
	if len(args) == 1 {
		path = args[0]
	}
	groups := digestGroups
	if len(groups) == 0 {
		groups = cfg.Assets.Groups
	}

	bundle, closer, err := assets.OpenBundle(path)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	sum, err := assets.ComputeDigest(bundle, groups)
	if err != nil {
		return err
	}

	out := digestOutput
	if out == "" {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			out = "-"
		} else {
			out = filepath.Join(path, filepath.FromSlash(cfg.Assets.DigestName))
		}
	}
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(sum)
		return err
	}
	if err := os.WriteFile(out, sum, 0o644); err != nil { //nolint:gosec
		return fmt.Errorf("unable to write digest: %w", err)
	}
	log.Info("wrote digest", "path", out, "groups", groups)
	return nil
}
