package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fheroes2/gameshell/assets"
	"github.com/fheroes2/gameshell/config"
	"github.com/fheroes2/gameshell/internal/cache"
)

var (
	statusReport bool

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the state of assets, game data and the speech cache",
		Long: paragraph(fmt.Sprintf("\n%s what a launch would do: whether the assets need extracting, which required game data is missing and how full the speech cache is.",
			keyword("Show"))),
		Example: paragraph("gameshell status\ngameshell status --report"),
		Args:    cobra.NoArgs,
		RunE:    runStatus,
	}
)

func init() {
	statusCmd.Flags().BoolVar(&statusReport, "report", false, "render a markdown report")
}

type groupStatus struct {
	Name  string
	Files int
	Dirs  int
	Bytes int64
	Err   error
}

type status struct {
	Bundle        string
	BundleErr     error
	NeedsSync     bool
	Groups        []groupStatus
	Missing       []string
	Required      []string
	SpeechEngine  string
	Cache         *cache.Stats
	CacheDisabled bool
}

// collectStatus inspects the configured directories without changing them.
func collectStatus(c config.Config) status {
	st := status{
		Bundle:       c.Paths.Bundle,
		Required:     c.Assets.Required,
		SpeechEngine: c.Speech.Engine,
	}

	bundle, closer, err := assets.OpenBundle(c.Paths.Bundle)
	if err != nil {
		st.BundleErr = err
	} else {
		defer closer.Close() //nolint:errcheck
		st.NeedsSync = assets.DigestChanged(bundle, assets.NewDirStore(c.Paths.FilesDir), c.Assets.DigestName)
		for _, name := range c.Assets.Groups {
			g := groupStatus{Name: name}
			entries, err := assets.Walk(bundle, name)
			if err != nil {
				g.Err = err
			}
			for _, e := range entries {
				if e.Dir {
					g.Dirs++
					continue
				}
				g.Files++
				g.Bytes += e.Size
			}
			st.Groups = append(st.Groups, g)
		}
	}

	missing, err := assets.MissingRequired(c.Paths.ExternalDir, c.Assets.Required)
	if err != nil {
		missing = c.Assets.Required
	}
	st.Missing = missing

	if !c.Speech.Cache.Enabled || c.Speech.Cache.Dir == "" {
		st.CacheDisabled = true
	} else if _, err := os.Stat(c.Speech.Cache.Dir); err == nil {
		dc, err := cache.NewDiskCache(c.Speech.Cache.Dir, c.Speech.Cache.DiskSize, c.Speech.Cache.CompressionLevel)
		if err == nil {
			s := dc.Stats()
			st.Cache = &s
			_ = dc.Close()
		}
	}
	return st
}

func (st status) groupRows() [][]string {
	rows := make([][]string, 0, len(st.Groups))
	for _, g := range st.Groups {
		note := ""
		if g.Err != nil {
			note = "missing from bundle"
		}
		rows = append(rows, []string{
			g.Name,
			humanize.Comma(int64(g.Files)),
			strconv.Itoa(g.Dirs),
			humanize.Bytes(uint64(g.Bytes)), //nolint:gosec
			note,
		})
	}
	return rows
}

var groupColumns = []column{
	{Title: "Group"},
	{Title: "Files", Right: true},
	{Title: "Dirs", Right: true},
	{Title: "Size", Right: true},
	{},
}

// groupTotals sums the groups for the table footer. A single group needs no
// total.
func (st status) groupTotals() []string {
	if len(st.Groups) < 2 {
		return nil
	}
	var files, dirs int
	var size int64
	for _, g := range st.Groups {
		files += g.Files
		dirs += g.Dirs
		size += g.Bytes
	}
	return []string{
		"Total",
		humanize.Comma(int64(files)),
		strconv.Itoa(dirs),
		humanize.Bytes(uint64(size)), //nolint:gosec
	}
}

func (st status) syncLine() string {
	switch {
	case st.BundleErr != nil:
		return "bundle unavailable: " + st.BundleErr.Error()
	case st.NeedsSync:
		return "assets will be extracted on the next launch"
	default:
		return "assets are up to date"
	}
}

func (st status) cacheLine() string {
	switch {
	case st.CacheDisabled:
		return "speech cache disabled"
	case st.Cache == nil:
		return "speech cache empty"
	default:
		return fmt.Sprintf("speech cache: %s in %s of %s",
			humanize.Comma(int64(st.Cache.Items)),
			humanize.Bytes(uint64(st.Cache.Size)),     //nolint:gosec
			humanize.Bytes(uint64(st.Cache.Capacity))) //nolint:gosec
	}
}

// text renders the status as tables for the terminal.
func (st status) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", keyword("bundle"), st.Bundle)
	fmt.Fprintln(&b, st.syncLine())
	if len(st.Groups) > 0 {
		b.WriteString(renderTable(groupColumns, st.groupRows(), st.groupTotals()))
		b.WriteByte('\n')
	}

	if len(st.Missing) == 0 {
		fmt.Fprintln(&b, "required game data present")
	} else {
		fmt.Fprintln(&b, warning("missing game data: "+strings.Join(st.Missing, ", ")))
		fmt.Fprintln(&b, faint("the toolset runs instead of the game until it is provided"))
	}

	fmt.Fprintf(&b, "%s %s\n", keyword("speech"), st.SpeechEngine)
	fmt.Fprintln(&b, st.cacheLine())
	return b.String()
}

// markdown renders the status as a markdown document.
func (st status) markdown() string {
	var b strings.Builder
	b.WriteString("# gameshell status\n\n")

	b.WriteString("## Assets\n\n")
	fmt.Fprintf(&b, "Bundle `%s`: %s.\n\n", st.Bundle, st.syncLine())
	if len(st.Groups) > 0 {
		b.WriteString("| Group | Files | Dirs | Size |\n|---|---:|---:|---:|\n")
		for _, r := range st.groupRows() {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", r[0], r[1], r[2], r[3])
		}
		b.WriteByte('\n')
	}

	b.WriteString("## Game data\n\n")
	for _, p := range st.Required {
		mark := "present"
		for _, m := range st.Missing {
			if m == p {
				mark = "**missing**"
			}
		}
		fmt.Fprintf(&b, "- `%s` %s\n", p, mark)
	}
	b.WriteByte('\n')

	b.WriteString("## Speech\n\n")
	fmt.Fprintf(&b, "Engine `%s`, %s.\n", st.SpeechEngine, st.cacheLine())
	return b.String()
}

func runStatus(cmd *cobra.Command, _ []string) error {
	st := collectStatus(cfg)
	if !statusReport {
		fmt.Fprint(cmd.OutOrStdout(), st.text())
		return nil
	}

	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w < 120 { //nolint:gosec
			width = w
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(st.markdown())
	if err != nil {
		return fmt.Errorf("unable to render report: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}
