package ui

import (
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/speech"
)

const ellipsis = "…"

type entry struct {
	at        time.Time
	directive announce.Directive
}

type history struct {
	entries []entry
	limit   int
}

func (h *history) add(e entry) {
	h.entries = append(h.entries, e)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0], h.entries[over:]...)
	}
}

func (h *history) clear() {
	h.entries = h.entries[:0]
}

// render draws one line per entry, cut to width.
func (h *history) render(width int, timestamps bool) string {
	var b strings.Builder
	for i, e := range h.entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(e.line(width, timestamps))
	}
	return b.String()
}

func (e entry) line(width int, timestamps bool) string {
	var prefix, marker string
	if timestamps {
		prefix = e.at.Format("15:04:05") + " "
	}
	switch {
	case e.directive.LowPitch:
		marker = "~ "
	case e.directive.Mode == speech.ModeEnqueue:
		marker = "+ "
	default:
		marker = "  "
	}

	text := e.directive.Text
	if width > 0 {
		avail := width - runewidth.StringWidth(prefix+marker)
		if avail < 1 {
			avail = 1
		}
		text = truncate.StringWithTail(text, uint(avail), ellipsis) //nolint:gosec
	}

	switch {
	case e.directive.LowPitch:
		text = lowPitchStyle(text)
		marker = lowPitchStyle(marker)
	case e.directive.Mode == speech.ModeEnqueue:
		marker = enqueueStyle(marker)
	}
	return timeStyle(prefix) + marker + text
}
