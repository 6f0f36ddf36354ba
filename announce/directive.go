package announce

import (
	"strings"

	"github.com/fheroes2/gameshell/speech"
)

const (
	prefixEnqueue  = '+'
	prefixLowPitch = '~'
)

// Directive is an announcement with its prefix resolved.
type Directive struct {
	Text     string
	Mode     speech.Mode
	LowPitch bool
}

// Parse resolves the one-character prefix of raw: '+' enqueues, '~' lowers
// the pitch and interrupts, anything else interrupts at normal pitch. The
// prefix is stripped and the remaining text trimmed. An empty Text means
// there is nothing to say.
func Parse(raw string) Directive {
	d := Directive{Mode: speech.ModeInterrupt}
	text := strings.TrimSpace(raw)
	if text == "" {
		return d
	}
	switch text[0] {
	case prefixEnqueue:
		d.Mode = speech.ModeEnqueue
		text = text[1:]
	case prefixLowPitch:
		d.LowPitch = true
		text = text[1:]
	}
	d.Text = strings.TrimSpace(text)
	return d
}
