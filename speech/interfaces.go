package speech

import (
	"context"
	"fmt"
)

// Mode decides what happens to speech that is already playing or queued.
type Mode int

const (
	// ModeInterrupt flushes queued speech and cuts the current utterance.
	ModeInterrupt Mode = iota
	// ModeEnqueue speaks after everything already queued.
	ModeEnqueue
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeInterrupt:
		return "interrupt"
	case ModeEnqueue:
		return "enqueue"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Device is a speech output. Calls come from a single goroutine.
type Device interface {
	// Init prepares the device. It may take a while.
	Init(ctx context.Context) error
	// SetPitch sets the pitch for subsequent Speak calls, 1.0 being normal.
	SetPitch(pitch float64)
	// Speak submits text without waiting for it to be spoken.
	Speak(text string, mode Mode) error
	Shutdown() error
}

// Synthesizer converts text into mono signed 16-bit little endian PCM.
type Synthesizer interface {
	Name() string
	// Voice identifies the voice so cached audio is not shared between voices.
	Voice() string
	SampleRate() int
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Validator is implemented by synthesizers that can check their setup.
type Validator interface {
	Validate(ctx context.Context) error
}
