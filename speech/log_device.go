package speech

import (
	"context"

	"github.com/charmbracelet/log"
)

// LogDevice writes announcements to a logger instead of speaking them.
type LogDevice struct {
	logger *log.Logger
	pitch  float64
}

// NewLogDevice creates a LogDevice. A nil logger means log.Default().
func NewLogDevice(logger *log.Logger) *LogDevice {
	if logger == nil {
		logger = log.Default()
	}
	return &LogDevice{logger: logger.WithPrefix("speech"), pitch: 1}
}

func (d *LogDevice) Init(context.Context) error { return nil }
func (d *LogDevice) SetPitch(pitch float64)     { d.pitch = pitch }
func (d *LogDevice) Shutdown() error            { return nil }

func (d *LogDevice) Speak(text string, mode Mode) error {
	d.logger.Info("announce", "text", text, "mode", mode, "pitch", d.pitch)
	return nil
}

// Disabled is a Device whose Init always fails with ErrDisabled.
type Disabled struct{}

func (Disabled) Init(context.Context) error { return ErrDisabled }
func (Disabled) SetPitch(float64)           {}
func (Disabled) Speak(string, Mode) error   { return ErrDisabled }
func (Disabled) Shutdown() error            { return nil }
