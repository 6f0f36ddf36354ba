package ui

import "time"

// Config contains console-specific configuration.
type Config struct {
	// HistorySize bounds the announcements kept on screen.
	HistorySize int `env:"GAMESHELL_CONSOLE_HISTORY" envDefault:"200"`
	// RefreshInterval is how often announcer state and counters are polled.
	RefreshInterval time.Duration `env:"GAMESHELL_CONSOLE_REFRESH" envDefault:"250ms"`
	EnableMouse     bool
	// ShowTimestamps prefixes history lines with the time they were sent.
	ShowTimestamps bool
}

func (c Config) withDefaults() Config {
	if c.HistorySize <= 0 {
		c.HistorySize = 200
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = 250 * time.Millisecond
	}
	return c
}
