package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/fheroes2/gameshell/config"
)

// setupLog configures the default logger from the environment. Logs go to
// GAMESHELL_LOGFILE when set, otherwise to stderr. The returned func closes
// the log file.
func setupLog() (func() error, error) {
	e, err := config.LoadEnv(".env")
	if err != nil {
		return nil, err
	}

	var (
		out    io.Writer = os.Stderr
		closer           = func() error { return nil }
		opts             = log.Options{ReportTimestamp: true, TimeFormat: time.Kitchen}
	)
	if e.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(e.LogFile), 0o755); err != nil { //nolint:gosec
			return nil, fmt.Errorf("unable to create log directory: %w", err)
		}
		f, err := os.OpenFile(e.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
		if err != nil {
			return nil, fmt.Errorf("unable to open log file: %w", err)
		}
		out, closer = f, f.Close
		logFile = e.LogFile
		opts.TimeFormat = time.RFC3339
		opts.Formatter = log.LogfmtFormatter
	} else if !term.IsTerminal(int(os.Stderr.Fd())) { //nolint:gosec
		opts.TimeFormat = time.RFC3339
		opts.Formatter = log.LogfmtFormatter
	}

	logger := log.NewWithOptions(out, opts)
	if e.Debug {
		logger.SetLevel(log.DebugLevel)
		debugForced = true
	}
	log.SetDefault(logger)
	return closer, nil
}

var (
	// debugForced keeps GAMESHELL_DEBUG above the configured log level.
	debugForced bool
	logFile     string
)

func applyLogLevel(level string) error {
	if debugForced {
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, level)
	}
	log.SetLevel(lvl)
	return nil
}
