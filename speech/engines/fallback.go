package engines

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
)

const defaultMaxFailures = 3

// Synthesizer is the method set every engine in this package implements.
type Synthesizer interface {
	Name() string
	Voice() string
	SampleRate() int
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Fallback wraps a primary synthesizer and switches to a secondary one when
// the primary cannot be validated or fails maxFailures times in a row. The
// switch is permanent for the life of the value.
type Fallback struct {
	primary, secondary Synthesizer
	maxFailures        int
	logger             *log.Logger

	mu            sync.Mutex
	failures      int
	usingFallback bool
}

// NewFallback creates a fallback synthesizer. Both synthesizers must produce
// the same sample rate.
func NewFallback(primary, secondary Synthesizer, maxFailures int, logger *log.Logger) (*Fallback, error) {
	if primary.SampleRate() != secondary.SampleRate() {
		return nil, fmt.Errorf("sample rates differ: %s %d Hz, %s %d Hz",
			primary.Name(), primary.SampleRate(), secondary.Name(), secondary.SampleRate())
	}
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Fallback{
		primary:     primary,
		secondary:   secondary,
		maxFailures: maxFailures,
		logger:      logger.WithPrefix("speech"),
	}, nil
}

// Name returns both engine names. Audio from either engine is cached under
// it, which keeps the key stable across a switch.
func (f *Fallback) Name() string {
	return f.primary.Name() + "+" + f.secondary.Name()
}

func (f *Fallback) Voice() string {
	return f.primary.Voice() + "+" + f.secondary.Voice()
}

func (f *Fallback) SampleRate() int { return f.primary.SampleRate() }

// UsingFallback reports whether the secondary synthesizer took over.
func (f *Fallback) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

// Validate succeeds when either synthesizer is usable.
func (f *Fallback) Validate(ctx context.Context) error {
	perr := validate(ctx, f.primary)
	if perr == nil {
		return nil
	}
	if serr := validate(ctx, f.secondary); serr != nil {
		return errors.Join(perr, serr)
	}
	f.mu.Lock()
	f.usingFallback = true
	f.mu.Unlock()
	f.logger.Warn("primary speech engine unusable, using fallback",
		"primary", f.primary.Name(), "fallback", f.secondary.Name(), "error", perr)
	return nil
}

func validate(ctx context.Context, s Synthesizer) error {
	if v, ok := s.(interface{ Validate(context.Context) error }); ok {
		if err := v.Validate(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

// Synthesize uses the active synthesizer. The call that reaches the failure
// limit is retried on the secondary one.
func (f *Fallback) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.mu.Lock()
	using := f.usingFallback
	f.mu.Unlock()
	if using {
		return f.secondary.Synthesize(ctx, text)
	}

	pcm, err := f.primary.Synthesize(ctx, text)
	if err == nil {
		f.mu.Lock()
		if f.failures > 0 {
			f.logger.Info("primary speech engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return pcm, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.mu.Lock()
	f.failures++
	n := f.failures
	if n >= f.maxFailures {
		f.usingFallback = true
	}
	f.mu.Unlock()

	f.logger.Warn("primary speech engine failed", "attempt", n, "max", f.maxFailures, "error", err)
	if n < f.maxFailures {
		return nil, err
	}
	f.logger.Warn("switching to fallback speech engine", "fallback", f.secondary.Name())
	return f.secondary.Synthesize(ctx, text)
}

// Close closes both synthesizers when they are io.Closers.
func (f *Fallback) Close() error {
	var errs []error
	for _, s := range []Synthesizer{f.primary, f.secondary} {
		if c, ok := s.(io.Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
