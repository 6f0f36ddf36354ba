package shell

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Event is a point in a session at which registered handlers run.
type Event int

const (
	// EventCreate runs before the engine or the toolset gets control.
	EventCreate Event = iota
	// EventEngineExit runs once the engine exited.
	EventEngineExit
	// EventDestroy runs last, in reverse registration order, even when an
	// earlier stage failed.
	EventDestroy
)

func (e Event) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventEngineExit:
		return "engine-exit"
	case EventDestroy:
		return "destroy"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Handler reacts to a lifecycle event.
type Handler func(ctx context.Context) error

type namedHandler struct {
	name string
	fn   Handler
}

// Lifecycle holds the handlers of a session.
type Lifecycle struct {
	mu       sync.Mutex
	handlers map[Event][]namedHandler
	logger   *log.Logger
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle(logger *log.Logger) *Lifecycle {
	if logger == nil {
		logger = log.Default()
	}
	return &Lifecycle{
		handlers: make(map[Event][]namedHandler),
		logger:   logger,
	}
}

// On registers h for ev.
func (l *Lifecycle) On(ev Event, name string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[ev] = append(l.handlers[ev], namedHandler{name: name, fn: h})
}

// Fire runs the handlers of ev. EventCreate stops at the first failure;
// the other events run every handler and join the errors.
func (l *Lifecycle) Fire(ctx context.Context, ev Event) error {
	l.mu.Lock()
	hs := append([]namedHandler(nil), l.handlers[ev]...)
	l.mu.Unlock()

	if ev == EventDestroy {
		for i, j := 0, len(hs)-1; i < j; i, j = i+1, j-1 {
			hs[i], hs[j] = hs[j], hs[i]
		}
	}

	var errs []error
	for _, h := range hs {
		l.logger.Debug("lifecycle handler", "event", ev, "name", h.name)
		if err := h.fn(ctx); err != nil {
			err = fmt.Errorf("%s %s: %w", ev, h.name, err)
			if ev == EventCreate {
				return err
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
