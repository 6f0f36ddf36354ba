// Package announce relays short text cues from the game engine to a speech
// device. Callers on any goroutine hand raw text to Announce, which never
// blocks; a single loop goroutine owns the device and the de-duplication
// record and processes announcements in order.
package announce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/unicode/norm"

	"github.com/fheroes2/gameshell/speech"
)

const (
	defaultLowPitch  = 0.8
	defaultQueueSize = 64
	normalPitch      = 1.0
)

// ErrClosed is returned by blocking calls after Close.
var ErrClosed = errors.New("announcer is closed")

// Options configures an Announcer.
type Options struct {
	// Debounce is the window in which a repeat of the last spoken text is
	// discarded.
	Debounce time.Duration
	// LowPitch is the pitch used for '~' announcements.
	LowPitch float64
	// QueueSize bounds the announcements waiting for the loop. Announcements
	// arriving at a full queue are dropped.
	QueueSize int
	// StartupMessage is spoken once the device is ready.
	StartupMessage string

	Logger *log.Logger
	// Now replaces time.Now, for tests.
	Now func() time.Time
}

// Stats counts what happened to announcements.
type Stats struct {
	Received     int64
	Spoken       int64
	Empty        int64
	Deduplicated int64
	NotReady     int64
	Overflow     int64
	Failed       int64
}

// Announcer forwards announcements to a speech device.
type Announcer struct {
	dev    speech.Device
	state  *speech.StateMachine
	logger *log.Logger
	now    func() time.Time

	lowPitch float64
	startup  string

	inbox   chan func()
	quit    chan struct{}
	done    chan struct{}
	settled chan struct{} // closed once the device is ready or failed

	initCancel context.CancelFunc
	initWG     sync.WaitGroup
	startOnce  sync.Once
	closeOnce  sync.Once

	// Owned by the loop.
	debounce time.Duration
	lastText string
	lastAt   time.Time
	pitch    float64

	received, spoken, empty, deduped, notReady, overflow, failed atomic.Int64
}

// New creates an announcer for dev and starts its loop. The device is not
// initialized until Start.
func New(dev speech.Device, opts Options) *Announcer {
	if opts.Debounce < 0 {
		opts.Debounce = 0
	}
	if opts.LowPitch <= 0 {
		opts.LowPitch = defaultLowPitch
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	a := &Announcer{
		dev:      dev,
		state:    speech.NewStateMachine(),
		logger:   logger.WithPrefix("announce"),
		now:      opts.Now,
		lowPitch: opts.LowPitch,
		startup:  opts.StartupMessage,
		inbox:    make(chan func(), opts.QueueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		settled:  make(chan struct{}),
		debounce: opts.Debounce,
		pitch:    normalPitch,
	}
	a.state.OnEnter(speech.StateReady, func() {
		a.logger.Info("speech device ready")
		if a.startup != "" {
			a.Announce(a.startup)
		}
		close(a.settled)
	})
	a.state.OnEnter(speech.StateFailed, func() { close(a.settled) })
	go a.loop()
	return a
}

// Start initializes the device in the background. Announcements made before
// it is ready are dropped. A failed initialization silences the announcer
// for good.
func (a *Announcer) Start(ctx context.Context) {
	a.startOnce.Do(func() {
		if !a.state.Transition(speech.StateInitializing) {
			return
		}
		ctx, cancel := context.WithCancel(ctx)
		a.initCancel = cancel
		a.initWG.Add(1)
		go func() {
			defer a.initWG.Done()
			if err := a.dev.Init(ctx); err != nil {
				a.state.Transition(speech.StateFailed)
				if errors.Is(err, speech.ErrDisabled) {
					a.logger.Info("speech output disabled")
				} else {
					a.logger.Error("speech device initialization failed, announcements disabled", "error", err)
				}
				return
			}
			a.state.Transition(speech.StateReady)
		}()
	})
}

// State returns the device readiness.
func (a *Announcer) State() speech.State {
	return a.state.Current()
}

// WaitReady blocks until the device is ready or failed, or ctx is done, and
// returns the state at that point.
func (a *Announcer) WaitReady(ctx context.Context) speech.State {
	select {
	case <-a.settled:
	case <-ctx.Done():
	}
	return a.state.Current()
}

// Announce hands raw text to the loop and returns immediately.
func (a *Announcer) Announce(raw string) {
	a.received.Add(1)
	if !a.post(func() { a.handle(raw) }) {
		a.overflow.Add(1)
		a.logger.Debug("announcement dropped, queue full", "text", raw)
	}
}

// SetDebounce changes the de-duplication window.
func (a *Announcer) SetDebounce(d time.Duration) error {
	return a.send(func() {
		if d < 0 {
			d = 0
		}
		a.debounce = d
		a.logger.Debug("debounce updated", "debounce", d)
	})
}

// Flush waits until everything announced so far was processed.
func (a *Announcer) Flush() error {
	return a.send(func() {})
}

// Stats returns the announcement counters.
func (a *Announcer) Stats() Stats {
	return Stats{
		Received:     a.received.Load(),
		Spoken:       a.spoken.Load(),
		Empty:        a.empty.Load(),
		Deduplicated: a.deduped.Load(),
		NotReady:     a.notReady.Load(),
		Overflow:     a.overflow.Load(),
		Failed:       a.failed.Load(),
	}
}

// Close abandons a pending initialization, processes what is queued, shuts
// the device down and stops the loop.
func (a *Announcer) Close() error {
	var err error
	a.closeOnce.Do(func() {
		// Keeps a later Start from running and orders the initCancel read.
		a.startOnce.Do(func() {})
		if a.initCancel != nil {
			a.initCancel()
		}
		a.initWG.Wait()

		serr := a.send(func() {
			if e := a.dev.Shutdown(); e != nil {
				err = e
			}
		})
		if serr != nil && err == nil {
			err = serr
		}
		close(a.quit)
		<-a.done
	})
	return err
}

func (a *Announcer) loop() {
	defer close(a.done)
	for {
		select {
		case fn := <-a.inbox:
			fn()
		case <-a.quit:
			return
		}
	}
}

// post enqueues fn without blocking.
func (a *Announcer) post(fn func()) bool {
	select {
	case <-a.quit:
		return false
	default:
	}
	select {
	case a.inbox <- fn:
		return true
	default:
		return false
	}
}

// send enqueues fn and waits for the loop to run it.
func (a *Announcer) send(fn func()) error {
	ran := make(chan struct{})
	task := func() {
		defer close(ran)
		fn()
	}
	select {
	case a.inbox <- task:
	case <-a.quit:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-a.done:
		return ErrClosed
	}
}

// handle runs on the loop.
func (a *Announcer) handle(raw string) {
	d := Parse(raw)
	if d.Text == "" {
		a.empty.Add(1)
		return
	}

	if st := a.state.Current(); st != speech.StateReady {
		a.notReady.Add(1)
		a.logger.Debug("announcement dropped", "state", st, "text", d.Text)
		return
	}

	key := norm.NFC.String(d.Text)
	now := a.now()
	if key == a.lastText && now.Sub(a.lastAt) < a.debounce {
		a.deduped.Add(1)
		return
	}
	a.lastText, a.lastAt = key, now

	pitch := normalPitch
	if d.LowPitch {
		pitch = a.lowPitch
	}
	if pitch != a.pitch {
		a.dev.SetPitch(pitch)
		a.pitch = pitch
	}

	if err := a.dev.Speak(d.Text, d.Mode); err != nil {
		a.failed.Add(1)
		a.logger.Warn("speak failed", "text", d.Text, "error", err)
		return
	}
	a.spoken.Add(1)
	a.logger.Debug("spoken", "text", d.Text, "mode", d.Mode, "pitch", pitch)
}
