package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/fheroes2/gameshell/internal/audio"
	"github.com/fheroes2/gameshell/internal/cache"
)

const maxTextSize = 5000

// PCMDevice speaks by synthesizing PCM and playing it. Speak only queues;
// a worker goroutine started by Init does the synthesis and playback in
// order. Interrupting drops the queue and cuts the utterance in flight.
type PCMDevice struct {
	synth  Synthesizer
	player audio.Player
	open   PlayerOpener
	cache  *cache.Manager
	logger *log.Logger

	mu       sync.Mutex
	pitch    float64
	queue    []utterance
	gen      uint64
	cancelIn context.CancelFunc // cancels the utterance in flight
	started  bool
	stopped  bool

	wake   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

type utterance struct {
	text  string
	pitch float64
	gen   uint64
}

// DeviceOptions configures a PCMDevice.
type DeviceOptions struct {
	// Cache, when set, is consulted before synthesizing.
	Cache  *cache.Manager
	Logger *log.Logger
}

// PlayerOpener opens the audio output for the synthesizer's format.
type PlayerOpener func(audio.Format) (audio.Player, error)

// NewPCMDevice creates a device. It takes ownership of player and cache.
func NewPCMDevice(synth Synthesizer, player audio.Player, opts DeviceOptions) *PCMDevice {
	d := newPCMDevice(synth, opts)
	d.player = player
	return d
}

// OpenPCMDevice creates a device that opens its player during Init, so a
// missing audio device surfaces as an initialization failure.
func OpenPCMDevice(synth Synthesizer, open PlayerOpener, opts DeviceOptions) *PCMDevice {
	d := newPCMDevice(synth, opts)
	d.open = open
	return d
}

func newPCMDevice(synth Synthesizer, opts DeviceOptions) *PCMDevice {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &PCMDevice{
		synth:  synth,
		cache:  opts.Cache,
		logger: logger.WithPrefix("speech"),
		pitch:  1,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Init validates the synthesizer and starts the worker.
func (d *PCMDevice) Init(ctx context.Context) error {
	if v, ok := d.synth.(Validator); ok {
		if err := v.Validate(ctx); err != nil {
			return fmt.Errorf("%s: %w", d.synth.Name(), err)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrShutdown
	}
	if d.started {
		return nil
	}
	if d.player == nil {
		format := audio.Format{SampleRate: d.synth.SampleRate(), Channels: 1}
		player, err := d.open(format)
		if err != nil {
			return fmt.Errorf("open audio output: %w", err)
		}
		d.player = player
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.started = true
	go d.run(workerCtx)

	d.logger.Debug("speech device ready", "engine", d.synth.Name(), "voice", d.synth.Voice())
	return nil
}

// SetPitch implements Device.
func (d *PCMDevice) SetPitch(pitch float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pitch = pitch
}

// Speak implements Device.
func (d *PCMDevice) Speak(text string, mode Mode) error {
	if text == "" {
		return ErrEmptyText
	}
	if len(text) > maxTextSize {
		return fmt.Errorf("%w: %d bytes", ErrTextTooLong, len(text))
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.stopped:
		return ErrShutdown
	case !d.started:
		return ErrNotInitialized
	}

	if mode == ModeInterrupt {
		d.gen++
		d.queue = d.queue[:0]
		if d.cancelIn != nil {
			d.cancelIn()
			d.cancelIn = nil
		}
	}
	d.queue = append(d.queue, utterance{text: text, pitch: d.pitch, gen: d.gen})

	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Shutdown stops the worker and releases the player, the cache and the
// synthesizer when it is an io.Closer.
func (d *PCMDevice) Shutdown() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	started := d.started
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Unlock()

	if started {
		<-d.done
	}

	var errs []error
	if d.player != nil {
		if err := d.player.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close player: %w", err))
		}
	}
	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if c, ok := d.synth.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close synthesizer: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (d *PCMDevice) run(ctx context.Context) {
	defer close(d.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		}
		for {
			u, uctx, cancel, ok := d.next(ctx)
			if !ok {
				break
			}
			d.speak(uctx, u)
			cancel()
			d.finish(u)
		}
	}
}

// next pops the next utterance and gives it a context that an interrupt
// cancels.
func (d *PCMDevice) next(ctx context.Context) (utterance, context.Context, context.CancelFunc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 || ctx.Err() != nil {
		return utterance{}, nil, nil, false
	}
	u := d.queue[0]
	d.queue = d.queue[1:]
	uctx, cancel := context.WithCancel(ctx)
	d.cancelIn = cancel
	return u, uctx, cancel, true
}

func (d *PCMDevice) finish(u utterance) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen == u.gen {
		d.cancelIn = nil
	}
}

func (d *PCMDevice) speak(ctx context.Context, u utterance) {
	start := time.Now()
	pcm, err := d.synthesize(ctx, u.text)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Error("synthesis failed", "text", u.text, "error", err)
		}
		return
	}
	pcm = ShiftPitch(pcm, u.pitch)

	d.logger.Debug("speaking", "text", u.text, "pitch", u.pitch,
		"latency", time.Since(start).Round(time.Millisecond))
	if err := d.player.Play(ctx, pcm); err != nil && ctx.Err() == nil {
		d.logger.Error("playback failed", "error", err)
	}
}

func (d *PCMDevice) synthesize(ctx context.Context, text string) ([]byte, error) {
	key := cache.Key(d.synth.Name(), d.synth.Voice(), strconv.Itoa(d.synth.SampleRate()), text)
	if d.cache != nil {
		if pcm, level, ok := d.cache.Get(key); ok {
			d.logger.Debug("cache hit", "level", level)
			return pcm, nil
		}
	}

	pcm, err := d.synth.Synthesize(ctx, text)
	if err != nil {
		return nil, err
	}
	if d.cache != nil {
		if err := d.cache.Put(key, pcm); err != nil {
			d.logger.Warn("failed to cache audio", "error", err)
		}
	}
	return pcm, nil
}
