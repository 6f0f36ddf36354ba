//go:build !nocgo
// +build !nocgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

const (
	pollInterval = 10 * time.Millisecond
	bufferSize   = 100 * time.Millisecond
	initRetries  = 3
	retryDelay   = 150 * time.Millisecond
)

// oto allows a single context per process.
var (
	otoOnce   sync.Once
	otoCtx    *oto.Context
	otoFormat Format
	otoErr    error
)

func otoContext(format Format) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoFormat = format
		for i := 0; i < initRetries; i++ {
			if i > 0 {
				log.Debug("retrying audio context initialization", "attempt", i+1)
				time.Sleep(retryDelay)
			}
			ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
				SampleRate:   format.SampleRate,
				ChannelCount: format.Channels,
				Format:       oto.FormatSignedInt16LE,
				BufferSize:   bufferSize,
			})
			if err != nil {
				otoErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
				continue
			}
			<-ready
			otoCtx, otoErr = ctx, nil
			return
		}
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if format != otoFormat {
		return nil, fmt.Errorf("audio context already opened at %d Hz/%d ch",
			otoFormat.SampleRate, otoFormat.Channels)
	}
	return otoCtx, nil
}

// OtoPlayer plays PCM through the shared oto context.
type OtoPlayer struct {
	ctx    *oto.Context
	format Format
	volume float64

	mu      sync.Mutex
	current *oto.Player
	stop    chan struct{}
	closed  atomic.Bool
}

// NewOtoPlayer opens the audio device for the given format.
func NewOtoPlayer(format Format, volume float64) (*OtoPlayer, error) {
	ctx, err := otoContext(format)
	if err != nil {
		return nil, err
	}
	return &OtoPlayer{ctx: ctx, format: format, volume: volume}, nil
}

// Play implements Player.
func (p *OtoPlayer) Play(ctx context.Context, pcm []byte) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if len(pcm) == 0 {
		return nil
	}

	// The reader must own its bytes for the whole playback.
	data := make([]byte, len(pcm))
	copy(data, pcm)

	player := p.ctx.NewPlayer(bytes.NewReader(data))
	player.SetVolume(p.volume)
	stop := make(chan struct{})

	p.mu.Lock()
	if p.current != nil {
		p.stopLocked()
	}
	p.current, p.stop = player, stop
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.current == player {
			p.current, p.stop = nil, nil
		}
		p.mu.Unlock()
		_ = player.Close()
	}()

	player.Play()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.C:
			if !player.IsPlaying() {
				return player.Err()
			}
		}
	}
}

// Stop implements Player.
func (p *OtoPlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *OtoPlayer) stopLocked() {
	if p.current == nil {
		return
	}
	p.current.Pause()
	close(p.stop)
	p.current, p.stop = nil, nil
}

// IsPlaying implements Player.
func (p *OtoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil && p.current.IsPlaying()
}

// Close stops playback. The shared context stays open for the process.
func (p *OtoPlayer) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	p.Stop()
	return nil
}
