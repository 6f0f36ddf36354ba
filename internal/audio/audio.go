package audio

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when no audio device can be opened.
	ErrUnavailable = errors.New("audio device unavailable")

	// ErrClosed is returned by Play after Close.
	ErrClosed = errors.New("player is closed")
)

// Format describes the PCM stream handed to a Player.
type Format struct {
	SampleRate int
	Channels   int
}

// BytesPerSecond returns the byte rate of signed 16-bit PCM in this format.
func (f Format) BytesPerSecond() int {
	return f.SampleRate * f.Channels * 2
}

// Duration returns how long pcm takes to play in this format.
func (f Format) Duration(pcm []byte) time.Duration {
	bps := f.BytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(len(pcm)) * time.Second / time.Duration(bps)
}

// Player plays one PCM buffer at a time.
type Player interface {
	// Play blocks until pcm finished playing, Stop was called or ctx ended.
	// A stopped playback returns nil.
	Play(ctx context.Context, pcm []byte) error
	// Stop cuts the current playback short. It is a no-op when idle.
	Stop()
	// IsPlaying reports whether a buffer is playing.
	IsPlaying() bool
	Close() error
}
