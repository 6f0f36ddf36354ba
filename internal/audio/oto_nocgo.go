//go:build nocgo
// +build nocgo

package audio

import "context"

// OtoPlayer is a stub for builds without cgo.
type OtoPlayer struct{}

// NewOtoPlayer always fails in nocgo builds.
func NewOtoPlayer(format Format, volume float64) (*OtoPlayer, error) {
	return nil, ErrUnavailable
}

func (p *OtoPlayer) Play(ctx context.Context, pcm []byte) error { return ErrUnavailable }
func (p *OtoPlayer) Stop()                                      {}
func (p *OtoPlayer) IsPlaying() bool                            { return false }
func (p *OtoPlayer) Close() error                               { return nil }
