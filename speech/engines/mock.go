package engines

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"time"
	"unicode/utf8"
)

// Mock produces a short tone per rune so that announcements are audible
// without a real voice installed. It records what it was asked to say.
type Mock struct {
	sampleRate int
	perRune    time.Duration
	err        error

	mu    sync.Mutex
	calls []string
}

// NewMock creates a mock synthesizer.
func NewMock(sampleRate int) *Mock {
	if sampleRate == 0 {
		sampleRate = 22050
	}
	return &Mock{sampleRate: sampleRate, perRune: 15 * time.Millisecond}
}

// FailWith makes every following Synthesize call return err.
func (m *Mock) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *Mock) Name() string    { return "mock" }
func (m *Mock) Voice() string   { return "tone" }
func (m *Mock) SampleRate() int { return m.sampleRate }

// Synthesize returns a 440 Hz tone lasting 15ms per rune.
func (m *Mock) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.calls = append(m.calls, text)
	err := m.err
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	d := time.Duration(utf8.RuneCountInString(text)) * m.perRune
	samples := int(int64(m.sampleRate) * int64(d) / int64(time.Second))
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := 0.3 * math.Sin(2*math.Pi*440*float64(i)/float64(m.sampleRate))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*math.MaxInt16)))
	}
	return pcm, nil
}

// Calls returns the texts passed to Synthesize.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
