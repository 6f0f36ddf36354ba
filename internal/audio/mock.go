package audio

import (
	"context"
	"sync"
	"time"
)

// MockPlayer records played buffers instead of producing sound. With a
// non-zero Format each Play lasts as long as the real audio would, scaled by
// Speed; otherwise Play returns immediately.
type MockPlayer struct {
	Format Format
	Speed  float64
	Err    error

	mu      sync.Mutex
	played  [][]byte
	stopped int
	stop    chan struct{}
	closed  bool
}

// NewMockPlayer creates a mock that plays instantly.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{Speed: 1}
}

// Play implements Player.
func (m *MockPlayer) Play(ctx context.Context, pcm []byte) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.Err != nil {
		m.mu.Unlock()
		return m.Err
	}
	m.played = append(m.played, append([]byte(nil), pcm...))
	stop := make(chan struct{})
	m.stop = stop
	d := m.Format.Duration(pcm)
	if m.Speed > 0 {
		d = time.Duration(float64(d) / m.Speed)
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.stop == stop {
			m.stop = nil
		}
		m.mu.Unlock()
	}()

	if d == 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop implements Player.
func (m *MockPlayer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
		m.stopped++
	}
}

// IsPlaying implements Player.
func (m *MockPlayer) IsPlaying() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stop != nil
}

// Close implements Player.
func (m *MockPlayer) Close() error {
	m.Stop()
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Played returns copies of every buffer passed to Play.
func (m *MockPlayer) Played() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.played))
	copy(out, m.played)
	return out
}

// Stopped returns how many playbacks were cut short by Stop.
func (m *MockPlayer) Stopped() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
