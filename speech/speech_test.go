package speech

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fheroes2/gameshell/internal/audio"
	"github.com/fheroes2/gameshell/internal/cache"
	"github.com/fheroes2/gameshell/speech/engines"
)

func TestStateMachine(t *testing.T) {
	tests := []struct {
		name  string
		steps []State
		want  []bool
		final State
	}{
		{"success", []State{StateInitializing, StateReady}, []bool{true, true}, StateReady},
		{"failure", []State{StateInitializing, StateFailed}, []bool{true, true}, StateFailed},
		{"skip initializing", []State{StateReady}, []bool{false}, StateUninitialized},
		{"no way back", []State{StateInitializing, StateReady, StateUninitialized}, []bool{true, true, false}, StateReady},
		{"failed is terminal", []State{StateInitializing, StateFailed, StateReady}, []bool{true, true, false}, StateFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for i, s := range tt.steps {
				if got := sm.Transition(s); got != tt.want[i] {
					t.Errorf("Transition(%s) = %v, want %v", s, got, tt.want[i])
				}
			}
			if sm.Current() != tt.final {
				t.Errorf("Current() = %s, want %s", sm.Current(), tt.final)
			}
		})
	}
}

func TestStateMachineOnEnter(t *testing.T) {
	sm := NewStateMachine()
	var entered []State
	sm.OnEnter(StateReady, func() { entered = append(entered, StateReady) })
	sm.Transition(StateInitializing)
	sm.Transition(StateReady)
	if len(entered) != 1 {
		t.Errorf("OnEnter(ready) ran %d times", len(entered))
	}
	if !sm.Current().Terminal() {
		t.Error("ready should be terminal")
	}
}

func pcmOf(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func TestShiftPitch(t *testing.T) {
	in := pcmOf(0, 100, 200, 300, 400)

	if got := ShiftPitch(in, 1); &got[0] != &in[0] {
		t.Error("factor 1 should return the input")
	}
	if got := ShiftPitch(in, 0); &got[0] != &in[0] {
		t.Error("factor 0 should return the input")
	}

	low := ShiftPitch(in, 0.5)
	// Half pitch doubles the length, interpolating between samples.
	want := pcmOf(0, 50, 100, 150, 200, 250, 300, 350, 400)
	if string(low) != string(want) {
		t.Errorf("ShiftPitch(0.5) = %v, want %v", low, want)
	}

	high := ShiftPitch(in, 2)
	if string(high) != string(pcmOf(0, 200, 400)) {
		t.Errorf("ShiftPitch(2) = %v", high)
	}
}

type deviceFixture struct {
	dev    *PCMDevice
	synth  *engines.Mock
	player *audio.MockPlayer
}

func newDeviceFixture(t *testing.T, slow bool) *deviceFixture {
	t.Helper()
	synth := engines.NewMock(1000)
	player := audio.NewMockPlayer()
	if slow {
		// 15ms per rune of real time.
		player.Format = audio.Format{SampleRate: 1000, Channels: 1}
	}
	mgr, err := cache.NewManager(cache.Config{MemoryCapacity: 1 << 20}, nil)
	if err != nil {
		t.Fatal(err)
	}
	dev := NewPCMDevice(synth, player, DeviceOptions{Cache: mgr})
	t.Cleanup(func() { _ = dev.Shutdown() })
	return &deviceFixture{dev: dev, synth: synth, player: player}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestPCMDeviceRequiresInit(t *testing.T) {
	f := newDeviceFixture(t, false)
	if err := f.dev.Speak("hello", ModeInterrupt); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Speak() error = %v, want ErrNotInitialized", err)
	}
}

func TestPCMDeviceSpeaksInOrder(t *testing.T) {
	f := newDeviceFixture(t, false)
	if err := f.dev.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, text := range []string{"one", "two", "three"} {
		if err := f.dev.Speak(text, ModeEnqueue); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "three utterances", func() bool { return len(f.player.Played()) == 3 })

	calls := f.synth.Calls()
	if len(calls) != 3 || calls[0] != "one" || calls[2] != "three" {
		t.Errorf("synthesized %v", calls)
	}
}

func TestPCMDeviceCachesAudio(t *testing.T) {
	f := newDeviceFixture(t, false)
	_ = f.dev.Init(context.Background())
	_ = f.dev.Speak("Goblin", ModeEnqueue)
	waitFor(t, "first playback", func() bool { return len(f.player.Played()) == 1 })
	_ = f.dev.Speak("Goblin", ModeEnqueue)
	waitFor(t, "second playback", func() bool { return len(f.player.Played()) == 2 })

	if n := len(f.synth.Calls()); n != 1 {
		t.Errorf("synthesized %d times, want 1", n)
	}
}

func TestPCMDeviceAppliesPitch(t *testing.T) {
	f := newDeviceFixture(t, false)
	_ = f.dev.Init(context.Background())

	_ = f.dev.Speak("ab", ModeEnqueue)
	f.dev.SetPitch(0.5)
	_ = f.dev.Speak("ab", ModeEnqueue)
	waitFor(t, "two playbacks", func() bool { return len(f.player.Played()) == 2 })

	played := f.player.Played()
	if len(played[1]) <= len(played[0]) {
		t.Errorf("low pitch audio (%d bytes) should be longer than normal (%d bytes)", len(played[1]), len(played[0]))
	}
}

func TestPCMDeviceInterruptFlushesQueue(t *testing.T) {
	f := newDeviceFixture(t, true)
	_ = f.dev.Init(context.Background())

	// Roughly 600ms of audio each.
	long := "a very long announcement text...."
	_ = f.dev.Speak(long+"1", ModeEnqueue)
	waitFor(t, "first playback", func() bool { return f.player.IsPlaying() })
	_ = f.dev.Speak(long+"2", ModeEnqueue)
	_ = f.dev.Speak("Danger", ModeInterrupt)

	waitFor(t, "interrupting playback", func() bool {
		p := f.player.Played()
		return len(p) == 2
	})
	waitFor(t, "idle", func() bool { return !f.player.IsPlaying() })

	for _, c := range f.synth.Calls() {
		if c == long+"2" {
			t.Error("queued utterance was spoken after an interrupt")
		}
	}
}

func TestPCMDeviceValidateFailure(t *testing.T) {
	player := audio.NewMockPlayer()
	dev := NewPCMDevice(failingSynth{engines.NewMock(0)}, player, DeviceOptions{})
	if err := dev.Init(context.Background()); err == nil {
		t.Error("Init() succeeded with a failing validator")
	}
	if err := dev.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestPCMDeviceShutdown(t *testing.T) {
	f := newDeviceFixture(t, false)
	_ = f.dev.Init(context.Background())
	if err := f.dev.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := f.dev.Speak("late", ModeInterrupt); !errors.Is(err, ErrShutdown) {
		t.Errorf("Speak() error = %v, want ErrShutdown", err)
	}
	if err := f.player.Play(context.Background(), []byte{0, 0}); !errors.Is(err, audio.ErrClosed) {
		t.Error("Shutdown() did not close the player")
	}
}

type failingSynth struct{ *engines.Mock }

func (failingSynth) Validate(context.Context) error { return errors.New("no voice") }

func TestDisabledDevice(t *testing.T) {
	var d Disabled
	if err := d.Init(context.Background()); !errors.Is(err, ErrDisabled) {
		t.Errorf("Init() error = %v, want ErrDisabled", err)
	}
}

func TestPCMDeviceConcurrentSpeak(t *testing.T) {
	f := newDeviceFixture(t, false)
	_ = f.dev.Init(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.dev.Speak("x", ModeEnqueue)
		}()
	}
	wg.Wait()
	waitFor(t, "all playbacks", func() bool { return len(f.player.Played()) == 8 })
}

func TestOpenPCMDevice(t *testing.T) {
	var gotFormat audio.Format
	player := audio.NewMockPlayer()
	dev := OpenPCMDevice(engines.NewMock(16000), func(f audio.Format) (audio.Player, error) {
		gotFormat = f
		return player, nil
	}, DeviceOptions{})
	defer dev.Shutdown() //nolint:errcheck

	if err := dev.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if gotFormat != (audio.Format{SampleRate: 16000, Channels: 1}) {
		t.Errorf("opened %+v", gotFormat)
	}
	_ = dev.Speak("hi", ModeInterrupt)
	waitFor(t, "playback", func() bool { return len(player.Played()) == 1 })
}

func TestOpenPCMDeviceNoAudio(t *testing.T) {
	dev := OpenPCMDevice(engines.NewMock(0), func(audio.Format) (audio.Player, error) {
		return nil, audio.ErrUnavailable
	}, DeviceOptions{})
	if err := dev.Init(context.Background()); !errors.Is(err, audio.ErrUnavailable) {
		t.Errorf("Init() error = %v, want ErrUnavailable", err)
	}
	if err := dev.Shutdown(); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}
