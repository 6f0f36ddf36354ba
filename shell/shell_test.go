package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/config"
	"github.com/fheroes2/gameshell/speech"
)

// TestHelperProcess is not a real test. It stands in for the game engine and
// the toolset when re-executed by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: -- <role> <exit code> [announcements...]")
		os.Exit(2)
	}
	role, code := args[1], args[2]

	switch role {
	case "engine":
		fd, err := strconv.Atoi(os.Getenv(AnnounceFDEnv))
		if err != nil {
			fmt.Fprintln(os.Stderr, "no announce fd")
			os.Exit(2)
		}
		pipe := os.NewFile(uintptr(fd), "announce")
		for _, line := range args[3:] {
			fmt.Fprintln(pipe, line)
		}
		_ = pipe.Close()
		fmt.Fprint(os.Stdout, "engine ran in "+os.Getenv(ExternalDirEnv))
	case "toolset":
		fmt.Fprint(os.Stdout, "toolset ran")
	}
	n, _ := strconv.Atoi(code)
	os.Exit(n)
}

type recorder struct {
	mu       sync.Mutex
	said     []string
	shutdown bool
}

func (r *recorder) Init(context.Context) error { return nil }
func (r *recorder) SetPitch(float64)           {}

func (r *recorder) Speak(text string, _ speech.Mode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, text)
	return nil
}

func (r *recorder) Shutdown() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shutdown = true
	return nil
}

func (r *recorder) Said() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.said...)
}

func helperCommand(role string, code int, lines ...string) config.CommandConfig {
	args := append([]string{"-test.run=TestHelperProcess", "--", role, strconv.Itoa(code)}, lines...)
	return config.CommandConfig{Command: os.Args[0], Args: args}
}

// testConfig lays out a bundle directory with game data in the maps group
// so the required-data check can be satisfied by extraction alone.
func testConfig(t *testing.T) config.Config {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("the announce pipe needs inherited file descriptors")
	}
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")

	root := t.TempDir()
	bundle := filepath.Join(root, "bundle")
	for name, body := range map[string]string{
		"assets.digest":          "v1",
		"files/lang/de.mo":       "de",
		"files/data/heroes2.agg": "agg",
		"maps/broken_bridge.mp2": "map",
	} {
		p := filepath.Join(bundle, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.Paths = config.PathsConfig{
		Bundle:      bundle,
		FilesDir:    filepath.Join(root, "files"),
		ExternalDir: filepath.Join(root, "external"),
	}
	cfg.Assets.Required = []string{"files/data/heroes2.agg"}
	cfg.Announce.StartupMessage = "ready"
	cfg.Announce.Debounce = 300 * time.Millisecond
	cfg.Engine = helperCommand("engine", 0)
	cfg.Toolset = helperCommand("toolset", 0)
	return cfg
}

func TestRunStartsEngineAndRelaysAnnouncements(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine = helperCommand("engine", 0, "Castle", "Castle", "+Gold: 500", "   ", "~Enemy hero")

	rec := &recorder{}
	var stdout bytes.Buffer
	sh := New(cfg, WithDevice(rec), WithIO(nil, &stdout, os.Stderr))

	code, err := sh.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 {
		t.Errorf("Run() = %d, want 0", code)
	}

	want := []string{"ready", "Castle", "Gold: 500", "Enemy hero"}
	got := rec.Said()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("said %q, want %q", got, want)
	}
	if !rec.shutdown {
		t.Error("speech device was not shut down")
	}
	if stdout.String() != "engine ran in "+cfg.Paths.ExternalDir {
		t.Errorf("engine stdout = %q", stdout.String())
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.FilesDir, "assets.digest")); err != nil {
		t.Errorf("assets were not synchronized: %v", err)
	}
}

func TestRunPropagatesEngineStatus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine = helperCommand("engine", 3)

	code, err := New(cfg, WithDevice(&recorder{}), WithIO(nil, &bytes.Buffer{}, os.Stderr)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 3 {
		t.Errorf("Run() = %d, want 3", code)
	}
}

func TestRunDivertsToToolsetWhenDataMissing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assets.Required = []string{"data/heroes2.agg", "anim/*.smk"}

	var stdout bytes.Buffer
	code, err := New(cfg, WithDevice(&recorder{}), WithIO(nil, &stdout, os.Stderr)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if code != 0 || stdout.String() != "toolset ran" {
		t.Errorf("Run() = %d, stdout %q; want the toolset", code, stdout.String())
	}
}

func TestRunWithoutToolset(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assets.Required = []string{"data/heroes2.agg"}
	cfg.Toolset = config.CommandConfig{}

	_, err := New(cfg, WithDevice(&recorder{})).Run(context.Background())
	if !errors.Is(err, ErrAssetsMissing) {
		t.Errorf("Run() error = %v, want ErrAssetsMissing", err)
	}
}

func TestRunContinuesAfterSyncFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Assets.Groups = []string{"files", "nosuchgroup"}

	code, err := New(cfg, WithDevice(&recorder{}), WithIO(nil, &bytes.Buffer{}, os.Stderr)).Run(context.Background())
	if err != nil || code != 0 {
		t.Fatalf("Run() = %d, %v; want the engine to run", code, err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.FilesDir, "assets.digest")); !os.IsNotExist(err) {
		t.Error("local digest written after a failed synchronization")
	}
}

func TestRunSpeechDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Speech.Engine = "none"
	cfg.Engine = helperCommand("engine", 0, "Castle")

	code, err := New(cfg, WithIO(nil, &bytes.Buffer{}, os.Stderr)).Run(context.Background())
	if err != nil || code != 0 {
		t.Errorf("Run() = %d, %v", code, err)
	}
}

func TestRunSurvivesSpeechSetupFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Speech.Engine = "piper"
	cfg.Speech.Piper.Model = ""
	cfg.Engine = helperCommand("engine", 0, "Castle")

	var ann *announce.Announcer
	var stdout bytes.Buffer
	sh := New(cfg,
		WithIO(nil, &stdout, os.Stderr),
		WithAnnouncerHook(func(a *announce.Announcer) { ann = a }))

	code, err := sh.Run(context.Background())
	if err != nil || code != 0 {
		t.Fatalf("Run() = %d, %v; want the engine to run", code, err)
	}
	if stdout.String() != "engine ran in "+cfg.Paths.ExternalDir {
		t.Errorf("engine stdout = %q", stdout.String())
	}
	if ann == nil {
		t.Fatal("announcer was not started")
	}
	if got := ann.State(); got != speech.StateFailed {
		t.Errorf("announcer state = %v, want %v", got, speech.StateFailed)
	}
}

func TestSessionID(t *testing.T) {
	a := New(config.DefaultConfig())
	b := New(config.DefaultConfig())
	if a.Session() == b.Session() || len(a.Session()) != 36 {
		t.Errorf("sessions %q and %q", a.Session(), b.Session())
	}
}

func TestNewDevice(t *testing.T) {
	tests := []struct {
		engine string
		want   string
	}{
		{"none", "speech.Disabled"},
		{"log", "*speech.LogDevice"},
		{"mock", "*speech.PCMDevice"},
		{"gtts", "*speech.PCMDevice"},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := config.DefaultConfig().Speech
			cfg.Engine = tt.engine
			cfg.Cache.Enabled = false
			dev, err := NewDevice(cfg, nil)
			if err != nil {
				t.Fatalf("NewDevice() error = %v", err)
			}
			if got := fmt.Sprintf("%T", dev); got != tt.want {
				t.Errorf("NewDevice() = %s, want %s", got, tt.want)
			}
		})
	}

	cfg := config.DefaultConfig().Speech
	cfg.Engine = "espeak"
	if _, err := NewDevice(cfg, nil); !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("NewDevice(espeak) error = %v, want ErrInvalidConfig", err)
	}
}

func TestNewSynthesizerFallback(t *testing.T) {
	cfg := config.DefaultConfig().Speech
	cfg.Engine = "mock"
	cfg.Fallback = "gtts"

	synth, err := NewSynthesizer(cfg, nil)
	if err != nil {
		t.Fatalf("NewSynthesizer() error = %v", err)
	}
	if got := fmt.Sprintf("%T", synth); got != "*engines.Fallback" {
		t.Errorf("NewSynthesizer() = %s, want *engines.Fallback", got)
	}
	if synth.Name() != "mock+gtts" {
		t.Errorf("Name() = %q", synth.Name())
	}

	cfg.Fallback = "mock"
	if synth, _ := NewSynthesizer(cfg, nil); fmt.Sprintf("%T", synth) != "*engines.Mock" {
		t.Errorf("a fallback equal to the engine should not wrap it, got %T", synth)
	}
}
