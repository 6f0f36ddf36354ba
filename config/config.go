// Package config holds the gameshell configuration model, its defaults and
// validation.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	gap "github.com/muesli/go-app-paths"
)

// AppName is used for config, data and cache directory discovery.
const AppName = "gameshell"

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// SpeechEngines lists the accepted values of speech.engine.
	SpeechEngines = []string{"piper", "gtts", "mock", "log", "none"}
)

// Config contains all gameshell configuration options.
type Config struct {
	LogLevel string `yaml:"log_level" env:"GAMESHELL_LOG_LEVEL"`

	Paths    PathsConfig    `yaml:"paths"`
	Assets   AssetsConfig   `yaml:"assets"`
	Toolset  CommandConfig  `yaml:"toolset"`
	Engine   CommandConfig  `yaml:"engine"`
	Announce AnnounceConfig `yaml:"announce"`
	Speech   SpeechConfig   `yaml:"speech"`
}

// PathsConfig locates the asset bundle and the writable destinations.
type PathsConfig struct {
	// Bundle is a directory or a zip/apk archive holding the packaged assets.
	Bundle string `yaml:"bundle" env:"GAMESHELL_BUNDLE"`
	// FilesDir receives the local digest copy.
	FilesDir string `yaml:"files_dir" env:"GAMESHELL_FILES_DIR"`
	// ExternalDir receives the extracted asset groups and the game data.
	ExternalDir string `yaml:"external_dir" env:"GAMESHELL_EXTERNAL_DIR"`
}

// AssetsConfig describes what gets extracted and what must be present.
type AssetsConfig struct {
	Groups     []string `yaml:"groups"`
	DigestName string   `yaml:"digest_name"`
	Required   []string `yaml:"required"`
}

// CommandConfig is an external program with its arguments.
type CommandConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// AnnounceConfig tunes the accessibility announcer.
type AnnounceConfig struct {
	Debounce       time.Duration `yaml:"debounce"`
	LowPitch       float64       `yaml:"low_pitch"`
	QueueSize      int           `yaml:"queue_size"`
	StartupMessage string        `yaml:"startup_message"`
}

// SpeechConfig selects and tunes the speech output device.
type SpeechConfig struct {
	Engine string `yaml:"engine" env:"GAMESHELL_SPEECH_ENGINE"`
	// Fallback, when set, takes over after FallbackAfter consecutive
	// failures of Engine or when Engine cannot be set up.
	Fallback      string      `yaml:"fallback"`
	FallbackAfter int         `yaml:"fallback_after"`
	SampleRate    int         `yaml:"sample_rate"`
	Volume        float64     `yaml:"volume"`
	Piper         PiperConfig `yaml:"piper"`
	GTTS          GTTSConfig  `yaml:"gtts"`
	Cache         CacheConfig `yaml:"cache"`
}

// PiperConfig contains Piper engine settings.
type PiperConfig struct {
	Binary      string        `yaml:"binary"`
	Model       string        `yaml:"model"`
	Speaker     string        `yaml:"speaker"`
	LengthScale float64       `yaml:"length_scale"`
	Timeout     time.Duration `yaml:"timeout"`
}

// GTTSConfig contains gTTS engine settings.
type GTTSConfig struct {
	Binary            string        `yaml:"binary"`
	FFmpeg            string        `yaml:"ffmpeg"`
	Language          string        `yaml:"language"`
	Slow              bool          `yaml:"slow"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// CacheConfig sizes the synthesized audio cache.
type CacheConfig struct {
	Enabled          bool   `yaml:"enabled"`
	Dir              string `yaml:"dir"`
	MemorySize       int64  `yaml:"memory_size"`
	DiskSize         int64  `yaml:"disk_size"`
	CompressionLevel int    `yaml:"compression_level"`
}

// DefaultConfig returns a Config with sensible defaults. Directory defaults
// come from the user's data and cache locations.
func DefaultConfig() Config {
	scope := gap.NewScope(gap.User, AppName)

	filesDir, err := scope.DataPath("files")
	if err != nil {
		filesDir = filepath.Join(".", "files")
	}
	externalDir, err := scope.DataPath("external")
	if err != nil {
		externalDir = filepath.Join(".", "external")
	}
	var cacheDir string
	if dir, err := scope.CacheDir(); err == nil {
		cacheDir = filepath.Join(dir, "speech")
	}

	return Config{
		LogLevel: "info",
		Paths: PathsConfig{
			Bundle:      "assets",
			FilesDir:    filesDir,
			ExternalDir: externalDir,
		},
		Assets: AssetsConfig{
			Groups:     []string{"files", "maps"},
			DigestName: "assets.digest",
			Required:   []string{"data/heroes2.agg"},
		},
		Toolset: CommandConfig{Command: "fheroes2-toolset"},
		Engine:  CommandConfig{Command: "fheroes2"},
		Announce: AnnounceConfig{
			Debounce:       300 * time.Millisecond,
			LowPitch:       0.8,
			QueueSize:      64,
			StartupMessage: "Accessibility patch connected. F-Heroes 2 is ready.",
		},
		Speech: SpeechConfig{
			Engine:        "piper",
			FallbackAfter: 3,
			SampleRate:    22050,
			Volume:        1.0,
			Piper: PiperConfig{
				Binary:      "piper",
				Model:       "en_US-lessac-medium.onnx",
				LengthScale: 1.0,
				Timeout:     10 * time.Second,
			},
			GTTS: GTTSConfig{
				Binary:            "gtts-cli",
				FFmpeg:            "ffmpeg",
				Language:          "en",
				RequestsPerMinute: 50,
				Timeout:           15 * time.Second,
			},
			Cache: CacheConfig{
				Enabled:          true,
				Dir:              cacheDir,
				MemorySize:       16 << 20,
				DiskSize:         128 << 20,
				CompressionLevel: 3,
			},
		},
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if len(c.Assets.Groups) == 0 {
		return fmt.Errorf("%w: assets.groups must not be empty", ErrInvalidConfig)
	}
	if c.Assets.DigestName == "" {
		return fmt.Errorf("%w: assets.digest_name must not be empty", ErrInvalidConfig)
	}
	if c.Paths.FilesDir == "" || c.Paths.ExternalDir == "" {
		return fmt.Errorf("%w: paths.files_dir and paths.external_dir are required", ErrInvalidConfig)
	}
	if c.Announce.Debounce < 0 || c.Announce.Debounce > 10*time.Second {
		return fmt.Errorf("%w: announce.debounce must be between 0s and 10s, got %s", ErrInvalidConfig, c.Announce.Debounce)
	}
	if c.Announce.LowPitch <= 0 || c.Announce.LowPitch > 1 {
		return fmt.Errorf("%w: announce.low_pitch must be in (0, 1], got %.2f", ErrInvalidConfig, c.Announce.LowPitch)
	}
	if c.Announce.QueueSize < 1 {
		return fmt.Errorf("%w: announce.queue_size must be positive, got %d", ErrInvalidConfig, c.Announce.QueueSize)
	}
	if !validEngine(c.Speech.Engine) {
		return fmt.Errorf("%w: unknown speech.engine %q (valid: %v)", ErrInvalidConfig, c.Speech.Engine, SpeechEngines)
	}
	switch c.Speech.Fallback {
	case "", "piper", "gtts", "mock":
	default:
		return fmt.Errorf("%w: speech.fallback must be piper, gtts or mock, got %q", ErrInvalidConfig, c.Speech.Fallback)
	}
	if c.Speech.SampleRate <= 0 {
		return fmt.Errorf("%w: speech.sample_rate must be positive, got %d", ErrInvalidConfig, c.Speech.SampleRate)
	}
	if c.Speech.Volume < 0 || c.Speech.Volume > 2 {
		return fmt.Errorf("%w: speech.volume must be between 0.0 and 2.0, got %.2f", ErrInvalidConfig, c.Speech.Volume)
	}
	if (c.Speech.Engine == "piper" || c.Speech.Fallback == "piper") && c.Speech.Piper.Model == "" {
		return fmt.Errorf("%w: speech.piper.model is required for the piper engine", ErrInvalidConfig)
	}
	if c.Speech.Piper.LengthScale <= 0 {
		return fmt.Errorf("%w: speech.piper.length_scale must be positive", ErrInvalidConfig)
	}
	if c.Speech.GTTS.RequestsPerMinute < 1 {
		return fmt.Errorf("%w: speech.gtts.requests_per_minute must be positive", ErrInvalidConfig)
	}
	return nil
}

func validEngine(name string) bool {
	for _, e := range SpeechEngines {
		if e == name {
			return true
		}
	}
	return false
}
