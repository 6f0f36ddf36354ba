package shell

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/config"
	"github.com/fheroes2/gameshell/internal/audio"
	"github.com/fheroes2/gameshell/internal/cache"
	"github.com/fheroes2/gameshell/speech"
	"github.com/fheroes2/gameshell/speech/engines"
)

// NewSynthesizer builds the synthesizer selected by cfg.Engine, wrapped with
// cfg.Fallback when one is configured. Engines that do not synthesize ("log",
// "none") return nil.
func NewSynthesizer(cfg config.SpeechConfig, logger *log.Logger) (speech.Synthesizer, error) {
	primary, err := newSynthesizer(cfg.Engine, cfg)
	if err != nil || primary == nil || cfg.Fallback == "" || cfg.Fallback == cfg.Engine {
		return primary, err
	}
	secondary, err := newSynthesizer(cfg.Fallback, cfg)
	if err != nil {
		return nil, err
	}
	return engines.NewFallback(primary, secondary, cfg.FallbackAfter, logger)
}

func newSynthesizer(engine string, cfg config.SpeechConfig) (speech.Synthesizer, error) {
	switch engine {
	case "piper":
		return engines.NewPiper(engines.PiperConfig{
			Binary:      cfg.Piper.Binary,
			Model:       cfg.Piper.Model,
			Speaker:     cfg.Piper.Speaker,
			LengthScale: cfg.Piper.LengthScale,
			SampleRate:  cfg.SampleRate,
			Timeout:     cfg.Piper.Timeout,
		})
	case "gtts":
		return engines.NewGTTS(engines.GTTSConfig{
			Binary:            cfg.GTTS.Binary,
			FFmpeg:            cfg.GTTS.FFmpeg,
			Language:          cfg.GTTS.Language,
			Slow:              cfg.GTTS.Slow,
			RequestsPerMinute: cfg.GTTS.RequestsPerMinute,
			SampleRate:        cfg.SampleRate,
			Timeout:           cfg.GTTS.Timeout,
		}), nil
	case "mock":
		return engines.NewMock(cfg.SampleRate), nil
	case "log", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: unknown speech engine %q", config.ErrInvalidConfig, engine)
	}
}

// NewDevice builds the speech device described by cfg. Audio output is
// opened when the device initializes.
func NewDevice(cfg config.SpeechConfig, logger *log.Logger) (speech.Device, error) {
	if logger == nil {
		logger = log.Default()
	}
	switch cfg.Engine {
	case "none":
		return speech.Disabled{}, nil
	case "log":
		return speech.NewLogDevice(logger), nil
	}

	synth, err := NewSynthesizer(cfg, logger)
	if err != nil {
		return nil, err
	}

	var mgr *cache.Manager
	if cfg.Cache.Enabled {
		mgr, err = cache.NewManager(cache.Config{
			MemoryCapacity:   cfg.Cache.MemorySize,
			DiskCapacity:     cfg.Cache.DiskSize,
			DiskPath:         cfg.Cache.Dir,
			CompressionLevel: cfg.Cache.CompressionLevel,
		}, logger)
		if err != nil {
			// Speech still works without the cache.
			logger.Warn("speech cache unavailable", "error", err)
			mgr = nil
		}
	}

	volume := cfg.Volume
	open := func(f audio.Format) (audio.Player, error) {
		p, err := audio.NewOtoPlayer(f, volume)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return speech.OpenPCMDevice(synth, open, speech.DeviceOptions{Cache: mgr, Logger: logger}), nil
}

// NewAnnouncer creates an announcer for dev. It is not started.
func NewAnnouncer(cfg config.AnnounceConfig, dev speech.Device, logger *log.Logger) *announce.Announcer {
	return announce.New(dev, announce.Options{
		Debounce:       cfg.Debounce,
		LowPitch:       cfg.LowPitch,
		QueueSize:      cfg.QueueSize,
		StartupMessage: cfg.StartupMessage,
		Logger:         logger,
	})
}
