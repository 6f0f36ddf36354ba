package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Env holds settings that only come from the process environment.
type Env struct {
	LogFile    string `env:"GAMESHELL_LOGFILE"`
	ConfigHome string `env:"GAMESHELL_CONFIG_HOME"`
	Debug      bool   `env:"GAMESHELL_DEBUG" envDefault:"false"`
}

// LoadEnv loads the optional dotenv files and parses Env. Missing dotenv
// files are ignored.
func LoadEnv(dotenv ...string) (Env, error) {
	for _, path := range dotenv {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Env{}, fmt.Errorf("unable to load %s: %w", path, err)
		}
	}
	e, err := env.ParseAs[Env]()
	if err != nil {
		return Env{}, fmt.Errorf("unable to parse environment: %w", err)
	}
	return e, nil
}

// Load builds a Config from the viper instance, applies GAMESHELL_*
// environment overrides and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("log_level") {
		cfg.LogLevel = v.GetString("log_level")
	}

	// Paths
	if v.IsSet("paths.bundle") {
		cfg.Paths.Bundle = v.GetString("paths.bundle")
	}
	if v.IsSet("paths.files_dir") {
		cfg.Paths.FilesDir = v.GetString("paths.files_dir")
	}
	if v.IsSet("paths.external_dir") {
		cfg.Paths.ExternalDir = v.GetString("paths.external_dir")
	}

	// Assets
	if v.IsSet("assets.groups") {
		cfg.Assets.Groups = v.GetStringSlice("assets.groups")
	}
	if v.IsSet("assets.digest_name") {
		cfg.Assets.DigestName = v.GetString("assets.digest_name")
	}
	if v.IsSet("assets.required") {
		cfg.Assets.Required = v.GetStringSlice("assets.required")
	}

	cfg.Toolset = loadCommand(v, "toolset", cfg.Toolset)
	cfg.Engine = loadCommand(v, "engine", cfg.Engine)
	cfg.Announce = loadAnnounceConfig(v, cfg.Announce)
	cfg.Speech = loadSpeechConfig(v, cfg.Speech)

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to apply environment overrides: %w", err)
	}
	if err := expandPaths(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// expandPaths resolves a leading ~ in every configured filesystem path.
func expandPaths(cfg *Config) error {
	for key, p := range map[string]*string{
		"paths.bundle":       &cfg.Paths.Bundle,
		"paths.files_dir":    &cfg.Paths.FilesDir,
		"paths.external_dir": &cfg.Paths.ExternalDir,
		"speech.piper.model": &cfg.Speech.Piper.Model,
		"speech.cache.dir":   &cfg.Speech.Cache.Dir,
	} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err) //nolint:errorlint
		}
		*p = expanded
	}
	return nil
}

func loadCommand(v *viper.Viper, key string, cfg CommandConfig) CommandConfig {
	if v.IsSet(key + ".command") {
		cfg.Command = v.GetString(key + ".command")
	}
	if v.IsSet(key + ".args") {
		cfg.Args = v.GetStringSlice(key + ".args")
	}
	return cfg
}

func loadAnnounceConfig(v *viper.Viper, cfg AnnounceConfig) AnnounceConfig {
	if v.IsSet("announce.debounce") {
		cfg.Debounce = v.GetDuration("announce.debounce")
	}
	if v.IsSet("announce.low_pitch") {
		cfg.LowPitch = v.GetFloat64("announce.low_pitch")
	}
	if v.IsSet("announce.queue_size") {
		cfg.QueueSize = v.GetInt("announce.queue_size")
	}
	if v.IsSet("announce.startup_message") {
		cfg.StartupMessage = v.GetString("announce.startup_message")
	}
	return cfg
}

func loadSpeechConfig(v *viper.Viper, cfg SpeechConfig) SpeechConfig {
	if v.IsSet("speech.engine") {
		cfg.Engine = v.GetString("speech.engine")
	}
	if v.IsSet("speech.fallback") {
		cfg.Fallback = v.GetString("speech.fallback")
	}
	if v.IsSet("speech.fallback_after") {
		cfg.FallbackAfter = v.GetInt("speech.fallback_after")
	}
	if v.IsSet("speech.sample_rate") {
		cfg.SampleRate = v.GetInt("speech.sample_rate")
	}
	if v.IsSet("speech.volume") {
		cfg.Volume = v.GetFloat64("speech.volume")
	}

	// Piper
	if v.IsSet("speech.piper.binary") {
		cfg.Piper.Binary = v.GetString("speech.piper.binary")
	}
	if v.IsSet("speech.piper.model") {
		cfg.Piper.Model = v.GetString("speech.piper.model")
	}
	if v.IsSet("speech.piper.speaker") {
		cfg.Piper.Speaker = v.GetString("speech.piper.speaker")
	}
	if v.IsSet("speech.piper.length_scale") {
		cfg.Piper.LengthScale = v.GetFloat64("speech.piper.length_scale")
	}
	if v.IsSet("speech.piper.timeout") {
		cfg.Piper.Timeout = v.GetDuration("speech.piper.timeout")
	}

	// gTTS
	if v.IsSet("speech.gtts.binary") {
		cfg.GTTS.Binary = v.GetString("speech.gtts.binary")
	}
	if v.IsSet("speech.gtts.ffmpeg") {
		cfg.GTTS.FFmpeg = v.GetString("speech.gtts.ffmpeg")
	}
	if v.IsSet("speech.gtts.language") {
		cfg.GTTS.Language = v.GetString("speech.gtts.language")
	}
	if v.IsSet("speech.gtts.slow") {
		cfg.GTTS.Slow = v.GetBool("speech.gtts.slow")
	}
	if v.IsSet("speech.gtts.requests_per_minute") {
		cfg.GTTS.RequestsPerMinute = v.GetInt("speech.gtts.requests_per_minute")
	}
	if v.IsSet("speech.gtts.timeout") {
		cfg.GTTS.Timeout = v.GetDuration("speech.gtts.timeout")
	}

	// Cache
	if v.IsSet("speech.cache.enabled") {
		cfg.Cache.Enabled = v.GetBool("speech.cache.enabled")
	}
	if v.IsSet("speech.cache.dir") {
		cfg.Cache.Dir = v.GetString("speech.cache.dir")
	}
	if v.IsSet("speech.cache.memory_size") {
		cfg.Cache.MemorySize = v.GetInt64("speech.cache.memory_size")
	}
	if v.IsSet("speech.cache.disk_size") {
		cfg.Cache.DiskSize = v.GetInt64("speech.cache.disk_size")
	}
	if v.IsSet("speech.cache.compression_level") {
		cfg.Cache.CompressionLevel = v.GetInt("speech.cache.compression_level")
	}

	return cfg
}

// SetDefaults registers the default values with the viper instance so that
// they show up in the generated config file and in `config show`.
func SetDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("paths.bundle", d.Paths.Bundle)
	v.SetDefault("paths.files_dir", d.Paths.FilesDir)
	v.SetDefault("paths.external_dir", d.Paths.ExternalDir)

	v.SetDefault("assets.groups", d.Assets.Groups)
	v.SetDefault("assets.digest_name", d.Assets.DigestName)
	v.SetDefault("assets.required", d.Assets.Required)

	v.SetDefault("toolset.command", d.Toolset.Command)
	v.SetDefault("engine.command", d.Engine.Command)

	v.SetDefault("announce.debounce", d.Announce.Debounce.String())
	v.SetDefault("announce.low_pitch", d.Announce.LowPitch)
	v.SetDefault("announce.queue_size", d.Announce.QueueSize)
	v.SetDefault("announce.startup_message", d.Announce.StartupMessage)

	v.SetDefault("speech.engine", d.Speech.Engine)
	v.SetDefault("speech.fallback", d.Speech.Fallback)
	v.SetDefault("speech.fallback_after", d.Speech.FallbackAfter)
	v.SetDefault("speech.sample_rate", d.Speech.SampleRate)
	v.SetDefault("speech.volume", d.Speech.Volume)
	v.SetDefault("speech.piper.binary", d.Speech.Piper.Binary)
	v.SetDefault("speech.piper.model", d.Speech.Piper.Model)
	v.SetDefault("speech.piper.length_scale", d.Speech.Piper.LengthScale)
	v.SetDefault("speech.piper.timeout", d.Speech.Piper.Timeout.String())
	v.SetDefault("speech.gtts.binary", d.Speech.GTTS.Binary)
	v.SetDefault("speech.gtts.ffmpeg", d.Speech.GTTS.FFmpeg)
	v.SetDefault("speech.gtts.language", d.Speech.GTTS.Language)
	v.SetDefault("speech.gtts.slow", d.Speech.GTTS.Slow)
	v.SetDefault("speech.gtts.requests_per_minute", d.Speech.GTTS.RequestsPerMinute)
	v.SetDefault("speech.gtts.timeout", d.Speech.GTTS.Timeout.String())
	v.SetDefault("speech.cache.enabled", d.Speech.Cache.Enabled)
	v.SetDefault("speech.cache.dir", d.Speech.Cache.Dir)
	v.SetDefault("speech.cache.memory_size", d.Speech.Cache.MemorySize)
	v.SetDefault("speech.cache.disk_size", d.Speech.Cache.DiskSize)
	v.SetDefault("speech.cache.compression_level", d.Speech.Cache.CompressionLevel)
}
