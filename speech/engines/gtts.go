package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// GTTSConfig holds configuration for the gTTS synthesizer.
type GTTSConfig struct {
	Binary   string // gtts-cli
	FFmpeg   string
	Language string
	Slow     bool
	// RequestsPerMinute throttles calls to Google to avoid being blocked.
	RequestsPerMinute int
	SampleRate        int
	Timeout           time.Duration
}

// GTTS synthesizes through gtts-cli (MP3) and converts with ffmpeg to PCM.
type GTTS struct {
	binary     string
	ffmpeg     string
	language   string
	slow       bool
	sampleRate int
	timeout    time.Duration
	limiter    *rate.Limiter
}

// NewGTTS creates a gTTS synthesizer.
func NewGTTS(cfg GTTSConfig) *GTTS {
	if cfg.Binary == "" {
		cfg.Binary = "gtts-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 50
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &GTTS{
		binary:     cfg.Binary,
		ffmpeg:     cfg.FFmpeg,
		language:   cfg.Language,
		slow:       cfg.Slow,
		sampleRate: cfg.SampleRate,
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
}

func (g *GTTS) Name() string    { return "gtts" }
func (g *GTTS) Voice() string   { return g.language }
func (g *GTTS) SampleRate() int { return g.sampleRate }

// Validate checks that both helper binaries are installed.
func (g *GTTS) Validate(context.Context) error {
	var errs []error
	for _, bin := range []string{g.binary, g.ffmpeg} {
		if _, err := exec.LookPath(bin); err != nil {
			errs = append(errs, fmt.Errorf("%s not found: %w", bin, err))
		}
	}
	return errors.Join(errs...)
}

// Synthesize implements speech.Synthesizer.
func (g *GTTS) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}

	args := []string{"--lang", g.language, "--output", "-"}
	if g.slow {
		args = append(args, "--slow")
	}
	// "-" makes gtts-cli read the text from stdin.
	args = append(args, "-")
	mp3, err := run(ctx, g.timeout, strings.NewReader(text), g.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("MP3 generation failed: %w", err)
	}

	pcm, err := run(ctx, g.timeout, bytes.NewReader(mp3), g.ffmpeg,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(g.sampleRate),
		"-ac", "1",
		"pipe:1")
	if err != nil {
		return nil, fmt.Errorf("MP3 to PCM conversion failed: %w", err)
	}
	return pcm, nil
}
