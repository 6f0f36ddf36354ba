package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// PiperConfig holds configuration for the Piper synthesizer.
type PiperConfig struct {
	Binary string
	// Model is the .onnx voice file. Its .onnx.json or .json sibling is
	// passed as the model config when present.
	Model       string
	Speaker     string
	LengthScale float64
	SampleRate  int
	Timeout     time.Duration
}

// Piper runs a fresh piper process per utterance with the text preset on
// stdin and raw PCM read from stdout.
type Piper struct {
	binary      string
	model       string
	modelConfig string
	speaker     string
	lengthScale float64
	sampleRate  int
	timeout     time.Duration
}

// NewPiper creates a Piper synthesizer.
func NewPiper(cfg PiperConfig) (*Piper, error) {
	if cfg.Model == "" {
		return nil, errors.New("piper model path is required")
	}
	if cfg.Binary == "" {
		cfg.Binary = "piper"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 22050
	}
	if cfg.LengthScale <= 0 {
		cfg.LengthScale = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	p := &Piper{
		binary:      cfg.Binary,
		model:       cfg.Model,
		speaker:     cfg.Speaker,
		lengthScale: cfg.LengthScale,
		sampleRate:  cfg.SampleRate,
		timeout:     cfg.Timeout,
	}
	for _, c := range []string{
		cfg.Model + ".json",
		strings.TrimSuffix(cfg.Model, filepath.Ext(cfg.Model)) + ".json",
	} {
		if _, err := os.Stat(c); err == nil {
			p.modelConfig = c
			break
		}
	}
	return p, nil
}

func (p *Piper) Name() string    { return "piper" }
func (p *Piper) SampleRate() int { return p.sampleRate }

// Voice returns the model file name and speaker.
func (p *Piper) Voice() string {
	v := filepath.Base(p.model)
	if p.speaker != "" {
		v += "#" + p.speaker
	}
	return v
}

// Validate checks that the binary and the model exist.
func (p *Piper) Validate(context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("piper binary not found: %w", err)
	}
	if _, err := os.Stat(p.model); err != nil {
		return fmt.Errorf("piper model not accessible: %w", err)
	}
	return nil
}

// Synthesize implements speech.Synthesizer.
func (p *Piper) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text cannot be empty")
	}
	return run(ctx, p.timeout, strings.NewReader(text), p.binary, p.args()...)
}

func (p *Piper) args() []string {
	args := []string{
		"--model", p.model,
		"--output-raw",
		"--length-scale", strconv.FormatFloat(p.lengthScale, 'f', 2, 64),
	}
	if p.modelConfig != "" {
		args = append(args, "--config", p.modelConfig)
	}
	if p.speaker != "" {
		args = append(args, "--speaker", p.speaker)
	}
	return args
}
