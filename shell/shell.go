// Package shell is the host side of the game: it brings the writable asset
// directories up to date, connects the accessibility announcer and then hands
// control to the game engine, or to the toolset when game data is missing.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/fheroes2/gameshell/announce"
	"github.com/fheroes2/gameshell/assets"
	"github.com/fheroes2/gameshell/config"
	"github.com/fheroes2/gameshell/speech"
)

// Environment passed to the engine and the toolset.
const (
	// AnnounceFDEnv names the file descriptor the engine writes
	// announcements to, one per line.
	AnnounceFDEnv  = "GAMESHELL_ANNOUNCE_FD"
	SessionEnv     = "GAMESHELL_SESSION"
	ExternalDirEnv = "GAMESHELL_EXTERNAL_DIR"
	FilesDirEnv    = "GAMESHELL_FILES_DIR"
)

const (
	announceFD       = 3
	lockFileName     = ".sync.lock"
	defaultReadyWait = 2 * time.Second
	pumpDrainWait    = time.Second
)

// ErrAssetsMissing is returned when required game data is absent and no
// toolset is configured to acquire it.
var ErrAssetsMissing = errors.New("required game data is missing")

// Shell runs one game session.
type Shell struct {
	cfg     config.Config
	logger  *log.Logger
	session string

	device    speech.Device
	readyWait time.Duration
	onStart   func(*announce.Announcer)
	extra     []func(*Lifecycle)

	lifecycle *Lifecycle
	announcer *announce.Announcer

	stdin          io.Reader
	stdout, stderr io.Writer
}

// Option configures a Shell.
type Option func(*Shell)

// WithLogger sets the logger. The session id is added to it.
func WithLogger(l *log.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithDevice replaces the speech device built from the configuration.
func WithDevice(d speech.Device) Option {
	return func(s *Shell) { s.device = d }
}

// WithReadyWait bounds how long Run waits for the speech device before
// starting the engine.
func WithReadyWait(d time.Duration) Option {
	return func(s *Shell) { s.readyWait = d }
}

// WithAnnouncerHook is called with the announcer once it is started, for
// example to apply configuration changes while the game runs.
func WithAnnouncerHook(fn func(*announce.Announcer)) Option {
	return func(s *Shell) { s.onStart = fn }
}

// WithHandler registers h for ev after the shell's own handlers.
func WithHandler(ev Event, name string, h Handler) Option {
	return func(s *Shell) {
		s.extra = append(s.extra, func(l *Lifecycle) { l.On(ev, name, h) })
	}
}

// WithIO sets the standard streams of the engine and the toolset.
func WithIO(stdin io.Reader, stdout, stderr io.Writer) Option {
	return func(s *Shell) {
		s.stdin, s.stdout, s.stderr = stdin, stdout, stderr
	}
}

// New creates a shell for cfg.
func New(cfg config.Config, opts ...Option) *Shell {
	s := &Shell{
		cfg:       cfg,
		logger:    log.Default(),
		session:   uuid.NewString(),
		readyWait: defaultReadyWait,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.session[:8])

	s.lifecycle = NewLifecycle(s.logger)
	s.lifecycle.On(EventCreate, "assets", s.syncOrLog)
	s.lifecycle.On(EventCreate, "speech", s.startSpeech)
	s.lifecycle.On(EventDestroy, "speech", s.stopSpeech)
	for _, register := range s.extra {
		register(s.lifecycle)
	}
	return s
}

// Session returns the session id.
func (s *Shell) Session() string {
	return s.session
}

// Synchronizer returns the asset synchronizer for the configured bundle. The
// closer releases the bundle.
func (s *Shell) Synchronizer() (*assets.Synchronizer, io.Closer, error) {
	bundle, closer, err := assets.OpenBundle(s.cfg.Paths.Bundle)
	if err != nil {
		return nil, nil, err
	}
	external := assets.NewDirStore(s.cfg.Paths.ExternalDir)
	groups := make([]assets.Group, 0, len(s.cfg.Assets.Groups))
	for _, name := range s.cfg.Assets.Groups {
		groups = append(groups, assets.Group{Name: name, Dest: external})
	}
	return assets.NewSynchronizer(bundle, assets.Options{
		Groups:     groups,
		DigestName: s.cfg.Assets.DigestName,
		DigestDest: assets.NewDirStore(s.cfg.Paths.FilesDir),
		LockPath:   filepath.Join(s.cfg.Paths.FilesDir, lockFileName),
		Logger:     s.logger,
	}), closer, nil
}

// SyncAssets extracts the bundled assets when their digest changed.
func (s *Shell) SyncAssets(ctx context.Context) (assets.Result, error) {
	sync, closer, err := s.Synchronizer()
	if err != nil {
		return assets.Result{}, err
	}
	defer closer.Close() //nolint:errcheck
	return sync.Sync(ctx)
}

// MissingAssets returns the required patterns with no match in the external
// directory.
func (s *Shell) MissingAssets() ([]string, error) {
	return assets.MissingRequired(s.cfg.Paths.ExternalDir, s.cfg.Assets.Required)
}

// Run performs a whole session and returns the exit status of the program
// that got control.
func (s *Shell) Run(ctx context.Context) (code int, err error) {
	s.logger.Info("starting session", "bundle", s.cfg.Paths.Bundle, "engine", s.cfg.Engine.Command)
	defer func() {
		if derr := s.lifecycle.Fire(context.WithoutCancel(ctx), EventDestroy); derr != nil {
			s.logger.Warn("session teardown failed", "error", derr)
		}
	}()

	if err := s.lifecycle.Fire(ctx, EventCreate); err != nil {
		return 1, err
	}

	missing, err := s.MissingAssets()
	if err != nil {
		return 1, err
	}
	if len(missing) > 0 {
		s.logger.Warn("required game data missing", "missing", missing)
		return s.runToolset(ctx, missing)
	}

	waitCtx, cancel := context.WithTimeout(ctx, s.readyWait)
	state := s.announcer.WaitReady(waitCtx)
	cancel()
	s.logger.Debug("speech state before engine start", "state", state)

	code, err = s.runEngine(ctx, s.announcer)
	if xerr := s.lifecycle.Fire(ctx, EventEngineExit); xerr != nil {
		s.logger.Warn("engine exit handlers failed", "error", xerr)
	}
	return code, err
}

// syncOrLog synchronizes the assets. A failure is logged and the session
// continues with whatever is on disk; the next launch retries.
func (s *Shell) syncOrLog(ctx context.Context) error {
	if _, err := s.SyncAssets(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Error("asset synchronization failed", "error", err)
	}
	return nil
}

func (s *Shell) startSpeech(ctx context.Context) error {
	dev := s.device
	if dev == nil {
		var err error
		if dev, err = NewDevice(s.cfg.Speech, s.logger); err != nil {
			s.logger.Error("speech unavailable, announcements disabled", "error", err)
			dev = speech.Disabled{}
		}
	}
	s.announcer = NewAnnouncer(s.cfg.Announce, dev, s.logger)
	s.announcer.Start(ctx)
	if s.onStart != nil {
		s.onStart(s.announcer)
	}
	return nil
}

func (s *Shell) stopSpeech(context.Context) error {
	if s.announcer == nil {
		return nil
	}
	return s.announcer.Close()
}

func (s *Shell) runToolset(ctx context.Context, missing []string) (int, error) {
	if s.cfg.Toolset.Command == "" {
		return 1, fmt.Errorf("%w: %v", ErrAssetsMissing, missing)
	}
	cmd := s.command(ctx, s.cfg.Toolset)
	s.logger.Info("starting toolset", "command", s.cfg.Toolset.Command)
	return exitStatus(ctx, cmd.Run())
}

func (s *Shell) runEngine(ctx context.Context, a *announce.Announcer) (int, error) {
	if s.cfg.Engine.Command == "" {
		return 1, errors.New("no engine command configured")
	}

	r, w, err := os.Pipe()
	if err != nil {
		return 1, fmt.Errorf("create announce pipe: %w", err)
	}

	cmd := s.command(ctx, s.cfg.Engine)
	cmd.ExtraFiles = []*os.File{w}
	cmd.Env = append(cmd.Env, AnnounceFDEnv+"="+strconv.Itoa(announceFD))

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return 1, fmt.Errorf("start engine: %w", err)
	}
	// The engine holds the only write end now.
	_ = w.Close()
	s.logger.Info("engine started", "pid", cmd.Process.Pid)

	pumped := make(chan error, 1)
	go func() { pumped <- announce.Pump(ctx, r, a) }()

	waitErr := cmd.Wait()

	// Processes spawned by the engine may keep the pipe open.
	select {
	case err = <-pumped:
	case <-time.After(pumpDrainWait):
		_ = r.Close()
		err = <-pumped
	}
	_ = r.Close()
	if err != nil && !errors.Is(err, os.ErrClosed) && ctx.Err() == nil {
		s.logger.Warn("announce pipe failed", "error", err)
	}
	_ = a.Flush()

	code, err := exitStatus(ctx, waitErr)
	s.logger.Info("engine exited", "status", code)
	return code, err
}

func (s *Shell) command(ctx context.Context, c config.CommandConfig) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Command, c.Args...) //nolint:gosec
	cmd.Stdin, cmd.Stdout, cmd.Stderr = s.stdin, s.stdout, s.stderr
	cmd.Env = append(os.Environ(),
		SessionEnv+"="+s.session,
		ExternalDirEnv+"="+s.cfg.Paths.ExternalDir,
		FilesDirEnv+"="+s.cfg.Paths.FilesDir,
	)
	return cmd
}

// exitStatus maps a Wait error to the child's exit status. A non-zero status
// is not an error of the shell.
func exitStatus(ctx context.Context, err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return 1, ctx.Err()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 1, err
}
