package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
)

const (
	defaultLockWait = 30 * time.Second
	lockRetryDelay  = 100 * time.Millisecond
)

// Group maps a bundle root onto the store it is extracted into. The group
// name is kept as the leading path element on the destination side.
type Group struct {
	Name string
	Dest Store
}

// Options configures a Synchronizer.
type Options struct {
	Groups     []Group
	DigestName string // Digest blob path inside the bundle and in DigestDest
	DigestDest Store

	// LockPath, when set, serializes synchronizations across processes.
	LockPath string
	LockWait time.Duration

	Logger *log.Logger
}

// Result summarizes one synchronization run.
type Result struct {
	Skipped  bool // Digests matched, nothing was copied
	Files    int
	Dirs     int
	Bytes    int64
	Duration time.Duration
}

// Synchronizer copies the bundled asset groups into writable storage when the
// bundled digest differs from the locally persisted one.
type Synchronizer struct {
	bundle     Bundle
	groups     []Group
	digestName string
	digestDest Store
	lockPath   string
	lockWait   time.Duration
	logger     *log.Logger
}

// NewSynchronizer creates a synchronizer for the bundle.
func NewSynchronizer(bundle Bundle, opts Options) *Synchronizer {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	wait := opts.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	return &Synchronizer{
		bundle:     bundle,
		groups:     opts.Groups,
		digestName: opts.DigestName,
		digestDest: opts.DigestDest,
		lockPath:   opts.LockPath,
		lockWait:   wait,
		logger:     logger.WithPrefix("assets"),
	}
}

// Changed reports whether the next Sync would extract.
func (s *Synchronizer) Changed() bool {
	return DigestChanged(s.bundle, s.digestDest, s.digestName)
}

// Sync brings the destination stores in line with the bundle. The local
// digest is written only after every group was extracted, so a failed or
// interrupted run leaves it stale and the next run starts over. Failures are
// returned as *SyncError and are not retried.
func (s *Synchronizer) Sync(ctx context.Context) (Result, error) {
	start := time.Now()

	if s.lockPath != "" {
		unlock, err := s.lock(ctx)
		if err != nil {
			return Result{}, err
		}
		defer unlock()
	}

	if !s.Changed() {
		s.logger.Debug("asset digest unchanged, skipping extraction")
		return Result{Skipped: true, Duration: time.Since(start)}, nil
	}

	names := make([]string, 0, len(s.groups))
	for _, g := range s.groups {
		names = append(names, g.Name)
	}
	s.logger.Info("asset digest changed, extracting", "groups", names)

	var res Result
	for _, g := range s.groups {
		if err := s.extractGroup(ctx, g, &res); err != nil {
			res.Duration = time.Since(start)
			s.logger.Error("failed to extract assets", "error", err)
			return res, err
		}
	}

	if err := s.persistDigest(); err != nil {
		res.Duration = time.Since(start)
		s.logger.Error("failed to persist asset digest", "error", err)
		return res, err
	}

	res.Duration = time.Since(start)
	s.logger.Info("assets extracted",
		"files", res.Files,
		"size", humanize.Bytes(uint64(res.Bytes)), //nolint:gosec
		"took", res.Duration.Round(time.Millisecond))
	return res, nil
}

func (s *Synchronizer) lock(ctx context.Context) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.lockPath), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create lock directory: %w", err)
	}

	fl := flock.New(s.lockPath)
	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSyncLocked, s.lockPath)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.logger.Warn("failed to release sync lock", "path", s.lockPath, "error", err)
		}
	}, nil
}

func (s *Synchronizer) extractGroup(ctx context.Context, g Group, res *Result) error {
	entries, err := Walk(s.bundle, g.Name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			err = ErrGroupNotFound
		}
		return &SyncError{Err: err, Group: g.Name, Action: "list"}
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return &SyncError{Err: err, Group: g.Name, Path: e.Path, Action: "copy"}
		}

		if e.Dir {
			if err := g.Dest.MkdirAll(e.Path); err != nil {
				return &SyncError{Err: err, Group: g.Name, Path: e.Path, Action: "mkdir"}
			}
			res.Dirs++
			continue
		}

		if parent := path.Dir(e.Path); parent != "." {
			if err := g.Dest.MkdirAll(parent); err != nil {
				return &SyncError{Err: err, Group: g.Name, Path: parent, Action: "mkdir"}
			}
		}

		n, err := copyFile(s.bundle, e.Path, g.Dest)
		if err != nil {
			return &SyncError{Err: err, Group: g.Name, Path: e.Path, Action: "copy"}
		}
		res.Files++
		res.Bytes += n
	}

	s.logger.Debug("extracted group", "group", g.Name, "entries", len(entries))
	return nil
}

func (s *Synchronizer) persistDigest() error {
	if _, err := fs.Stat(s.bundle, s.digestName); err != nil {
		return &SyncError{Err: ErrNoBundledDigest, Group: s.digestName, Action: "digest"}
	}
	if parent := path.Dir(s.digestName); parent != "." {
		if err := s.digestDest.MkdirAll(parent); err != nil {
			return &SyncError{Err: err, Group: s.digestName, Path: parent, Action: "mkdir"}
		}
	}
	if _, err := copyFile(s.bundle, s.digestName, s.digestDest); err != nil {
		return &SyncError{Err: err, Group: s.digestName, Path: s.digestName, Action: "digest"}
	}
	return nil
}

// copyFile streams name from the bundle into the same name in dst.
func copyFile(bundle Bundle, name string, dst Store) (int64, error) {
	in, err := bundle.Open(name)
	if err != nil {
		return 0, err
	}
	defer in.Close() //nolint:errcheck

	out, err := dst.Create(name)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if err != nil {
		if d, ok := out.(discarder); ok {
			_ = d.Discard()
		} else {
			_ = out.Close()
		}
		return n, err
	}
	return n, out.Close()
}
