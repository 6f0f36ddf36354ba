package assets

import (
	"errors"
	"fmt"
)

var (
	// ErrGroupNotFound is returned when a configured group is absent from the bundle.
	ErrGroupNotFound = errors.New("asset group not found in bundle")

	// ErrNoBundledDigest is returned when the bundle carries no digest blob.
	ErrNoBundledDigest = errors.New("bundle has no digest")

	// ErrSyncLocked is returned when another process holds the sync lock.
	ErrSyncLocked = errors.New("asset sync is locked by another process")

	// ErrUnsupportedBundle is returned for bundle paths that are neither a
	// directory nor a zip archive.
	ErrUnsupportedBundle = errors.New("unsupported bundle format")

	// ErrUnsupportedEntry is returned for bundle entries that are neither
	// directories nor regular files, even after following symlinks.
	ErrUnsupportedEntry = errors.New("unsupported bundle entry")
)

// SyncError describes the step of a synchronization that failed.
type SyncError struct {
	Err    error  // The underlying error
	Group  string // Asset group being extracted
	Path   string // Asset path being processed, if any
	Action string // What was being done: list, mkdir, copy, digest
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s (group %s): %v", e.Action, e.Path, e.Group, e.Err)
	}
	return fmt.Sprintf("%s group %s: %v", e.Action, e.Group, e.Err)
}

// Unwrap returns the underlying error.
func (e *SyncError) Unwrap() error {
	return e.Err
}
