// Package assets keeps the writable copy of the packaged game assets in step
// with the installed bundle.
package assets

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
)

// Bundle is the read-only packaged asset tree. Paths are slash separated and
// relative to the bundle root. Directory status is always taken from
// fs.DirEntry, never inferred from an empty listing.
type Bundle = fs.FS

// apkAssetsRoot is where Android packages keep their assets.
const apkAssetsRoot = "assets"

// OpenBundle opens a bundle from a directory or from a zip archive such as an
// apk. Archives that contain a top-level assets directory are rooted there.
// The returned closer must be closed once the bundle is no longer needed.
func OpenBundle(path string) (Bundle, io.Closer, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open bundle: %w", err)
	}

	if st.IsDir() {
		return os.DirFS(path), nopCloser{}, nil
	}

	if !isArchive(path) {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedBundle, path)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to open bundle archive: %w", err)
	}

	if info, err := fs.Stat(zr, apkAssetsRoot); err == nil && info.IsDir() {
		sub, err := fs.Sub(zr, apkAssetsRoot)
		if err != nil {
			_ = zr.Close()
			return nil, nil, fmt.Errorf("unable to open bundle assets: %w", err)
		}
		return sub, zr, nil
	}

	return zr, zr, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func isArchive(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range []string{".zip", ".apk", ".pk3"} {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Entry is one item found while enumerating a group.
type Entry struct {
	Path string // Slash path relative to the bundle root
	Dir  bool   // True for directories that have no children
	Size int64
}

// Walk enumerates every leaf under root, which may itself be a single file.
// Directories are reported only when empty, so that they can be recreated.
// Symlinks are followed to regular files; any other entry fails the walk
// with ErrUnsupportedEntry rather than being dropped.
func Walk(bundle Bundle, root string) ([]Entry, error) {
	var entries []Entry
	err := fs.WalkDir(bundle, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			children, err := fs.ReadDir(bundle, p)
			if err != nil {
				return err
			}
			if len(children) == 0 {
				entries = append(entries, Entry{Path: p, Dir: true})
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			// Symlinked assets are copied as the file they point to.
			target, err := fs.Stat(bundle, p)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrUnsupportedEntry, p, err) //nolint:errorlint
			}
			if !target.Mode().IsRegular() {
				return fmt.Errorf("%w: %s (%s)", ErrUnsupportedEntry, p, target.Mode().Type())
			}
			info = target
		}
		entries = append(entries, Entry{Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
