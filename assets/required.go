package assets

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// MissingRequired returns the patterns that match nothing under dir. Patterns
// are slash separated path.Match globs compared case-insensitively, because
// original game data ships with inconsistent file name casing. A missing dir
// means every pattern is missing.
func MissingRequired(dir string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		files = append(files, strings.ToLower(filepath.ToSlash(rel)))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to scan %s: %w", dir, err)
	}

	var missing []string
	for _, pattern := range patterns {
		lp := strings.ToLower(pattern)
		if _, err := path.Match(lp, ""); err != nil {
			return nil, fmt.Errorf("bad required pattern %q: %w", pattern, err)
		}
		if !anyMatch(lp, files) {
			missing = append(missing, pattern)
		}
	}
	return missing, nil
}

func anyMatch(pattern string, files []string) bool {
	for _, f := range files {
		if ok, _ := path.Match(pattern, f); ok {
			return true
		}
	}
	return false
}
