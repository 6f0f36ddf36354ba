package assets

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"sort"
)

// DigestChanged reports whether the bundled digest differs from the local
// copy. Any failure to read either side counts as a change, so a broken or
// missing local digest always leads to re-extraction.
func DigestChanged(bundle Bundle, local Store, name string) bool {
	bundled, err := fs.ReadFile(bundle, name)
	if err != nil {
		return true
	}

	f, err := local.Open(name)
	if err != nil {
		return true
	}
	defer f.Close() //nolint:errcheck

	stored, err := io.ReadAll(f)
	if err != nil {
		return true
	}

	return !bytes.Equal(bundled, stored)
}

// ComputeDigest fingerprints the given roots of a bundle. Every leaf
// contributes its path, size and content in path order, so the result only
// changes when the asset set does. The digest is returned hex encoded with a
// trailing newline, ready to be written as the bundle's digest blob.
func ComputeDigest(bundle Bundle, roots []string) ([]byte, error) {
	var all []Entry
	for _, root := range roots {
		entries, err := Walk(bundle, root)
		if err != nil {
			return nil, fmt.Errorf("unable to enumerate %s: %w", root, err)
		}
		all = append(all, entries...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Path < all[j].Path })

	h := sha256.New()
	var size [8]byte
	for _, e := range all {
		io.WriteString(h, e.Path) //nolint:errcheck
		h.Write([]byte{0})        //nolint:errcheck
		if e.Dir {
			h.Write([]byte{'/'}) //nolint:errcheck
			continue
		}
		binary.LittleEndian.PutUint64(size[:], uint64(e.Size)) //nolint:gosec
		h.Write(size[:])                                        //nolint:errcheck

		f, err := bundle.Open(e.Path)
		if err != nil {
			return nil, fmt.Errorf("unable to open %s: %w", e.Path, err)
		}
		_, err = io.Copy(h, f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("unable to read %s: %w", e.Path, err)
		}
	}

	sum := hex.EncodeToString(h.Sum(nil))
	return []byte(sum + "\n"), nil
}
