package assets

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

// countingStore records every Create call and can fail creates by prefix.
type countingStore struct {
	*DirStore
	creates    []string
	failPrefix string
}

var errDiskFull = errors.New("disk full")

func (s *countingStore) Create(name string) (io.WriteCloser, error) {
	if s.failPrefix != "" && strings.HasPrefix(name, s.failPrefix) {
		return nil, errDiskFull
	}
	s.creates = append(s.creates, name)
	return s.DirStore.Create(name)
}

func testBundle(digest string) fstest.MapFS {
	return fstest.MapFS{
		"assets.digest":           {Data: []byte(digest)},
		"files/lang/ru.mo":        {Data: []byte("ru")},
		"files/data/resurrection": {Data: []byte("res")},
		"files/empty":             {Mode: os.ModeDir | 0o755},
		"maps/broken_bridge.mp2":  {Data: []byte("map1")},
		"maps/xl/claw.mx2":        {Data: []byte("map2")},
	}
}

type testEnv struct {
	external *countingStore
	files    *countingStore
	filesDir string
	extDir   string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	root := t.TempDir()
	filesDir := filepath.Join(root, "files")
	extDir := filepath.Join(root, "external")
	for _, d := range []string{filesDir, extDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	return &testEnv{
		external: &countingStore{DirStore: NewDirStore(extDir)},
		files:    &countingStore{DirStore: NewDirStore(filesDir)},
		filesDir: filesDir,
		extDir:   extDir,
	}
}

func (e *testEnv) synchronizer(bundle Bundle) *Synchronizer {
	return NewSynchronizer(bundle, Options{
		Groups: []Group{
			{Name: "files", Dest: e.external},
			{Name: "maps", Dest: e.external},
		},
		DigestName: "assets.digest",
		DigestDest: e.files,
		LockPath:   filepath.Join(e.filesDir, ".sync.lock"),
	})
}

func TestSyncFirstRunExtractsEverything(t *testing.T) {
	env := newTestEnv(t)
	s := env.synchronizer(testBundle("v1"))

	res, err := s.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Skipped {
		t.Fatal("Sync() skipped on first run")
	}
	if res.Files != 4 {
		t.Errorf("Files = %d, want 4", res.Files)
	}
	if res.Dirs != 1 {
		t.Errorf("Dirs = %d, want 1", res.Dirs)
	}

	for name, want := range map[string]string{
		"files/lang/ru.mo":       "ru",
		"maps/xl/claw.mx2":       "map2",
		"maps/broken_bridge.mp2": "map1",
	} {
		got, err := os.ReadFile(filepath.Join(env.extDir, filepath.FromSlash(name)))
		if err != nil {
			t.Errorf("read %s: %v", name, err)
			continue
		}
		if string(got) != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}

	if st, err := os.Stat(filepath.Join(env.extDir, "files", "empty")); err != nil || !st.IsDir() {
		t.Errorf("empty directory not recreated: %v", err)
	}

	digest, err := os.ReadFile(filepath.Join(env.filesDir, "assets.digest"))
	if err != nil {
		t.Fatalf("local digest not written: %v", err)
	}
	if string(digest) != "v1" {
		t.Errorf("local digest = %q, want v1", digest)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	bundle := testBundle("v1")

	if _, err := env.synchronizer(bundle).Sync(context.Background()); err != nil {
		t.Fatalf("first Sync() error = %v", err)
	}
	env.external.creates = nil
	env.files.creates = nil

	res, err := env.synchronizer(bundle).Sync(context.Background())
	if err != nil {
		t.Fatalf("second Sync() error = %v", err)
	}
	if !res.Skipped {
		t.Error("second Sync() did not skip")
	}
	if n := len(env.external.creates) + len(env.files.creates); n != 0 {
		t.Errorf("second Sync() copied %d files, want 0", n)
	}
}

func TestSyncReextractsWhenDigestChanges(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.synchronizer(testBundle("v1")).Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	res, err := env.synchronizer(testBundle("v2")).Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if res.Skipped || res.Files != 4 {
		t.Errorf("Sync() = %+v, want full extraction", res)
	}
}

func TestSyncRecoversFromPartialExtraction(t *testing.T) {
	env := newTestEnv(t)
	bundle := testBundle("v1")

	env.external.failPrefix = "maps/"
	_, err := env.synchronizer(bundle).Sync(context.Background())
	if !errors.Is(err, errDiskFull) {
		t.Fatalf("Sync() error = %v, want errDiskFull", err)
	}
	var syncErr *SyncError
	if !errors.As(err, &syncErr) || syncErr.Group != "maps" || syncErr.Action != "copy" {
		t.Errorf("Sync() error = %#v, want copy failure in maps", err)
	}

	if _, err := os.Stat(filepath.Join(env.filesDir, "assets.digest")); !os.IsNotExist(err) {
		t.Fatalf("local digest written after failed extraction: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.extDir, "files", "lang", "ru.mo")); err != nil {
		t.Fatalf("files group should have been copied before the failure: %v", err)
	}

	env.external.failPrefix = ""
	env.external.creates = nil
	res, err := env.synchronizer(bundle).Sync(context.Background())
	if err != nil {
		t.Fatalf("retry Sync() error = %v", err)
	}
	if res.Files != 4 {
		t.Errorf("retry Files = %d, want 4 (all groups)", res.Files)
	}
	var sawFiles bool
	for _, name := range env.external.creates {
		if strings.HasPrefix(name, "files/") {
			sawFiles = true
		}
	}
	if !sawFiles {
		t.Error("retry did not re-extract the files group")
	}
}

var errTruncated = errors.New("unexpected end of archive")

// truncatedBundle serves broken as a file whose reads fail after a few bytes.
type truncatedBundle struct {
	fstest.MapFS
	broken string
}

func (b truncatedBundle) Open(name string) (fs.File, error) {
	f, err := b.MapFS.Open(name)
	if err != nil || name != b.broken {
		return f, err
	}
	return &truncatedFile{File: f}, nil
}

type truncatedFile struct {
	fs.File
	read bool
}

func (f *truncatedFile) Read(p []byte) (int, error) {
	if f.read {
		return 0, errTruncated
	}
	f.read = true
	return copy(p, "cl"), nil
}

func TestSyncFailedCopyLeavesNoPartialFile(t *testing.T) {
	env := newTestEnv(t)
	dst := filepath.Join(env.extDir, "maps", "xl", "claw.mx2")
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old map"), 0o644); err != nil {
		t.Fatal(err)
	}

	bundle := truncatedBundle{MapFS: testBundle("v2"), broken: "maps/xl/claw.mx2"}
	_, err := env.synchronizer(bundle).Sync(context.Background())
	if !errors.Is(err, errTruncated) {
		t.Fatalf("Sync() error = %v, want errTruncated", err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("existing asset removed: %v", err)
	}
	if string(got) != "old map" {
		t.Errorf("asset = %q, want previous content", got)
	}
	if _, err := os.Stat(dst + ".tmp"); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.filesDir, "assets.digest")); !os.IsNotExist(err) {
		t.Error("local digest written after failed copy")
	}
}

func TestDirStoreCreateCommitsOnClose(t *testing.T) {
	dir := t.TempDir()
	store := NewDirStore(dir)

	w, err := store.Create("heroes2.agg")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := io.WriteString(w, "agg"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "heroes2.agg")); !os.IsNotExist(err) {
		t.Fatalf("file visible before Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "heroes2.agg"))
	if err != nil || string(got) != "agg" {
		t.Errorf("committed file = %q, %v; want agg", got, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "heroes2.agg.tmp")); !os.IsNotExist(err) {
		t.Errorf("temporary file left behind: %v", err)
	}
}

func TestSyncMissingGroup(t *testing.T) {
	env := newTestEnv(t)
	bundle := testBundle("v1")
	delete(bundle, "maps/broken_bridge.mp2")
	delete(bundle, "maps/xl/claw.mx2")

	_, err := env.synchronizer(bundle).Sync(context.Background())
	if !errors.Is(err, ErrGroupNotFound) {
		t.Fatalf("Sync() error = %v, want ErrGroupNotFound", err)
	}
	if _, err := os.Stat(filepath.Join(env.filesDir, "assets.digest")); !os.IsNotExist(err) {
		t.Error("local digest written although a group was missing")
	}
}

func TestSyncWithoutBundledDigest(t *testing.T) {
	env := newTestEnv(t)
	bundle := testBundle("v1")
	delete(bundle, "assets.digest")

	res, err := env.synchronizer(bundle).Sync(context.Background())
	if !errors.Is(err, ErrNoBundledDigest) {
		t.Fatalf("Sync() error = %v, want ErrNoBundledDigest", err)
	}
	if res.Files != 4 {
		t.Errorf("Files = %d, want 4", res.Files)
	}
}

func TestSyncCanceled(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.synchronizer(testBundle("v1")).Sync(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sync() error = %v, want context.Canceled", err)
	}
}

func TestDigestChanged(t *testing.T) {
	env := newTestEnv(t)
	bundle := testBundle("v1")

	if !DigestChanged(bundle, env.files, "assets.digest") {
		t.Error("DigestChanged() = false with no local digest")
	}

	if err := os.WriteFile(filepath.Join(env.filesDir, "assets.digest"), []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if DigestChanged(bundle, env.files, "assets.digest") {
		t.Error("DigestChanged() = true with equal digests")
	}

	if err := os.WriteFile(filepath.Join(env.filesDir, "assets.digest"), []byte("v0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !DigestChanged(bundle, env.files, "assets.digest") {
		t.Error("DigestChanged() = false with different digests")
	}

	delete(bundle, "assets.digest")
	if !DigestChanged(bundle, env.files, "assets.digest") {
		t.Error("DigestChanged() = false with no bundled digest")
	}
}
