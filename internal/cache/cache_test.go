package cache

import (
	"bytes"
	"errors"
	"testing"
)

func TestKey(t *testing.T) {
	a := Key("hello", "piper", "voice")
	if a != Key("hello", "piper", "voice") {
		t.Error("Key() is not deterministic")
	}
	if a == Key("hellop", "iper", "voice") {
		t.Error("Key() does not separate parts")
	}
	if len(a) != 64 {
		t.Errorf("len(Key()) = %d, want 64", len(a))
	}
}

func TestMemoryCacheLRU(t *testing.T) {
	c := NewMemoryCache(10)

	if err := c.Put("a", []byte("aaaa")); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("b", []byte("bbbb")); err != nil {
		t.Fatal(err)
	}
	// Touch a so that b becomes the oldest.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}
	if err := c.Put("c", []byte("cccc")); err != nil {
		t.Fatal(err)
	}

	if c.Contains("b") {
		t.Error("b should have been evicted")
	}
	if !c.Contains("a") || !c.Contains("c") {
		t.Error("a and c should be cached")
	}
	if c.Size() != 8 {
		t.Errorf("Size() = %d, want 8", c.Size())
	}

	s := c.Stats()
	if s.Evictions != 1 || s.Hits != 1 || s.Items != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestMemoryCacheTooLarge(t *testing.T) {
	c := NewMemoryCache(4)
	if err := c.Put("x", []byte("12345")); !errors.Is(err, ErrItemTooLarge) {
		t.Errorf("Put() error = %v, want ErrItemTooLarge", err)
	}
}

func TestMemoryCacheReplace(t *testing.T) {
	c := NewMemoryCache(100)
	_ = c.Put("k", []byte("short"))
	_ = c.Put("k", []byte("much longer value"))
	if c.Size() != int64(len("much longer value")) {
		t.Errorf("Size() = %d after replace", c.Size())
	}
	got, _ := c.Get("k")
	if string(got) != "much longer value" {
		t.Errorf("Get() = %q", got)
	}
}

func TestDiskCacheRoundTripAndReopen(t *testing.T) {
	dir := t.TempDir()
	dc, err := NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatalf("NewDiskCache() error = %v", err)
	}

	small := []byte("tiny")
	large := bytes.Repeat([]byte{0, 1, 2, 3}, 4096)
	if err := dc.Put("small", small); err != nil {
		t.Fatal(err)
	}
	if err := dc.Put("large", large); err != nil {
		t.Fatal(err)
	}
	if s := dc.Stats(); s.Size >= int64(len(large)) {
		t.Errorf("repetitive data was not compressed: size %d", s.Size)
	}
	if err := dc.Close(); err != nil {
		t.Fatal(err)
	}

	dc, err = NewDiskCache(dir, 1<<20, 3)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close() //nolint:errcheck

	for key, want := range map[string][]byte{"small": small, "large": large} {
		got, ok := dc.Get(key)
		if !ok {
			t.Errorf("Get(%s) missed after reopen", key)
			continue
		}
		if !bytes.Equal(got, want) {
			t.Errorf("Get(%s) returned %d bytes, want %d", key, len(got), len(want))
		}
	}
}

func TestDiskCacheEvicts(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 20, 1)
	if err != nil {
		t.Fatal(err)
	}
	defer dc.Close() //nolint:errcheck

	_ = dc.Put("a", []byte("0123456789"))
	_ = dc.Put("b", []byte("0123456789"))
	if s := dc.Stats(); s.Items != 1 || s.Evictions != 1 {
		t.Errorf("Stats() = %+v, want one item after eviction", s)
	}
	if _, ok := dc.Get("b"); !ok {
		t.Error("newest entry was evicted")
	}
}

func TestDiskCacheClosed(t *testing.T) {
	dc, err := NewDiskCache(t.TempDir(), 100, 1)
	if err != nil {
		t.Fatal(err)
	}
	_ = dc.Close()
	if err := dc.Put("k", []byte("v")); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Put() error = %v, want ErrCacheClosed", err)
	}
}

func TestManagerPromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(Config{MemoryCapacity: 1024, DiskCapacity: 1 << 20, DiskPath: dir, CompressionLevel: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	key := Key("Week 2", "piper")
	if err := m.Put(key, []byte("pcm")); err != nil {
		t.Fatal(err)
	}
	if _, level, ok := m.Get(key); !ok || level != LevelMemory {
		t.Errorf("Get() level = %v, %v; want memory hit", level, ok)
	}
	_ = m.Close()

	m, err = NewManager(Config{MemoryCapacity: 1024, DiskCapacity: 1 << 20, DiskPath: dir, CompressionLevel: 3}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer m.Close() //nolint:errcheck

	if v, level, ok := m.Get(key); !ok || level != LevelDisk || string(v) != "pcm" {
		t.Errorf("Get() = %q, %v, %v; want disk hit", v, level, ok)
	}
	if _, level, _ := m.Get(key); level != LevelMemory {
		t.Errorf("second Get() level = %v, want memory", level)
	}
}

func TestManagerMemoryOnly(t *testing.T) {
	m, err := NewManager(Config{MemoryCapacity: 4}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Put("k", []byte("too large")); err != nil {
		t.Errorf("Put() error = %v, oversized items should be skipped", err)
	}
	if _, _, ok := m.Get("k"); ok {
		t.Error("Get() hit for skipped item")
	}
	if _, ok := m.Stats()[LevelDisk]; ok {
		t.Error("Stats() reports a disabled disk tier")
	}
}
