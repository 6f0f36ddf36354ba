package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	diskExt = ".cache"

	// Values smaller than this are stored raw.
	compressThreshold = 1024

	flagRaw  byte = 0
	flagZstd byte = 1
)

// DiskCache is the persistent L2 tier. Each entry lives in its own file named
// after the key; the first byte of a file says whether the rest is zstd
// compressed. The index is rebuilt from the directory on open.
type DiskCache struct {
	basePath string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index  map[string]*diskEntry
	closed bool

	mu    sync.Mutex
	stats Stats
}

type diskEntry struct {
	size       int64
	lastAccess time.Time
}

// NewDiskCache opens (or creates) a disk cache rooted at basePath.
func NewDiskCache(basePath string, capacity int64, compressionLevel int) (*DiskCache, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		_ = encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	dc := &DiskCache{
		basePath: basePath,
		capacity: capacity,
		encoder:  encoder,
		decoder:  decoder,
		index:    make(map[string]*diskEntry),
	}
	if err := dc.scan(); err != nil {
		dc.Close() //nolint:errcheck
		return nil, err
	}
	return dc, nil
}

// Get reads and decompresses the value for key.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok || dc.closed {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(dc.filePath(key))
	if err != nil || len(data) == 0 {
		dc.drop(key)
		dc.stats.Misses++
		return nil, false
	}

	value := data[1:]
	if data[0] == flagZstd {
		value, err = dc.decoder.DecodeAll(value, nil)
		if err != nil {
			dc.drop(key)
			dc.stats.Misses++
			return nil, false
		}
	}

	entry.lastAccess = time.Now()
	_ = os.Chtimes(dc.filePath(key), entry.lastAccess, entry.lastAccess)
	dc.stats.Hits++
	return value, true
}

// Put compresses value when that saves space and writes it to disk.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrCacheClosed
	}

	data := append([]byte{flagRaw}, value...)
	if len(value) > compressThreshold {
		compressed := dc.encoder.EncodeAll(value, make([]byte, 1, len(value)/2+1))
		if len(compressed) < len(data) {
			compressed[0] = flagZstd
			data = compressed
		}
	}

	size := int64(len(data))
	if size > dc.capacity {
		return ErrItemTooLarge
	}

	if old, ok := dc.index[key]; ok {
		dc.size -= old.size
		delete(dc.index, key)
	}
	for dc.size+size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	if err := writeFile(dc.filePath(key), data); err != nil {
		return err
	}
	dc.index[key] = &diskEntry{size: size, lastAccess: time.Now()}
	dc.size += size
	return nil
}

// Stats returns a snapshot of the cache counters.
func (dc *DiskCache) Stats() Stats {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	s := dc.stats
	s.Capacity = dc.capacity
	s.Size = dc.size
	s.Items = len(dc.index)
	return s
}

// Clear removes every cached file.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	for key := range dc.index {
		if err := os.Remove(dc.filePath(key)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0
	return nil
}

// Close releases the codec resources. Later writes fail with ErrCacheClosed.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if dc.closed {
		return nil
	}
	dc.closed = true
	dc.decoder.Close()
	return dc.encoder.Close()
}

func (dc *DiskCache) filePath(key string) string {
	return filepath.Join(dc.basePath, key+diskExt)
}

func (dc *DiskCache) scan() error {
	entries, err := os.ReadDir(dc.basePath)
	if err != nil {
		return fmt.Errorf("failed to read cache directory: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, diskExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(name, diskExt)
		dc.index[key] = &diskEntry{size: info.Size(), lastAccess: info.ModTime()}
		dc.size += info.Size()
	}
	for dc.size > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}
	return nil
}

func (dc *DiskCache) evictOldest() {
	keys := make([]string, 0, len(dc.index))
	for k := range dc.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return dc.index[keys[i]].lastAccess.Before(dc.index[keys[j]].lastAccess)
	})
	dc.drop(keys[0])
	dc.stats.Evictions++
}

func (dc *DiskCache) drop(key string) {
	if e, ok := dc.index[key]; ok {
		dc.size -= e.size
		delete(dc.index, key)
	}
	_ = os.Remove(dc.filePath(key))
}

// writeFile writes through a temporary file so readers never see a partial entry.
func writeFile(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit cache file: %w", err)
	}
	return nil
}
