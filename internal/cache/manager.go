package cache

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// Manager reads through memory then disk, promoting disk hits to memory.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
	logger *log.Logger
}

// NewManager builds the configured tiers. The disk tier is skipped when it
// is not configured.
func NewManager(cfg Config, logger *log.Logger) (*Manager, error) {
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		memory: NewMemoryCache(cfg.MemoryCapacity),
		logger: logger.WithPrefix("cache"),
	}
	if cfg.DiskPath != "" && cfg.DiskCapacity > 0 {
		disk, err := NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to open disk cache: %w", err)
		}
		m.disk = disk
	}
	return m, nil
}

// Get looks key up in every tier and reports where it was found.
func (m *Manager) Get(key string) ([]byte, Level, bool) {
	if value, ok := m.memory.Get(key); ok {
		return value, LevelMemory, true
	}
	if m.disk == nil {
		return nil, 0, false
	}
	value, ok := m.disk.Get(key)
	if !ok {
		return nil, 0, false
	}
	if err := m.memory.Put(key, value); err != nil {
		m.logger.Debug("not promoting to memory", "key", shortKey(key), "error", err)
	}
	return value, LevelDisk, true
}

// Put stores value in every tier. Items too large for a tier skip it.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	if m.disk == nil {
		return nil
	}
	if err := m.disk.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	return nil
}

// Stats returns per-tier counters. The disk entry is absent when disabled.
func (m *Manager) Stats() map[Level]Stats {
	stats := map[Level]Stats{LevelMemory: m.memory.Stats()}
	if m.disk != nil {
		stats[LevelDisk] = m.disk.Stats()
	}
	return stats
}

// Close closes the disk tier.
func (m *Manager) Close() error {
	if m.disk == nil {
		return nil
	}
	return m.disk.Close()
}
