// Package cache stores synthesized speech so that repeated announcements are
// not synthesized twice. It pairs an in-memory LRU cache (L1) with a
// zstd-compressed disk cache (L2) that survives restarts.
package cache
