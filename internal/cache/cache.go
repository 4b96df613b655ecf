// Package cache stores compiled document outputs on disk so unchanged sources are not
// recompiled by build, watch and serve. Entries are keyed by a hash of the source, the
// compiler version and the configuration fingerprint, and remember the source path they
// were produced from so a changed file can drop its outputs eagerly.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const indexVersion = "mxc-1"

// Cache is a size-bounded store of compiled outputs
type Cache struct {
	mu       sync.RWMutex
	dir      string
	index    *Index
	maxSize  int64
	maxAge   time.Duration
	strategy EvictionStrategy
	stats    Stats
}

// Index is persisted as index.json next to the artifacts
type Index struct {
	Version string            `json:"version"`
	Entries map[string]*Entry `json:"entries"`
	Updated time.Time         `json:"updated"`
}

// Entry describes one cached output
type Entry struct {
	Key        string    `json:"key"`
	Hash       string    `json:"hash"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	Created    time.Time `json:"created"`
	LastAccess time.Time `json:"last_access"`
	Hits       int       `json:"hits"`
	// Sources are the documents the output was compiled from
	Sources []string `json:"sources,omitempty"`
}

// Stats are counters since the cache was opened
type Stats struct {
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
	TotalSize  int64 `json:"total_size"`
	EntryCount int   `json:"entry_count"`
}

// EvictionStrategy selects the entry removed when the cache is full
type EvictionStrategy int

const (
	// LRU removes the least recently read entry
	LRU EvictionStrategy = iota
	// LFU removes the least often read entry
	LFU
	// FIFO removes the oldest entry
	FIFO
)

// ParseStrategy maps a configuration value to a strategy
func ParseStrategy(s string) (EvictionStrategy, error) {
	switch strings.ToLower(s) {
	case "", "lru":
		return LRU, nil
	case "lfu":
		return LFU, nil
	case "fifo":
		return FIFO, nil
	}
	return LRU, fmt.Errorf("unknown eviction strategy %q (want lru, lfu or fifo)", s)
}

// Config holds cache configuration
type Config struct {
	Dir      string        // default: <user cache dir>/mxc
	MaxSize  int64         // bytes; <= 0 means unbounded
	MaxAge   time.Duration // <= 0 means entries never expire
	Strategy EvictionStrategy
}

// DefaultConfig returns a 256 MB LRU cache under the user cache directory
func DefaultConfig() Config {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return Config{
		Dir:      filepath.Join(dir, "mxc"),
		MaxSize:  256 << 20,
		MaxAge:   7 * 24 * time.Hour,
		Strategy: LRU,
	}
}

// New opens the cache in config.Dir, loading a previous index when one exists
func New(config Config) (*Cache, error) {
	if config.Dir == "" {
		config.Dir = DefaultConfig().Dir
	}
	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		dir:      config.Dir,
		maxSize:  config.MaxSize,
		maxAge:   config.MaxAge,
		strategy: config.Strategy,
		index:    newIndex(),
	}
	if err := c.loadIndex(); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Ignoring unreadable cache index in %s: %v", c.dir, err)
		c.index = newIndex()
	}
	c.pruneExpired()
	return c, nil
}

func newIndex() *Index {
	return &Index{Version: indexVersion, Entries: make(map[string]*Entry), Updated: time.Now()}
}

// Get returns the cached output for key
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	if c.isExpired(entry) {
		c.removeLocked(key, entry)
		c.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.Path)
	if err != nil || c.hash(data) != entry.Hash {
		c.removeLocked(key, entry)
		c.stats.Misses++
		return nil, false
	}

	entry.LastAccess = time.Now()
	entry.Hits++
	c.stats.Hits++
	return data, true
}

// Put stores data under key, recording the sources it was compiled from
func (c *Cache) Put(key string, data []byte, sources ...string) error {
	hash := c.hash(data)
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.index.Entries[key]; ok && existing.Hash == hash {
		existing.Sources = sources
		return nil
	}

	c.ensureSpaceLocked(size)

	path := filepath.Join(c.dir, "artifacts", sanitizeKey(key)+"_"+hash[:8]+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	if old, ok := c.index.Entries[key]; ok {
		c.removeLocked(key, old)
	}
	now := time.Now()
	c.index.Entries[key] = &Entry{
		Key:        key,
		Hash:       hash,
		Path:       path,
		Size:       size,
		Created:    now,
		LastAccess: now,
		Sources:    sources,
	}
	c.stats.TotalSize += size
	c.stats.EntryCount = len(c.index.Entries)
	c.index.Updated = now

	return c.saveIndexLocked()
}

// Delete removes the entry for key
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.index.Entries[key]
	if !ok {
		return nil
	}
	c.removeLocked(key, entry)
	return c.saveIndexLocked()
}

// InvalidateSource removes every entry compiled from source, or from any file below it
// when source is a directory. It returns the number of entries removed.
func (c *Cache) InvalidateSource(source string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	source = filepath.Clean(source)
	count := 0
	for key, entry := range c.index.Entries {
		for _, s := range entry.Sources {
			s = filepath.Clean(s)
			if s == source || strings.HasPrefix(s, source+string(filepath.Separator)) {
				c.removeLocked(key, entry)
				count++
				break
			}
		}
	}
	if count > 0 {
		c.saveIndexLocked()
	}
	return count
}

// Clear removes every entry and artifact
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(filepath.Join(c.dir, "artifacts")); err != nil {
		return fmt.Errorf("failed to clear artifacts: %w", err)
	}
	c.index = newIndex()
	c.stats = Stats{}
	return c.saveIndexLocked()
}

// GetStats returns a snapshot of the counters
func (c *Cache) GetStats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// Close persists access times and hit counts
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saveIndexLocked()
}

// Key hashes the inputs into a cache key. Inputs are length-prefixed so that
// ("ab", "c") and ("a", "bc") differ.
func Key(inputs ...string) string {
	h := sha256.New()
	for _, input := range inputs {
		fmt.Fprintf(h, "%d:", len(input))
		h.Write([]byte(input))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cache) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(c.dir, "index.json"))
	if err != nil {
		return err
	}

	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return err
	}
	if index.Version != indexVersion {
		return fmt.Errorf("index version %q, want %q", index.Version, indexVersion)
	}
	if index.Entries == nil {
		index.Entries = make(map[string]*Entry)
	}
	c.index = &index

	c.stats.TotalSize = 0
	for _, entry := range index.Entries {
		c.stats.TotalSize += entry.Size
	}
	c.stats.EntryCount = len(index.Entries)
	return nil
}

// saveIndexLocked writes index.json; the caller holds c.mu
func (c *Cache) saveIndexLocked() error {
	data, err := json.MarshalIndent(c.index, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.dir, "index.json"), data, 0644)
}

func (c *Cache) isExpired(entry *Entry) bool {
	if c.maxAge <= 0 {
		return false
	}
	return time.Since(entry.Created) > c.maxAge
}

func (c *Cache) pruneExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := false
	for key, entry := range c.index.Entries {
		if c.isExpired(entry) {
			c.removeLocked(key, entry)
			removed = true
		}
	}
	if removed {
		c.saveIndexLocked()
	}
}

// ensureSpaceLocked evicts entries until needed more bytes fit
func (c *Cache) ensureSpaceLocked(needed int64) {
	if c.maxSize <= 0 {
		return
	}

	for c.stats.TotalSize+needed > c.maxSize && len(c.index.Entries) > 0 {
		var victim *Entry
		for _, entry := range c.index.Entries {
			if victim == nil || c.evictsBefore(entry, victim) {
				victim = entry
			}
		}
		c.removeLocked(victim.Key, victim)
		c.stats.Evictions++
	}
}

// evictsBefore reports whether a should be evicted before b
func (c *Cache) evictsBefore(a, b *Entry) bool {
	switch c.strategy {
	case LFU:
		if a.Hits != b.Hits {
			return a.Hits < b.Hits
		}
		return a.LastAccess.Before(b.LastAccess)
	case FIFO:
		return a.Created.Before(b.Created)
	default:
		return a.LastAccess.Before(b.LastAccess)
	}
}

func (c *Cache) removeLocked(key string, entry *Entry) {
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) {
		log.Printf("⚠️  Failed to remove cache file %s: %v", entry.Path, err)
	}
	delete(c.index.Entries, key)
	c.stats.TotalSize -= entry.Size
	c.stats.EntryCount = len(c.index.Entries)
	c.index.Updated = time.Now()
}

func (c *Cache) hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func sanitizeKey(key string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		return r
	}, key)
	if len(sanitized) > 64 {
		sanitized = sanitized[:64]
	}
	return sanitized
}
