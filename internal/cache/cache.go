// Package cache keeps rendered run results across invocations.
package cache

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const cacheFileName = "opsem_cache.gob"

// DefaultMaxAge is the age after which an entry is dropped.
const DefaultMaxAge = 24 * time.Hour

type Entry struct {
	Output       string
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Cache maps the hash of an input and its run settings to the rendered
// output of the run. Entries are persisted with gob under Dir.
type Cache struct {
	Dir     string
	entries map[uint64]Entry
	mutex   sync.RWMutex
	maxAge  time.Duration
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{
		Dir:     dir,
		entries: make(map[uint64]Entry),
		maxAge:  DefaultMaxAge,
	}
	if err := c.load(); err != nil {
		return nil, fmt.Errorf("failed to load cache: %w", err)
	}
	return c, nil
}

// Key hashes the content of an input file together with the settings that
// change the output of a run on it.
func Key(content []byte, settings ...string) uint64 {
	d := xxhash.New()
	_, _ = d.Write(content)
	for _, s := range settings {
		_, _ = d.WriteString(strconv.Itoa(len(s)))
		_, _ = d.WriteString(":")
		_, _ = d.WriteString(s)
	}
	return d.Sum64()
}

func (c *Cache) path() string { return filepath.Join(c.Dir, cacheFileName) }

func (c *Cache) load() error {
	file, err := os.Open(c.path())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer file.Close()

	decoder := gob.NewDecoder(file)
	if err := decoder.Decode(&c.entries); err != nil {
		return fmt.Errorf("failed to decode cache file: %w", err)
	}
	return nil
}

func (c *Cache) save() error {
	file, err := os.Create(c.path())
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	defer file.Close()

	encoder := gob.NewEncoder(file)
	if err := encoder.Encode(c.entries); err != nil {
		return fmt.Errorf("failed to encode cache file: %w", err)
	}
	return nil
}

func (c *Cache) Set(key uint64, output string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	c.entries[key] = Entry{Output: output, CreatedAt: now, LastAccessed: now}
	return c.save()
}

func (c *Cache) Get(key uint64) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(entry.CreatedAt) > c.maxAge {
		delete(c.entries, key)
		return "", false
	}
	entry.LastAccessed = time.Now()
	c.entries[key] = entry
	return entry.Output, true
}

func (c *Cache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

func (c *Cache) SetMaxAge(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.maxAge = d
}

// InvalidateAll drops every entry, in memory and on disk.
func (c *Cache) InvalidateAll() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[uint64]Entry)
	return c.save()
}
