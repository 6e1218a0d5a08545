// Package cache remembers files that were found to contain no eligible self
// calls, so repeated runs over an unchanged tree skip parsing them.
package cache

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/zeebo/blake3"
)

// Cache is a directory of JSON entries keyed by file path.
type Cache struct {
	dir         string
	ttl         time.Duration
	enabled     bool
	fingerprint string
}

// Entry records the outcome of the last analysis of one file.
type Entry struct {
	Path        string    `json:"path"`
	Hash        string    `json:"hash"`
	Fingerprint string    `json:"fingerprint"`
	Timestamp   time.Time `json:"timestamp"`
	Eligible    int       `json:"eligible"`
}

// New creates a cache in dir. Entries older than ttlHours are ignored, and
// entries written under different settings never match.
func New(dir string, ttlHours int, enabled bool, settings ...string) (*Cache, error) {
	if !enabled {
		return &Cache{enabled: false}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	return &Cache{
		dir:         dir,
		ttl:         time.Duration(ttlHours) * time.Hour,
		enabled:     true,
		fingerprint: Fingerprint(settings...),
	}, nil
}

// Enabled reports whether lookups can hit.
func (c *Cache) Enabled() bool { return c.enabled }

// Fingerprint summarizes the settings that influence analysis results.
func Fingerprint(settings ...string) string {
	return strconv.FormatUint(xxhash.Sum64String(strings.Join(settings, "\x00")), 16)
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Lookup returns the entry for path when its content and settings still match.
func (c *Cache) Lookup(path string, content []byte) (Entry, bool) {
	if !c.enabled {
		return Entry{}, false
	}

	file := c.keyPath(path)
	data, err := os.ReadFile(file)
	if err != nil {
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, false
	}

	if entry.Fingerprint != c.fingerprint || entry.Hash != HashBytes(content) {
		return Entry{}, false
	}

	if time.Since(entry.Timestamp) > c.ttl {
		os.Remove(file)
		return Entry{}, false
	}

	return entry, true
}

// Clean reports whether path, with this content, is known to have no
// eligible call sites.
func (c *Cache) Clean(path string, content []byte) bool {
	entry, ok := c.Lookup(path, content)
	return ok && entry.Eligible == 0
}

// Record stores the number of eligible sites found in content.
func (c *Cache) Record(path string, content []byte, eligible int) error {
	if !c.enabled {
		return nil
	}

	entry := Entry{
		Path:        path,
		Hash:        HashBytes(content),
		Fingerprint: c.fingerprint,
		Timestamp:   time.Now(),
		Eligible:    eligible,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return os.WriteFile(c.keyPath(path), data, 0600)
}

// Invalidate removes the entry for path.
func (c *Cache) Invalidate(path string) error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.keyPath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *Cache) Clear() error {
	if !c.enabled {
		return nil
	}
	return os.RemoveAll(c.dir)
}

// keyPath converts a file path to an entry path.
func (c *Cache) keyPath(path string) string {
	return filepath.Join(c.dir, strconv.FormatUint(xxhash.Sum64String(path), 16)+".json")
}

// Stats returns cache statistics.
type Stats struct {
	Entries   int           `json:"entries"`
	Clean     int           `json:"clean"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
}

// GetStats returns statistics about the cache.
func (c *Cache) GetStats() (*Stats, error) {
	if !c.enabled {
		return &Stats{}, nil
	}

	stats := &Stats{}
	var oldest time.Time

	err := filepath.WalkDir(c.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		stats.Entries++
		stats.TotalSize += info.Size()
		if oldest.IsZero() || info.ModTime().Before(oldest) {
			oldest = info.ModTime()
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var entry Entry
		if json.Unmarshal(data, &entry) == nil && entry.Eligible == 0 {
			stats.Clean++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	return stats, nil
}
