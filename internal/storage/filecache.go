package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FileCache is a TTL-gated catalog cache kept in a single JSON file; the
// file's modification time is the fetch time.
type FileCache struct {
	path string
	now  func() time.Time
}

// NewFileCache returns a cache stored at path, e.g.
// ~/.astudios/cache/releases.json.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path, now: time.Now}
}

// Path returns the cache file location.
func (c *FileCache) Path() string {
	return c.path
}

// Load returns the cached payload when the file is younger than maxAge.
func (c *FileCache) Load(maxAge time.Duration) ([]byte, bool, error) {
	info, err := os.Stat(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to stat cache file %s: %w", c.path, err)
	}
	if c.now().Sub(info.ModTime()) > maxAge {
		return nil, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache file %s: %w", c.path, err)
	}
	return data, true, nil
}

// Store writes payload to the cache file, creating its directory.
func (c *FileCache) Store(payload []byte) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	if err := os.WriteFile(c.path, payload, 0644); err != nil {
		return fmt.Errorf("failed to write cache file %s: %w", c.path, err)
	}
	return nil
}

// Age returns how long ago the cache file was written.
func (c *FileCache) Age() (time.Duration, bool, error) {
	info, err := os.Stat(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to stat cache file %s: %w", c.path, err)
	}
	return c.now().Sub(info.ModTime()), true, nil
}
