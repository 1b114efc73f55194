package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedCacheEntry holds the last parsed catalog fetched from one feed source.
type FeedCacheEntry struct {
	ID        uint      `gorm:"primaryKey"`
	Source    string    `gorm:"not null;uniqueIndex"`
	Payload   []byte    `gorm:"not null"`
	FetchedAt time.Time `gorm:"not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FeedCache is a TTL-gated catalog cache backed by the feed_cache_entries
// table. Each feed URL gets its own row.
type FeedCache struct {
	db     *gorm.DB
	source string
	now    func() time.Time
}

// NewFeedCache returns the cache for source.
func (d *DB) NewFeedCache(source string) *FeedCache {
	return &FeedCache{db: d.db, source: source, now: time.Now}
}

// Load returns the cached payload when it is younger than maxAge. A miss
// (no row or expired row) returns ok=false and no error.
func (c *FeedCache) Load(maxAge time.Duration) ([]byte, bool, error) {
	var entry FeedCacheEntry
	err := c.db.Where("source = ?", c.source).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load feed cache for %s: %w", c.source, err)
	}
	if c.now().Sub(entry.FetchedAt) > maxAge {
		return nil, false, nil
	}
	return entry.Payload, true, nil
}

// Store replaces the cached payload and stamps it with the current time.
func (c *FeedCache) Store(payload []byte) error {
	entry := FeedCacheEntry{
		Source:    c.source,
		Payload:   payload,
		FetchedAt: c.now(),
	}
	err := c.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "fetched_at", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to store feed cache for %s: %w", c.source, err)
	}
	return nil
}

// Age returns how long ago the cached payload was fetched.
func (c *FeedCache) Age() (time.Duration, bool, error) {
	var entry FeedCacheEntry
	err := c.db.Where("source = ?", c.source).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read feed cache for %s: %w", c.source, err)
	}
	return c.now().Sub(entry.FetchedAt), true, nil
}
