package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/clean-dependency-project/astudios/internal/catalog"
)

// DefaultCacheTTL is how long a fetched catalog stays fresh.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores the JSON form of the last parsed catalog. A miss is reported
// as ok=false with a nil error.
type Cache interface {
	Load(maxAge time.Duration) (data []byte, ok bool, err error)
	Store(data []byte) error
}

// Loader returns the catalog from the cache when fresh and from the feed
// otherwise.
type Loader struct {
	client Client
	cache  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewLoader creates a loader. cache may be nil to always fetch; a zero ttl
// means DefaultCacheTTL.
func NewLoader(client Client, cache Cache, ttl time.Duration, logger *slog.Logger) *Loader {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{client: client, cache: cache, ttl: ttl, logger: logger}
}

// Load returns the cached catalog when it is younger than the TTL, otherwise
// fetches and caches a fresh one. Cache failures are logged and never fail
// the load.
func (l *Loader) Load(ctx context.Context) (*catalog.Catalog, error) {
	if l.cache != nil {
		data, ok, err := l.cache.Load(l.ttl)
		switch {
		case err != nil:
			l.logger.Warn("failed to read release cache", "error", err)
		case ok:
			c, err := catalog.ParseJSON(data)
			if err == nil {
				l.logger.Debug("using cached release feed", "releases", c.Len())
				return c, nil
			}
			l.logger.Warn("discarding unreadable release cache", "error", err)
		}
	}
	return l.Refresh(ctx)
}

// Refresh fetches the feed regardless of the cache state and stores the
// result.
func (l *Loader) Refresh(ctx context.Context) (*catalog.Catalog, error) {
	start := time.Now()
	data, err := l.client.FetchReleases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release feed: %w", err)
	}

	c, err := catalog.Parse(data)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("fetched release feed", "releases", c.Len(), "duration", time.Since(start))

	if l.cache != nil {
		encoded, err := c.Encode()
		if err != nil {
			l.logger.Warn("failed to encode release cache", "error", err)
			return c, nil
		}
		if err := l.cache.Store(encoded); err != nil {
			l.logger.Warn("failed to write release cache", "error", err)
		}
	}
	return c, nil
}
