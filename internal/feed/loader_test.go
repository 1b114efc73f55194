package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clean-dependency-project/astudios/internal/catalog"
)

// memoryCache is a Cache whose freshness is controlled by the test.
type memoryCache struct {
	data     []byte
	fresh    bool
	loadErr  error
	storeErr error
	stores   int
}

func (c *memoryCache) Load(maxAge time.Duration) ([]byte, bool, error) {
	if c.loadErr != nil {
		return nil, false, c.loadErr
	}
	if c.data == nil || !c.fresh {
		return nil, false, nil
	}
	return c.data, true, nil
}

func (c *memoryCache) Store(data []byte) error {
	c.stores++
	if c.storeErr != nil {
		return c.storeErr
	}
	c.data = data
	c.fresh = true
	return nil
}

func TestLoader_FetchesThenServesFromCache(t *testing.T) {
	client := NewMockClient()
	cache := &memoryCache{}
	loader := NewLoader(client, cache, 0, nil)

	first, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if first.Len() != 3 {
		t.Fatalf("Load() returned %d releases, want 3", first.Len())
	}
	if client.Calls != 1 || cache.stores != 1 {
		t.Fatalf("after first Load(): fetches = %d, stores = %d", client.Calls, cache.stores)
	}

	second, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() from cache unexpected error: %v", err)
	}
	if client.Calls != 1 {
		t.Errorf("Load() with a fresh cache fetched again")
	}
	if second.Releases[0].Build != first.Releases[0].Build {
		t.Errorf("cached catalog differs: %s vs %s", second.Releases[0].Build, first.Releases[0].Build)
	}
}

func TestLoader_StaleCacheRefetches(t *testing.T) {
	client := NewMockClient()
	cache := &memoryCache{data: []byte(`{"releases":[]}`), fresh: false}

	c, err := NewLoader(client, cache, time.Hour, nil).Load(context.Background())
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if client.Calls != 1 || c.Len() != 3 {
		t.Errorf("Load() with a stale cache: fetches = %d, releases = %d", client.Calls, c.Len())
	}
}

func TestLoader_CacheFailuresDoNotFail(t *testing.T) {
	tests := []struct {
		name  string
		cache *memoryCache
	}{
		{"load error", &memoryCache{loadErr: errors.New("disk on fire")}},
		{"store error", &memoryCache{storeErr: errors.New("read-only")}},
		{"corrupt entry", &memoryCache{data: []byte("{not json"), fresh: true}},
		{"invalid entry", &memoryCache{data: []byte(`{"releases":[{"name":"x"}]}`), fresh: true}},
		{"empty object", &memoryCache{data: []byte(`{}`), fresh: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewMockClient()
			c, err := NewLoader(client, tt.cache, time.Hour, nil).Load(context.Background())
			if err != nil {
				t.Fatalf("Load() unexpected error: %v", err)
			}
			if c.Len() != 3 || client.Calls != 1 {
				t.Errorf("Load() = %d releases after %d fetches", c.Len(), client.Calls)
			}
		})
	}
}

func TestLoader_Refresh(t *testing.T) {
	client := NewMockClient()
	cache := &memoryCache{}
	loader := NewLoader(client, cache, time.Hour, nil)

	if _, err := loader.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := loader.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() unexpected error: %v", err)
	}
	if client.Calls != 2 || cache.stores != 2 {
		t.Errorf("Refresh() should bypass the cache: fetches = %d, stores = %d", client.Calls, cache.stores)
	}
}

func TestLoader_Errors(t *testing.T) {
	t.Run("fetch error", func(t *testing.T) {
		client := &MockClient{Err: ErrAPIError{StatusCode: 503, Message: "unavailable"}}
		_, err := NewLoader(client, nil, 0, nil).Load(context.Background())
		if !errors.Is(err, ErrNetworkError) {
			t.Errorf("Load() error = %v, want ErrNetworkError", err)
		}
	})

	t.Run("parse error", func(t *testing.T) {
		cache := &memoryCache{}
		client := &MockClient{Data: []byte("<content><item><name>x</name></item></content>")}
		_, err := NewLoader(client, cache, 0, nil).Load(context.Background())
		if !errors.Is(err, catalog.ErrParse) {
			t.Errorf("Load() error = %v, want catalog.ErrParse", err)
		}
		if cache.stores != 0 {
			t.Error("a feed that fails to parse must not be cached")
		}
	})

	t.Run("login page instead of feed", func(t *testing.T) {
		cache := &memoryCache{}
		client := &MockClient{Data: []byte("<html><head><title>Login</title></head><body><p>Sign in</p></body></html>")}
		_, err := NewLoader(client, cache, 0, nil).Refresh(context.Background())
		if !errors.Is(err, catalog.ErrParse) {
			t.Errorf("Refresh() error = %v, want catalog.ErrParse", err)
		}
		if cache.stores != 0 {
			t.Error("a login page must not be cached as an empty catalog")
		}
	})
}
