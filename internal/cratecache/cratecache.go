// Package cratecache is a bounded, thread-safe (CrateVersion ->
// *pkgvalue.Package) map with single-flight semantics on miss, so a burst of
// concurrent requests for the same crate version triggers exactly one build.
package cratecache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/cratedocs/internal/cratetypes"
	"github.com/standardbeagle/cratedocs/internal/pkgvalue"
)

// BuildFunc builds a Package from scratch on a cache miss (download +
// decompress + index). It is supplied by the caller (internal/cratesvc) so
// this package stays free of HTTP and archive concerns.
type BuildFunc func(ctx context.Context, cv cratetypes.CrateVersion) (*pkgvalue.Package, error)

// Cache is the bounded (name, version) -> Package map. The mutex protected
// by the LRU container is held only for map mutation; the single-flight
// group ensures the (potentially tens-to-hundreds of milliseconds) build
// work itself is never performed twice for the same key concurrently.
type Cache struct {
	lru    *lru.Cache[cratetypes.CrateVersion, *pkgvalue.Package]
	flight singleflight.Group
}

// New creates a Cache with the given positive capacity.
func New(capacity int) (*Cache, error) {
	c, err := lru.New[cratetypes.CrateVersion, *pkgvalue.Package](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// Get returns the cached Package for key, or nil if absent. It performs no
// I/O and never blocks on a concurrent build.
func (c *Cache) Get(key cratetypes.CrateVersion) (*pkgvalue.Package, bool) {
	return c.lru.Get(key)
}

// GetOrBuild returns the cached Package for key, building it first on a
// miss: on a hit it returns immediately; on a miss exactly one caller per
// key runs build, the rest wait for and share its result. A build failure
// clears the in-flight slot and inserts nothing, so the next caller gets a
// clean retry.
func (c *Cache) GetOrBuild(ctx context.Context, key cratetypes.CrateVersion, build BuildFunc) (*pkgvalue.Package, error) {
	if pkg, ok := c.lru.Get(key); ok {
		return pkg, nil
	}

	flightKey := key.String()
	v, err, _ := c.flight.Do(flightKey, func() (any, error) {
		// Re-check: another flight may have populated the cache between our
		// Get above and acquiring this single-flight slot.
		if pkg, ok := c.lru.Get(key); ok {
			return pkg, nil
		}
		pkg, err := build(ctx, key)
		if err != nil {
			return nil, err
		}
		c.lru.Add(key, pkg)
		return pkg, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*pkgvalue.Package), nil
}

// Len reports the number of entries currently held (test/diagnostic use).
func (c *Cache) Len() int { return c.lru.Len() }

// Contains reports whether key is present without affecting recency.
func (c *Cache) Contains(key cratetypes.CrateVersion) bool {
	return c.lru.Contains(key)
}
