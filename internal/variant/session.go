package variant

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"avif-everywhere/internal/filesystem"
	"avif-everywhere/internal/metrics"
)

// DefaultExistenceCacheSize bounds a single session's existence cache.
const DefaultExistenceCacheSize = 4096

// ExistenceCache memoises "does this file exist" lookups for one session: one
// HTTP request, one batch item, one scheduled upload. It must not outlive the
// session because files are created and deleted between sessions.
type ExistenceCache struct {
	entries *lru.Cache[string, bool]
	retry   filesystem.RetryConfig
}

// NewExistenceCache creates an empty cache holding at most size entries.
func NewExistenceCache(size int) *ExistenceCache {
	if size <= 0 {
		size = DefaultExistenceCacheSize
	}
	entries, err := lru.New[string, bool](size)
	if err != nil {
		// Only returned for a non-positive size, which is excluded above.
		panic(err)
	}
	return &ExistenceCache{
		entries: entries,
		retry:   filesystem.DefaultRetryConfig(),
	}
}

// Exists reports whether path is an existing regular file.
func (c *ExistenceCache) Exists(path string) bool {
	if exists, ok := c.entries.Get(path); ok {
		metrics.ExistenceCacheLookups.WithLabelValues("hit").Inc()
		return exists
	}
	metrics.ExistenceCacheLookups.WithLabelValues("miss").Inc()

	exists := filesystem.Exists(path, c.retry)
	c.entries.Add(path, exists)
	return exists
}

// Invalidate drops a cached answer after the session itself changed the file.
func (c *ExistenceCache) Invalidate(paths ...string) {
	for _, p := range paths {
		c.entries.Remove(p)
	}
}

// Len returns the number of cached lookups.
func (c *ExistenceCache) Len() int {
	return c.entries.Len()
}

type sessionKey struct{}

// NewSession returns a context carrying a fresh ExistenceCache.
func NewSession(ctx context.Context) context.Context {
	return context.WithValue(ctx, sessionKey{}, NewExistenceCache(DefaultExistenceCacheSize))
}

// SessionCache returns the session cache attached to ctx, or nil.
func SessionCache(ctx context.Context) *ExistenceCache {
	c, _ := ctx.Value(sessionKey{}).(*ExistenceCache)
	return c
}

// fileExists consults the session cache when one is attached.
func fileExists(ctx context.Context, path string) bool {
	if c := SessionCache(ctx); c != nil {
		return c.Exists(path)
	}
	return filesystem.Exists(path, filesystem.DefaultRetryConfig())
}

// forget invalidates paths in the session cache, if any.
func forget(ctx context.Context, paths ...string) {
	if c := SessionCache(ctx); c != nil {
		c.Invalidate(paths...)
	}
}
