package expr

import (
	"github.com/dgraph-io/ristretto"
)

// DefaultCacheSize is the number of compiled programs kept by NewCache(0).
const DefaultCacheSize = 1024

// Cache memoizes compiled programs by source text.
// Only successful compilations are cached.
type Cache struct {
	cache *ristretto.Cache
}

// NewCache creates a cache holding up to size programs.
// Every program costs one unit regardless of its memory footprint.
func NewCache(size int64) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        10 * size,
		MaxCost:            size,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{cache: c}, nil
}

// Compile returns the cached program for src, compiling it on a miss.
// A nil Cache compiles every time.
func (c *Cache) Compile(src string) (*Program, error) {
	if c == nil {
		return Compile(src)
	}
	if v, ok := c.cache.Get(src); ok {
		if p, ok := v.(*Program); ok {
			return p, nil
		}
	}
	p, err := Compile(src)
	if err != nil {
		return nil, err
	}
	c.cache.Set(src, p, 1)
	return p, nil
}

// Close releases the cache's background goroutines.
func (c *Cache) Close() {
	if c != nil {
		c.cache.Close()
	}
}
