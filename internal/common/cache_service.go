package common

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// CacheService wraps an in-process cache with a fetch-on-miss helper. Used to
// keep hot lookups like tenant credentials off the database on every request.
type CacheService struct {
	store *cache.Cache
}

func NewCacheService(defaultTTL, cleanupInterval time.Duration) *CacheService {
	return &CacheService{store: cache.New(defaultTTL, cleanupInterval)}
}

func (c *CacheService) Get(key string) (interface{}, bool) {
	return c.store.Get(key)
}

func (c *CacheService) Set(key string, value interface{}, ttl time.Duration) {
	c.store.Set(key, value, ttl)
}

func (c *CacheService) Delete(key string) {
	c.store.Delete(key)
}

// GetOrSet returns the cached value, or loads, caches and returns it.
func (c *CacheService) GetOrSet(key string, ttl time.Duration, load func() (interface{}, error)) (interface{}, error) {
	if v, ok := c.store.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return nil, err
	}
	c.store.Set(key, v, ttl)
	return v, nil
}
