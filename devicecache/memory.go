package devicecache

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// memoryCache is an in-process implementation of Cache. It uses go-cache for
// TTL storage and singleflight to collapse concurrent fetches for the same
// device identifier into one call.
type memoryCache struct {
	cache *cache.Cache
	group singleflight.Group
}

// NewMemoryCache creates an in-memory device profile cache.
//
// Parameters:
//   - defaultExpiration: Default TTL for cached profiles (use cache.NoExpiration for none)
//   - cleanupInterval: Interval at which expired profiles are evicted
//
// Returns:
//   - A new in-memory Cache instance
func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) Cache {
	return &memoryCache{
		cache: cache.New(defaultExpiration, cleanupInterval),
	}
}

// GetOrFetch implements Cache. For concurrent misses on the same device id
// only one fetch executes; the other callers receive its result.
func (c *memoryCache) GetOrFetch(
	ctx context.Context,
	deviceID string,
	ttl time.Duration,
	fetchFn FetchFunc,
) (DeviceProfile, error) {
	if val, found := c.cache.Get(deviceID); found {
		if profile, ok := val.(DeviceProfile); ok {
			return profile, nil
		}
	}

	val, err, _ := c.group.Do(deviceID, func() (interface{}, error) {
		// Double-check after acquiring the singleflight slot; another
		// goroutine may have populated the entry already.
		if cached, found := c.cache.Get(deviceID); found {
			if profile, ok := cached.(DeviceProfile); ok {
				return profile, nil
			}
		}

		profile, err := fetchFn(ctx)
		if err != nil {
			return DeviceProfile{}, err
		}

		c.cache.Set(deviceID, profile, ttl)
		return profile, nil
	})
	if err != nil {
		return DeviceProfile{}, err
	}

	return val.(DeviceProfile), nil
}

// Forget implements Cache.
func (c *memoryCache) Forget(_ context.Context, deviceID string) error {
	c.cache.Delete(deviceID)
	return nil
}

// Clear implements Cache.
func (c *memoryCache) Clear(_ context.Context) error {
	c.cache.Flush()
	return nil
}

// Count implements Cache. The count may include profiles that have expired
// but have not been evicted yet; go-cache reconciles on cleanup.
func (c *memoryCache) Count(_ context.Context) (int, error) {
	return c.cache.ItemCount(), nil
}
