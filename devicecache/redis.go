package devicecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces profile keys so several services can share one Redis.
const keyPrefix = "device:profile:"

// lockTTL bounds how long a fetch may hold the distributed miss lock.
const lockTTL = 30 * time.Second

// redisCache is a Redis-backed implementation of Cache. Profiles are stored
// as JSON under a namespaced key. Stampede protection uses a SetNX lock: the
// lock winner fetches and populates the key, everyone else polls for the
// populated value with exponential backoff.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates a Redis-backed device profile cache. Use it when
// several gateway instances should share device first-seen state.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	profiles := devicecache.NewRedisCache(client)
//
// Parameters:
//   - client: The Redis client to store profiles through
//
// Returns:
//   - A new Redis-backed Cache instance
func NewRedisCache(client *redis.Client) Cache {
	return &redisCache{client: client}
}

// GetOrFetch implements Cache.
func (c *redisCache) GetOrFetch(
	ctx context.Context,
	deviceID string,
	ttl time.Duration,
	fetchFn FetchFunc,
) (DeviceProfile, error) {
	key := keyPrefix + deviceID

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var profile DeviceProfile
		if err := json.Unmarshal([]byte(val), &profile); err != nil {
			return DeviceProfile{}, fmt.Errorf("unmarshal cached profile: %w", err)
		}

		return profile, nil
	}

	if !errors.Is(err, redis.Nil) {
		return DeviceProfile{}, fmt.Errorf("redis get error: %w", err)
	}

	// Cache miss: race for the fetch lock.
	lockKey := key + ":lock"
	lockValue := fmt.Sprintf("%d", time.Now().UnixNano())

	acquired, err := c.client.SetNX(ctx, lockKey, lockValue, lockTTL).Result()
	if err != nil {
		return DeviceProfile{}, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		// Another caller is fetching; wait for it to populate the key.
		return c.waitForProfile(ctx, key, lockKey, lockTTL)
	}

	// Release with a background context so the lock is freed even when the
	// caller's context is already canceled; the Lua script verifies ownership.
	bgCtx := context.Background()
	defer func() {
		script := `
			if redis.call("get", KEYS[1]) == ARGV[1] then
				return redis.call("del", KEYS[1])
			else
				return 0
			end
		`
		c.client.Eval(bgCtx, script, []string{lockKey}, lockValue)
	}()

	profile, err := fetchFn(ctx)
	if err != nil {
		return DeviceProfile{}, fmt.Errorf("fetch function failed: %w", err)
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return DeviceProfile{}, fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := c.client.Set(bgCtx, key, data, ttl).Err(); err != nil {
		return DeviceProfile{}, fmt.Errorf("failed to cache profile: %w", err)
	}

	return profile, nil
}

// waitForProfile polls for a profile another caller is fetching, backing off
// exponentially from 10ms to 500ms. It gives up when the lock disappears
// without a populated value, when lockTTL elapses, or when ctx is canceled.
func (c *redisCache) waitForProfile(
	ctx context.Context,
	key string,
	lockKey string,
	timeout time.Duration,
) (DeviceProfile, error) {
	backoff := 10 * time.Millisecond
	maxBackoff := 500 * time.Millisecond
	deadline := time.Now().Add(timeout)

	for {
		select {
		case <-ctx.Done():
			return DeviceProfile{}, ctx.Err()
		default:
		}

		if time.Now().After(deadline) {
			return DeviceProfile{}, errors.New("timeout waiting for cached profile")
		}

		val, err := c.client.Get(ctx, key).Result()
		if err == nil {
			var profile DeviceProfile
			if err := json.Unmarshal([]byte(val), &profile); err != nil {
				return DeviceProfile{}, fmt.Errorf("unmarshal cached profile: %w", err)
			}

			return profile, nil
		}

		if !errors.Is(err, redis.Nil) {
			return DeviceProfile{}, fmt.Errorf("redis get error: %w", err)
		}

		// Lock gone without a value means the winner's fetch failed.
		exists, err := c.client.Exists(ctx, lockKey).Result()
		if err != nil {
			return DeviceProfile{}, fmt.Errorf("redis exists error: %w", err)
		}
		if exists == 0 {
			return DeviceProfile{}, errors.New("profile fetch failed in another caller")
		}

		select {
		case <-ctx.Done():
			return DeviceProfile{}, ctx.Err()
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Forget implements Cache.
func (c *redisCache) Forget(ctx context.Context, deviceID string) error {
	if err := c.client.Del(ctx, keyPrefix+deviceID).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}

	return nil
}

// Clear implements Cache. It scans for namespaced keys so unrelated data in
// the same Redis is untouched.
func (c *redisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if strings.HasSuffix(iter.Val(), ":lock") {
			continue
		}
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis del error: %w", err)
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan error: %w", err)
	}

	return nil
}

// Count implements Cache.
func (c *redisCache) Count(ctx context.Context) (int, error) {
	count := 0
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if strings.HasSuffix(iter.Val(), ":lock") {
			continue
		}
		count++
	}

	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan error: %w", err)
	}

	return count, nil
}
