// Package devicecache caches device profiles keyed by the permanent device
// identifier. The gateway consults it when a connection first identifies its
// device, so reconnect storms do not hammer the profile source: concurrent
// lookups for the same device collapse into a single fetch.
package devicecache

import (
	"context"
	"time"
)

// DeviceProfile is the cached record for one telemetry device.
type DeviceProfile struct {
	// DeviceID is the permanent device identifier.
	DeviceID string `json:"device_id"`
	// Label is the human-readable device name last reported or resolved.
	Label string `json:"label"`
	// FirstSeen is when the device was first observed by this process (or,
	// with the Redis backend, by any gateway sharing the store).
	FirstSeen time.Time `json:"first_seen"`
}

// FetchFunc resolves a profile on a cache miss. It receives a context for
// cancellation and timeout control and returns the profile or an error.
type FetchFunc func(ctx context.Context) (DeviceProfile, error)

// Cache stores device profiles with a TTL. Implementations are safe for
// concurrent use and must prevent cache stampede: concurrent misses for the
// same device identifier execute the fetch at most once.
type Cache interface {
	// GetOrFetch retrieves the profile for a device, or fetches it with
	// fetchFn if it is not cached, storing the result for ttl.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - deviceID: The device identifier to look up
	//   - ttl: Time-to-live for a freshly fetched profile
	//   - fetchFn: Function resolving the profile on a miss
	//
	// Returns:
	//   - The cached or fetched profile
	//   - An error if retrieval or fetching fails
	GetOrFetch(ctx context.Context, deviceID string, ttl time.Duration, fetchFn FetchFunc) (DeviceProfile, error)

	// Forget removes a device's profile from the cache.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - deviceID: The device identifier to remove
	//
	// Returns:
	//   - An error if the operation fails
	Forget(ctx context.Context, deviceID string) error

	// Clear removes all cached profiles.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - An error if the operation fails
	Clear(ctx context.Context) error

	// Count returns the number of cached profiles.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//
	// Returns:
	//   - The number of cached profiles
	//   - An error if the operation fails
	Count(ctx context.Context) (int, error)
}
