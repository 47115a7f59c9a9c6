package session

import (
	"sync/atomic"

	"github.com/cyberinferno/telemetry-gateway/safemap"
)

// Registry is the concurrent-safe mapping of connection identifier to
// Session, shared by all connection handlers. It enforces a hard connection
// cap: insertion beyond the cap is refused and the caller must reject the
// connection without creating protocol state. Removal is idempotent so the
// close, error and timeout teardown paths can race safely.
type Registry struct {
	sessions *safemap.SafeMap[string, *Session]
	count    atomic.Int64
	capacity int64
}

// NewRegistry creates a Registry that admits at most maxConnections live
// sessions.
//
// Parameters:
//   - maxConnections: The connection cap; must be positive
//
// Returns:
//   - A new empty Registry
func NewRegistry(maxConnections int) *Registry {
	return &Registry{
		sessions: safemap.NewSafeMap[string, *Session](),
		capacity: int64(maxConnections),
	}
}

// TryInsert registers a session under its connection id. The slot is
// reserved atomically before the session is stored, so concurrent inserts
// can never exceed the cap.
//
// Parameters:
//   - connectionID: The connection identifier
//   - s: The session to register
//
// Returns:
//   - true if the session was registered, false if the registry is at capacity
func (r *Registry) TryInsert(connectionID string, s *Session) bool {
	if r.count.Add(1) > r.capacity {
		r.count.Add(-1)
		return false
	}

	r.sessions.Store(connectionID, s)
	return true
}

// Get returns the session registered under the given connection id.
//
// Parameters:
//   - connectionID: The connection identifier to look up
//
// Returns:
//   - The session and true if found, or nil and false otherwise
func (r *Registry) Get(connectionID string) (*Session, bool) {
	return r.sessions.Load(connectionID)
}

// Remove unregisters and returns the session for the given connection id so
// the caller can compute final statistics. A second removal for the same id
// is a no-op: exactly one caller observes the session.
//
// Parameters:
//   - connectionID: The connection identifier to remove
//
// Returns:
//   - The removed session, or nil if it was already removed or never inserted
//   - true if this call removed the session, false otherwise
func (r *Registry) Remove(connectionID string) (*Session, bool) {
	s, removed := r.sessions.LoadAndDelete(connectionID)
	if removed {
		r.count.Add(-1)
	}

	return s, removed
}

// Len returns the number of live sessions.
//
// Returns:
//   - The current session count
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Range calls f for each live session until f returns false.
//
// Parameters:
//   - f: Function called for each connection id and session
func (r *Registry) Range(f func(connectionID string, s *Session) bool) {
	r.sessions.Range(f)
}
