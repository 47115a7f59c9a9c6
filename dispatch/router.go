package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/cyberinferno/telemetry-gateway/devicecache"
	"github.com/cyberinferno/telemetry-gateway/logger"
	"github.com/cyberinferno/telemetry-gateway/protocol"
	"github.com/cyberinferno/telemetry-gateway/session"
)

// DeviceIdentity names the device behind a connection as known at the time
// of a notification. DeviceID is empty while the session is still identifying.
type DeviceIdentity struct {
	ConnectionID string
	DeviceID     string
	DeviceName   string
}

// DisconnectStats carries the final counters reported when a connection ends.
type DisconnectStats struct {
	// MessageCount is the number of successfully decoded frames.
	MessageCount uint64
	// Duration is how long the connection was open.
	Duration time.Duration
}

// Collaborator receives the gateway's downstream notifications. Persistence
// and alerting live behind this interface; implementations own their latency
// and retry policy. A failing collaborator never aborts frame processing.
type Collaborator interface {
	// DeviceIdentified is called exactly once per session, when the first
	// frame carrying a non-empty device identifier arrives, before that
	// frame's own FrameReceived notification.
	//
	// Parameters:
	//   - identity: The newly established device identity
	//
	// Returns:
	//   - An error if the collaborator could not process the notification
	DeviceIdentified(identity DeviceIdentity) error

	// FrameReceived is called for every successfully decoded frame, in the
	// frame's arrival order within its connection.
	//
	// Parameters:
	//   - identity: The device identity as currently known
	//   - category: The frame's semantic category
	//   - frame: The decoded frame
	//
	// Returns:
	//   - An error if the collaborator could not process the notification
	FrameReceived(identity DeviceIdentity, category Category, frame protocol.Frame) error

	// Disconnected is called exactly once when the connection ends, with the
	// session's final counters.
	//
	// Parameters:
	//   - identity: The device identity as last known
	//   - stats: The final message count and connection duration
	//
	// Returns:
	//   - An error if the collaborator could not process the notification
	Disconnected(identity DeviceIdentity, stats DisconnectStats) error
}

// Router classifies decoded frames and forwards them to collaborators. Each
// collaborator call is isolated: errors and panics are logged and processing
// continues with the next collaborator and the next frame.
//
// Fields are set once before use; Router itself keeps no mutable state, so a
// single Router is shared by all connection handlers.
type Router struct {
	// Log receives collaborator failure reports.
	Log logger.Logger
	// Collaborators are notified in order on every hook.
	Collaborators []Collaborator
	// Profiles, when non-nil, caches a device profile the first time each
	// device identifies itself.
	Profiles devicecache.Cache
	// ProfileTTL is the cache TTL for fetched profiles.
	ProfileTTL time.Duration
	// Now reports the current time; defaults to time.Now when nil.
	Now func() time.Time
}

// Dispatch classifies one decoded frame, updates the owning session and
// notifies collaborators. On a heartbeat it refreshes the session's heartbeat
// time. The first frame with a non-empty device identifier establishes the
// session identity and triggers the one-time DeviceIdentified notification
// before the frame's own category notification.
//
// Parameters:
//   - sess: The session owning the connection the frame arrived on
//   - frame: The decoded frame
//
// Returns:
//   - The frame's semantic category
func (r *Router) Dispatch(sess *session.Session, frame protocol.Frame) Category {
	now := r.clock()
	category := Classify(frame.CommandWord)

	if category == CategoryHeartbeat {
		sess.TouchHeartbeat(now)
	}

	if sess.Identify(frame.DeviceID, frame.DeviceName) {
		r.rememberProfile(sess, now)

		identity := identityOf(sess)
		r.notify("device identified", func(c Collaborator) error {
			return c.DeviceIdentified(identity)
		})
	}

	identity := identityOf(sess)
	r.notify("frame received", func(c Collaborator) error {
		return c.FrameReceived(identity, category, frame)
	})

	return category
}

// Disconnect reports the end of a connection to collaborators with the
// session's final counters. The caller guarantees it runs at most once per
// session (the registry's remove-once semantics).
//
// Parameters:
//   - sess: The closed session
//   - now: The disconnect time
func (r *Router) Disconnect(sess *session.Session, now time.Time) {
	identity := identityOf(sess)
	stats := DisconnectStats{
		MessageCount: sess.MessageCount,
		Duration:     sess.Duration(now),
	}

	r.notify("disconnected", func(c Collaborator) error {
		return c.Disconnected(identity, stats)
	})
}

// rememberProfile records the device in the profile cache, collapsing
// concurrent reconnects of the same device into one entry.
func (r *Router) rememberProfile(sess *session.Session, now time.Time) {
	if r.Profiles == nil {
		return
	}

	deviceID, label := sess.DeviceID, sess.DeviceName
	_, err := r.Profiles.GetOrFetch(context.Background(), deviceID, r.ProfileTTL,
		func(ctx context.Context) (devicecache.DeviceProfile, error) {
			return devicecache.DeviceProfile{
				DeviceID:  deviceID,
				Label:     label,
				FirstSeen: now,
			}, nil
		})
	if err != nil {
		r.Log.Warn("device profile cache error",
			logger.Field{Key: "device_id", Value: deviceID},
			logger.Field{Key: "error", Value: err.Error()})
	}
}

// notify invokes fn for every collaborator, isolating failures so a slow or
// broken collaborator cannot abort frame processing.
func (r *Router) notify(hook string, fn func(Collaborator) error) {
	for _, c := range r.Collaborators {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.Log.Error("collaborator panic",
						logger.Field{Key: "hook", Value: hook},
						logger.Field{Key: "panic", Value: fmt.Sprint(p)})
				}
			}()

			if err := fn(c); err != nil {
				r.Log.Error("collaborator error",
					logger.Field{Key: "hook", Value: hook},
					logger.Field{Key: "error", Value: err.Error()})
			}
		}()
	}
}

// clock returns the router's time source.
func (r *Router) clock() time.Time {
	if r.Now != nil {
		return r.Now()
	}

	return time.Now()
}

// identityOf snapshots the session's device identity for a notification.
func identityOf(sess *session.Session) DeviceIdentity {
	return DeviceIdentity{
		ConnectionID: sess.ConnectionID,
		DeviceID:     sess.DeviceID,
		DeviceName:   sess.DeviceName,
	}
}
