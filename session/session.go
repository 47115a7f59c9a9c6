// Package session tracks per-connection state for the telemetry gateway: the
// connection's lifecycle state machine, the device identity reported in-band,
// and liveness counters. A Session is owned exclusively by its connection's
// handler goroutine and needs no locking of its own; the Registry is the only
// shared structure.
package session

import "time"

// State is the lifecycle state of a connection. Transitions only move
// forward: Connecting -> Identifying -> Active -> Closed. Nothing leaves
// Closed.
type State int

const (
	// StateConnecting means the socket is open but the first bytes have not
	// been classified yet. No Session exists in this state; it belongs to the
	// connection handler's pre-classification phase.
	StateConnecting State = iota
	// StateIdentifying means the connection was classified as protocol
	// traffic but no frame has carried a device identifier yet.
	StateIdentifying
	// StateActive means the device identifier is known.
	StateActive
	// StateClosed is terminal: teardown has begun and the Session must not
	// be mutated further.
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateIdentifying:
		return "Identifying"
	case StateActive:
		return "Active"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session is the per-connection mutable state. It is created when the
// classifier confirms protocol traffic and discarded after removal from the
// Registry. DeviceID is set exactly once (first-writer-wins); later frames
// reporting a different identifier do not change it.
type Session struct {
	// ConnectionID is derived from the peer address and port, unique for the
	// connection's lifetime.
	ConnectionID string
	// DeviceID is the device's permanent identifier, empty until the first
	// frame carrying one.
	DeviceID string
	// DeviceName is the device-supplied label, set alongside DeviceID.
	DeviceName string
	// OpenedAt is when the session was created.
	OpenedAt time.Time
	// LastHeartbeatAt is when the last heartbeat command was processed;
	// zero until the first heartbeat.
	LastHeartbeatAt time.Time
	// MessageCount counts successfully decoded frames.
	MessageCount uint64

	state State
}

// New creates a Session for a connection that has just been classified as
// protocol traffic. The session starts in StateIdentifying.
//
// Parameters:
//   - connectionID: The connection identifier (peer "ip:port")
//   - now: The session creation time
//
// Returns:
//   - The new Session
func New(connectionID string, now time.Time) *Session {
	return &Session{
		ConnectionID: connectionID,
		OpenedAt:     now,
		state:        StateIdentifying,
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Alive reports whether teardown has not yet begun.
func (s *Session) Alive() bool {
	return s.state != StateClosed
}

// Identify records the device identity reported by a frame. The first call
// with a non-empty deviceID wins and moves the session to StateActive; every
// later call is a no-op regardless of the identifier it carries.
//
// Parameters:
//   - deviceID: The device identifier from the frame; ignored if empty
//   - deviceName: The device label from the same frame
//
// Returns:
//   - true if this call established the identity, false otherwise
func (s *Session) Identify(deviceID, deviceName string) bool {
	if deviceID == "" || s.DeviceID != "" || s.state == StateClosed {
		return false
	}

	s.DeviceID = deviceID
	s.DeviceName = deviceName
	if s.state == StateIdentifying {
		s.state = StateActive
	}

	return true
}

// RecordFrame increments the decoded-frame counter. Frames that fail to
// decode are not counted.
func (s *Session) RecordFrame() {
	if s.state == StateClosed {
		return
	}

	s.MessageCount++
}

// TouchHeartbeat records the processing time of a heartbeat command.
//
// Parameters:
//   - now: The heartbeat processing time
func (s *Session) TouchHeartbeat(now time.Time) {
	if s.state == StateClosed {
		return
	}

	s.LastHeartbeatAt = now
}

// Close moves the session to StateClosed. Only the first call has effect;
// the session must not be mutated afterwards.
//
// Returns:
//   - true if this call performed the transition, false if already closed
func (s *Session) Close() bool {
	if s.state == StateClosed {
		return false
	}

	s.state = StateClosed
	return true
}

// Duration returns how long the connection has been (or was) open.
//
// Parameters:
//   - now: The reference time, typically the disconnect time
//
// Returns:
//   - The elapsed time since the session was created
func (s *Session) Duration(now time.Time) time.Duration {
	return now.Sub(s.OpenedAt)
}
