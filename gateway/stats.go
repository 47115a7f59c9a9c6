package gateway

import (
	"time"

	"github.com/cyberinferno/telemetry-gateway/safeset"
)

// Stats tracks process-level counters reported by the health check: process
// start time and the distinct device identifiers seen since start. Live
// connection counts come from the session registry, not from here.
type Stats struct {
	startedAt time.Time
	devices   *safeset.SafeSet[string]
}

// NewStats creates a Stats anchored at the given start time.
//
// Parameters:
//   - startedAt: The process start time used for uptime reporting
//
// Returns:
//   - A new Stats instance
func NewStats(startedAt time.Time) *Stats {
	return &Stats{
		startedAt: startedAt,
		devices:   safeset.NewSafeSet[string](),
	}
}

// Uptime returns how long the process has been running.
//
// Parameters:
//   - now: The current time
//
// Returns:
//   - The elapsed time since start
func (s *Stats) Uptime(now time.Time) time.Duration {
	return now.Sub(s.startedAt)
}

// DeviceSeen records that a device identifier was observed. Repeat
// observations of the same identifier are no-ops.
//
// Parameters:
//   - deviceID: The identified device
func (s *Stats) DeviceSeen(deviceID string) {
	if deviceID == "" {
		return
	}

	s.devices.Add(deviceID)
}

// DeviceCount returns the number of distinct devices identified since start.
//
// Returns:
//   - The distinct identified-device count
func (s *Stats) DeviceCount() int {
	return s.devices.Size()
}
