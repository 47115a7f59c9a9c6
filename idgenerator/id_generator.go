// Package idgenerator provides a concurrency-safe monotonic id source. The
// gateway assigns one id per accepted connection and carries it as a log
// correlation field for the connection's lifetime.
package idgenerator

import "sync/atomic"

// IdGenerator generates monotonically increasing uint32 IDs in a concurrency-safe
// manner. Each call to Id returns the next ID. The first Id() returns 1, so 0
// can be reserved to mean "no connection".
type IdGenerator struct {
	id atomic.Uint32
}

// NewIdGenerator creates an IdGenerator whose first Id() returns 1.
// The generator is safe for concurrent use.
//
// Returns:
//   - A new IdGenerator instance
func NewIdGenerator() *IdGenerator {
	return &IdGenerator{}
}

// Id returns the next unique ID by atomically incrementing the internal counter.
// It is safe for concurrent use by multiple goroutines.
//
// Returns:
//   - The next uint32 ID
func (l *IdGenerator) Id() uint32 {
	return l.id.Add(1)
}
