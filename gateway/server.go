// Package gateway wires the telemetry ingestion server together: it owns the
// listening socket, classifies new connections as protocol traffic or HTTP
// health probes, runs one handler goroutine per connection, and applies the
// classification and idle timeouts. Frame decoding lives in package protocol,
// downstream fan-out in package dispatch.
package gateway

import (
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/telemetry-gateway/dispatch"
	"github.com/cyberinferno/telemetry-gateway/idgenerator"
	"github.com/cyberinferno/telemetry-gateway/logger"
	"github.com/cyberinferno/telemetry-gateway/protocol"
	"github.com/cyberinferno/telemetry-gateway/safemap"
	"github.com/cyberinferno/telemetry-gateway/session"
)

// Default timeouts applied when the corresponding Server field is zero.
const (
	// DefaultClassificationTimeout drops sockets that send nothing before
	// classification.
	DefaultClassificationTimeout = 5 * time.Second
	// DefaultIdleTimeout is the post-classification connection life.
	DefaultIdleTimeout = 30 * time.Minute
	// writeTimeout bounds each acknowledgment or health-response write; the
	// only back-pressure applied is this socket writability check.
	writeTimeout = 10 * time.Second
)

// Server is the TCP ingestion gateway. It accepts device connections,
// delegates each to a connection handler goroutine, and supports graceful
// stop. All collaborators are injected; the Server owns no global state.
type Server struct {
	// Log receives server lifecycle and per-connection events.
	Log logger.Logger
	// Addr is the "host:port" to listen on.
	Addr string
	// AckMode controls acknowledgment sending (never / verify / always).
	AckMode protocol.AckMode
	// ClassificationTimeout drops sockets silent before classification;
	// DefaultClassificationTimeout when zero.
	ClassificationTimeout time.Duration
	// IdleTimeout is the fixed connection life after classification;
	// DefaultIdleTimeout when zero. It is a countdown from connection setup,
	// not a sliding window: receiving frames does not extend it.
	IdleTimeout time.Duration
	// Registry holds the protocol sessions and enforces the connection cap.
	Registry *session.Registry
	// Router forwards decoded frames to downstream collaborators.
	Router *dispatch.Router
	// Stats feeds the health-check counters.
	Stats *Stats
	// Listener is set by Start.
	Listener net.Listener
	// Running reports whether the accept loop is live.
	Running atomic.Bool

	connIds  *idgenerator.IdGenerator
	handlers *safemap.SafeMap[string, *connHandler]
}

// Start binds the listener and begins accepting connections in a goroutine.
// It is safe to call only when the server is not already running.
//
// Returns:
//   - An error if the server is already running or if listening on Addr fails
func (s *Server) Start() error {
	if s.Running.Load() {
		s.Log.Error("server already running")
		return fmt.Errorf("gateway on %s already running", s.Addr)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Log.Error("server failed to start", logger.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("gateway failed to listen on %s: %w", s.Addr, err)
	}

	s.Listener = ln
	s.connIds = idgenerator.NewIdGenerator()
	s.handlers = safemap.NewSafeMap[string, *connHandler]()
	s.Running.Store(true)

	s.Log.Info("gateway started",
		logger.Field{Key: "addr", Value: ln.Addr().String()},
		logger.Field{Key: "ack_mode", Value: int(s.AckMode)})
	go s.AcceptLoop()

	return nil
}

// Stop stops the server: it closes the listener and every live connection.
// Safe to call when the server is not running.
func (s *Server) Stop() {
	if !s.Running.Load() {
		s.Log.Info("gateway not running")
		return
	}

	s.Running.Store(false)
	if s.Listener != nil {
		_ = s.Listener.Close()
	}

	s.handlers.Range(func(key string, h *connHandler) bool {
		h.close()
		return true
	})

	s.Log.Info("gateway stopped")
}

// AcceptLoop accepts incoming connections until the server stops. Each
// connection gets a correlation id and its own handler goroutine; all
// protocol work, including classification and the capacity check, happens
// in the handler.
func (s *Server) AcceptLoop() {
	for s.Running.Load() {
		conn, err := s.Listener.Accept()
		if err != nil {
			if !s.Running.Load() {
				return
			}

			s.Log.Error("accept error", logger.Field{Key: "error", Value: err.Error()})
			continue
		}

		h := newConnHandler(s, s.connIds.Id(), conn)
		s.handlers.Store(h.connectionID, h)
		go h.handle()
	}
}

// classificationTimeout returns the effective pre-classification timeout.
func (s *Server) classificationTimeout() time.Duration {
	if s.ClassificationTimeout > 0 {
		return s.ClassificationTimeout
	}

	return DefaultClassificationTimeout
}

// idleTimeout returns the effective post-classification connection life.
func (s *Server) idleTimeout() time.Duration {
	if s.IdleTimeout > 0 {
		return s.IdleTimeout
	}

	return DefaultIdleTimeout
}
