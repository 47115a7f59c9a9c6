package gateway

import (
	"errors"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/telemetry-gateway/logger"
	"github.com/cyberinferno/telemetry-gateway/protocol"
	"github.com/cyberinferno/telemetry-gateway/session"
)

// readBufferSize is the per-connection read chunk size. Telemetry frames are
// short (well under 1 KiB), so one chunk usually carries several frames.
const readBufferSize = 4096

// connHandler owns one accepted socket for its whole life: classification,
// the read loop, acknowledgment writes and teardown all happen on its
// goroutine. The session registry is the only shared state it touches.
type connHandler struct {
	server       *Server
	conn         net.Conn
	connectionID string
	log          logger.Logger
	openedAt     time.Time
	sess         *session.Session
	lastSequence string
	closed       atomic.Bool
}

// newConnHandler prepares a handler for a freshly accepted connection. The
// connection id is the peer "ip:port"; connSeq is a process-wide correlation
// number carried in every log entry for the connection.
func newConnHandler(s *Server, connSeq uint32, conn net.Conn) *connHandler {
	remote := conn.RemoteAddr().String()
	return &connHandler{
		server:       s,
		conn:         conn,
		connectionID: remote,
		openedAt:     time.Now(),
		log: s.Log.With(
			logger.Field{Key: "conn_seq", Value: connSeq},
			logger.Field{Key: "remote", Value: remote}),
	}
}

// handle runs the connection to completion. Lifecycle: Connecting until the
// first bytes arrive, then one-shot classification into a health probe or a
// protocol session, then the frame loop until socket close, error or the
// idle deadline.
func (h *connHandler) handle() {
	defer h.finish()

	buf := make([]byte, readBufferSize)

	// Pre-classification timer: sockets that send nothing are dropped and
	// no session ever exists for them.
	_ = h.conn.SetReadDeadline(h.openedAt.Add(h.server.classificationTimeout()))

	n, err := h.conn.Read(buf)
	if err != nil {
		if isTimeout(err) {
			h.log.Warn("classification timeout, dropping silent socket")
		} else {
			h.log.Debug("socket closed before classification",
				logger.Field{Key: "error", Value: err.Error()})
		}
		return
	}

	firstChunk := buf[:n]
	if IsHTTPProbe(firstChunk) {
		h.serveHealthCheck()
		return
	}

	// Protocol traffic: create and register the session. A refused insert is
	// connection-fatal with no protocol interaction.
	sess := session.New(h.connectionID, time.Now())
	if !h.server.Registry.TryInsert(h.connectionID, sess) {
		h.log.Warn("connection cap reached, rejecting connection")
		return
	}
	h.sess = sess
	h.log.Info("protocol connection established",
		logger.Field{Key: "state", Value: sess.State().String()})

	// Connection life is a fixed countdown from TCP-level setup, not a
	// sliding window: receiving frames does not extend it.
	_ = h.conn.SetReadDeadline(h.openedAt.Add(h.server.idleTimeout()))

	// The first chunk is handed onward as if it had arrived normally.
	leftover, err := h.process(sess, firstChunk, nil)
	if err != nil {
		h.log.Warn("socket write failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	for {
		n, err := h.conn.Read(buf)
		if n > 0 {
			leftover, err = h.process(sess, buf[:n], leftover)
			if err != nil {
				h.log.Warn("socket write failed", logger.Field{Key: "error", Value: err.Error()})
				return
			}
		}
		if err != nil {
			switch {
			case isTimeout(err):
				h.log.Info("connection life exceeded, closing")
			case errors.Is(err, net.ErrClosed):
				h.log.Debug("connection closed")
			default:
				h.log.Debug("read ended", logger.Field{Key: "error", Value: err.Error()})
			}
			return
		}
	}
}

// process splits buffered bytes into frames and runs each through decode,
// session accounting, dispatch and acknowledgment. Decode errors are
// frame-local: the failing frame is logged and skipped, no ack is sent for
// it, and processing continues in arrival order. Only a failed socket write
// is returned as an error, because the connection is unusable after it.
func (h *connHandler) process(sess *session.Session, data, leftover []byte) ([]byte, error) {
	combined := append(leftover, data...)
	frames, rest := protocol.SplitFrames(combined)

	for _, text := range frames {
		frame, err := protocol.Decode(text)
		if err != nil {
			h.log.Warn("frame rejected",
				logger.Field{Key: "error", Value: err.Error()},
				logger.Field{Key: "raw", Value: text})
			continue
		}

		sess.RecordFrame()
		category := h.server.Router.Dispatch(sess, frame)
		if sess.DeviceID != "" {
			h.server.Stats.DeviceSeen(sess.DeviceID)
		}

		h.log.Debug("frame processed",
			logger.Field{Key: "kind", Value: frame.Kind.String()},
			logger.Field{Key: "command", Value: frame.CommandWord},
			logger.Field{Key: "category", Value: category.String()},
			logger.Field{Key: "seq", Value: frame.SequenceNumber})

		if err := h.maybeAck(frame); err != nil {
			return nil, err
		}
	}

	return rest, nil
}

// maybeAck sends the acknowledgment a frame requires, subject to the
// server's ack mode. Mode 0 suppresses all acks. Mode 1 additionally flags a
// device repeating the previous sequence number; the repeat is still
// acknowledged, since the device is presumed to be retrying a lost ack.
func (h *connHandler) maybeAck(frame protocol.Frame) error {
	if h.server.AckMode == protocol.AckModeNever || !protocol.NeedsAck(frame) {
		return nil
	}

	if h.server.AckMode == protocol.AckModeVerifySequence &&
		frame.SequenceNumber != "" && frame.SequenceNumber == h.lastSequence {
		h.log.Warn("repeated sequence number",
			logger.Field{Key: "seq", Value: frame.SequenceNumber},
			logger.Field{Key: "command", Value: frame.CommandWord})
	}
	h.lastSequence = frame.SequenceNumber

	ack := protocol.BuildAck(frame)
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := h.conn.Write([]byte(ack)); err != nil {
		return err
	}

	return nil
}

// serveHealthCheck answers an HTTP probe with a synthesized 200 response and
// lets teardown close the socket. No session is created and no further bytes
// are read.
func (h *connHandler) serveHealthCheck() {
	now := time.Now()
	snapshot := HealthSnapshot{
		Status:      "ok",
		Uptime:      int64(h.server.Stats.Uptime(now).Seconds()),
		Connections: h.server.Registry.Len(),
		Devices:     h.server.Stats.DeviceCount(),
		Timestamp:   now.UTC().Format(time.RFC3339),
	}

	_ = h.conn.SetWriteDeadline(now.Add(writeTimeout))
	if err := WriteHealthResponse(h.conn, snapshot); err != nil {
		h.log.Warn("health response failed", logger.Field{Key: "error", Value: err.Error()})
		return
	}

	h.log.Debug("health check answered",
		logger.Field{Key: "connections", Value: snapshot.Connections},
		logger.Field{Key: "devices", Value: snapshot.Devices})
}

// finish tears the connection down exactly once: the socket is closed, the
// session (if one was registered) is removed from the registry, moved to
// Closed, and reported to collaborators with its final counters. The
// registry's remove-once semantics make a racing teardown a no-op.
func (h *connHandler) finish() {
	h.close()
	h.server.handlers.Delete(h.connectionID)

	if h.sess == nil {
		return
	}

	removed, ok := h.server.Registry.Remove(h.connectionID)
	if !ok {
		return
	}

	now := time.Now()
	removed.Close()
	h.server.Router.Disconnect(removed, now)
	h.log.Info("session closed",
		logger.Field{Key: "device_id", Value: removed.DeviceID},
		logger.Field{Key: "messages", Value: removed.MessageCount},
		logger.Field{Key: "duration", Value: removed.Duration(now).String()})
}

// close closes the socket once; later calls are no-ops.
func (h *connHandler) close() {
	if h.closed.CompareAndSwap(false, true) {
		_ = h.conn.Close()
	}
}

// isTimeout reports whether err is a deadline expiry.
func isTimeout(err error) bool {
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
