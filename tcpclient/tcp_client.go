// Package tcpclient provides an event-driven TCP client for the telemetry
// wire protocol. Callers register handlers for received frames and connection
// close, then connect and send frame text. The gateway's integration tests
// use it as the device side of a connection; it is equally usable as the
// core of a device simulator.
package tcpclient

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"
)

// FrameHandler is called with each complete '$'-terminated frame read from
// the connection. Handlers run on the client's read goroutine; keep them
// short or hand the frame off.
type FrameHandler func(frameText string)

// CloseHandler is called once when the connection ends. err is nil when the
// client closed the connection itself.
type CloseHandler func(err error)

// Config holds the client's connection settings.
type Config struct {
	// Address is the "host:port" to connect to.
	Address string
	// ConnectTimeout bounds the dial; 0 means no timeout.
	ConnectTimeout time.Duration
	// WriteTimeout bounds each Send; 0 means no timeout.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config for the given address with 10-second
// connect and write timeouts.
//
// Parameters:
//   - address: The "host:port" to connect to
//
// Returns:
//   - A Config with default timeouts
func DefaultConfig(address string) Config {
	return Config{
		Address:        address,
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   10 * time.Second,
	}
}

// Client is an event-driven TCP client speaking the '$'-terminated text
// protocol. It is safe for concurrent use.
type Client struct {
	config Config

	onFrame FrameHandler
	onClose CloseHandler

	mu     sync.Mutex
	conn   net.Conn
	closed bool
	wg     sync.WaitGroup
}

// New creates a client with the given config. Register handlers before
// calling Connect.
//
// Parameters:
//   - config: Connection settings (e.g. from DefaultConfig)
//
// Returns:
//   - A new Client; call Close when done to release resources
func New(config Config) *Client {
	return &Client{config: config}
}

// OnFrame registers the handler for received frames. Only one handler is
// active; repeated calls replace the previous handler.
//
// Parameters:
//   - handler: Function called with each complete frame text
func (c *Client) OnFrame(handler FrameHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFrame = handler
}

// OnClose registers the handler called once when the connection ends.
//
// Parameters:
//   - handler: Function called with the terminating error, nil on local close
func (c *Client) OnClose(handler CloseHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = handler
}

// Connect dials the configured address and starts the read goroutine.
//
// Returns:
//   - An error if the client is closed, already connected, or the dial fails
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("client is closed")
	}
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	conn, err := net.DialTimeout("tcp", c.config.Address, c.config.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.config.Address, err)
	}

	c.conn = conn
	c.wg.Add(1)
	go c.readLoop(conn)

	return nil
}

// Send writes frame text to the connection. The text is sent as-is; callers
// include the terminator.
//
// Parameters:
//   - frameText: The bytes to send
//
// Returns:
//   - An error if not connected or the write fails
func (c *Client) Send(frameText string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	_, err := conn.Write([]byte(frameText))
	return err
}

// Close closes the connection and waits for the read goroutine to finish.
// Idempotent; calling Close multiple times is safe.
//
// Returns:
//   - nil
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.wg.Wait()

	return nil
}

// readLoop reads '$'-terminated frames until the connection ends, emitting
// each to the frame handler and the terminating error to the close handler.
func (c *Client) readLoop(conn net.Conn) {
	defer c.wg.Done()

	reader := bufio.NewReader(conn)
	for {
		frame, err := reader.ReadString('$')
		if frame != "" {
			c.emitFrame(frame)
		}
		if err != nil {
			c.emitClose(err)
			return
		}
	}
}

// emitFrame delivers a frame to the registered handler, if any.
func (c *Client) emitFrame(frameText string) {
	c.mu.Lock()
	handler := c.onFrame
	c.mu.Unlock()

	if handler != nil {
		handler(frameText)
	}
}

// emitClose delivers the terminating error to the registered handler. A
// close initiated by Close itself is reported as nil.
func (c *Client) emitClose(err error) {
	c.mu.Lock()
	handler := c.onClose
	closed := c.closed
	c.mu.Unlock()

	if handler == nil {
		return
	}
	if closed {
		err = nil
	}

	handler(err)
}
