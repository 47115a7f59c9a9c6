package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// httpTokens mark a first packet as an HTTP health probe rather than
// protocol traffic. Classification happens once per connection, on the first
// data event; device frames always start with a '+' prefix and contain none
// of these.
var httpTokens = [][]byte{
	[]byte("HTTP/"),
	[]byte("GET "),
	[]byte("HEAD "),
	[]byte("POST "),
	[]byte("PUT "),
	[]byte("OPTIONS "),
	[]byte("User-Agent:"),
}

// IsHTTPProbe reports whether the first chunk of bytes on a new connection
// looks like an HTTP request (a load balancer or monitoring probe) instead
// of telemetry protocol traffic.
//
// Parameters:
//   - firstChunk: The first bytes received on the connection
//
// Returns:
//   - true if the chunk contains an HTTP request line or header token
func IsHTTPProbe(firstChunk []byte) bool {
	for _, token := range httpTokens {
		if bytes.Contains(firstChunk, token) {
			return true
		}
	}

	return false
}

// HealthSnapshot is the JSON body returned to HTTP health probes.
type HealthSnapshot struct {
	// Status is always "ok" while the process can answer at all.
	Status string `json:"status"`
	// Uptime is the process uptime in whole seconds.
	Uptime int64 `json:"uptime"`
	// Connections is the number of live protocol sessions.
	Connections int `json:"connections"`
	// Devices is the number of distinct devices identified since start.
	Devices int `json:"devices"`
	// Timestamp is the reply time in RFC 3339 form.
	Timestamp string `json:"timestamp"`
}

// WriteHealthResponse synthesizes a minimal HTTP 200 response carrying the
// snapshot as a JSON body and writes it to w. The caller closes the socket
// afterwards; no Session is ever created for a health probe.
//
// Parameters:
//   - w: The connection to write the response to
//   - snapshot: The health data to report
//
// Returns:
//   - An error if marshaling or the socket write fails
func WriteHealthResponse(w io.Writer, snapshot HealthSnapshot) error {
	body, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal health snapshot: %w", err)
	}

	head := fmt.Sprintf(
		"HTTP/1.1 200 OK\r\nContent-Type: application/json\r\nContent-Length: %d\r\nConnection: close\r\n\r\n",
		len(body))

	if _, err := w.Write(append([]byte(head), body...)); err != nil {
		return fmt.Errorf("write health response: %w", err)
	}

	return nil
}
