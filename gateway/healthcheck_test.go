package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsHTTPProbe(t *testing.T) {
	t.Run("http request lines are probes", func(t *testing.T) {
		assert.True(t, IsHTTPProbe([]byte("GET / HTTP/1.1\r\nHost: gw\r\n\r\n")))
		assert.True(t, IsHTTPProbe([]byte("HEAD /health HTTP/1.0\r\n")))
		assert.True(t, IsHTTPProbe([]byte("POST /x HTTP/1.1\r\n")))
	})

	t.Run("user agent header alone is a probe", func(t *testing.T) {
		assert.True(t, IsHTTPProbe([]byte("User-Agent: kube-probe/1.29\r\n")))
	})

	t.Run("protocol frames are not probes", func(t *testing.T) {
		assert.False(t, IsHTTPProbe([]byte("+ACK:GTHBD,80200A0303,865585040014007,GL33CG,20190517022529,0029$")))
		assert.False(t, IsHTTPProbe([]byte("+RESP:GTFRI,")))
	})

	t.Run("empty chunk is not a probe", func(t *testing.T) {
		assert.False(t, IsHTTPProbe(nil))
	})
}

func TestWriteHealthResponse(t *testing.T) {
	var buf bytes.Buffer
	snapshot := HealthSnapshot{
		Status:      "ok",
		Uptime:      42,
		Connections: 3,
		Devices:     2,
		Timestamp:   "2019-05-17T02:25:29Z",
	}

	require.NoError(t, WriteHealthResponse(&buf, snapshot))

	raw := buf.String()
	assert.True(t, strings.HasPrefix(raw, "HTTP/1.1 200 OK\r\n"))
	assert.Contains(t, raw, "Content-Type: application/json\r\n")
	assert.Contains(t, raw, "Connection: close\r\n")

	parts := strings.SplitN(raw, "\r\n\r\n", 2)
	require.Len(t, parts, 2)

	var decoded HealthSnapshot
	require.NoError(t, json.Unmarshal([]byte(parts[1]), &decoded))
	assert.Equal(t, snapshot, decoded)
	assert.Contains(t, parts[0], "Content-Length: "+strconv.Itoa(len(parts[1])))
}

func TestStats(t *testing.T) {
	start := time.Date(2019, 5, 17, 2, 0, 0, 0, time.UTC)
	s := NewStats(start)

	assert.Equal(t, 5*time.Minute, s.Uptime(start.Add(5*time.Minute)))
	assert.Equal(t, 0, s.DeviceCount())

	s.DeviceSeen("865585040014007")
	s.DeviceSeen("865585040014007")
	s.DeviceSeen("865585040014008")
	assert.Equal(t, 2, s.DeviceCount())

	t.Run("empty identifier is ignored", func(t *testing.T) {
		s.DeviceSeen("")
		assert.Equal(t, 2, s.DeviceCount())
	})
}
