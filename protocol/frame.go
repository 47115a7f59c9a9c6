// Package protocol implements the text wire protocol spoken by the telemetry
// devices: frame splitting, frame decoding, and acknowledgment generation.
// Frames are ASCII, comma-separated, prefixed with a type token and terminated
// by a single '$'. All functions in this package are pure; buffering of
// partial frames between reads is the caller's responsibility.
package protocol

// FrameKind identifies the type of a protocol frame, derived from its prefix token.
type FrameKind int

const (
	KindAck  FrameKind = iota // Device acknowledgment frame ("+ACK:")
	KindResp                  // Device report frame ("+RESP:")
	KindBuff                  // Buffered replay of a report frame ("+BUFF:")
	KindSack                  // Server acknowledgment frame ("+SACK:"), never decoded from the wire
)

// String returns the prefix-style name for the frame kind.
func (k FrameKind) String() string {
	switch k {
	case KindAck:
		return "ACK"
	case KindResp:
		return "RESP"
	case KindBuff:
		return "BUFF"
	case KindSack:
		return "SACK"
	default:
		return "UNKNOWN"
	}
}

// Frame prefixes and terminator as they appear on the wire.
const (
	PrefixAck  = "+ACK:"
	PrefixResp = "+RESP:"
	PrefixBuff = "+BUFF:"
	PrefixSack = "+SACK:"

	// Terminator ends every well-formed frame.
	Terminator = '$'
)

// CommandHeartbeat is the command word of the periodic keep-alive message.
const CommandHeartbeat = "GTHBD"

// Frame is one decoded protocol message. RawText retains the full original
// frame text (prefix and terminator included) for auditing; re-decoding
// RawText yields an equal Frame.
type Frame struct {
	// Kind is the frame type derived from the prefix token.
	Kind FrameKind
	// CommandWord is the short code identifying the semantic message
	// (e.g. "GTHBD" for heartbeat, "GTFRI" for a fixed report).
	CommandWord string
	// ProtocolVersion is the version token reported by the device.
	ProtocolVersion string
	// DeviceID is the device's permanent hardware identifier, a 15-character
	// numeral string on well-behaved devices.
	DeviceID string
	// DeviceName is the human-readable device label, device-supplied.
	DeviceName string
	// SendTime is the device-reported send timestamp, YYYYMMDDHHMMSS.
	SendTime string
	// SequenceNumber is the device-assigned 4-hex-digit rolling counter
	// (0000-FFFF), used to correlate acknowledgments.
	SequenceNumber string
	// RawText is the full original frame text.
	RawText string
}
