package protocol

// AckMode controls whether the gateway sends acknowledgment frames.
// The mode is an explicit input to the connection handler; NeedsAck and
// BuildAck themselves never vary by mode.
type AckMode int

const (
	// AckModeNever suppresses all outgoing acknowledgments.
	AckModeNever AckMode = iota
	// AckModeVerifySequence sends acknowledgments and flags repeated
	// sequence numbers from the same device.
	AckModeVerifySequence
	// AckModeAlways sends acknowledgments without sequence verification.
	AckModeAlways
)

// Valid reports whether the mode is one of the defined acknowledgment modes.
func (m AckMode) Valid() bool {
	return m >= AckModeNever && m <= AckModeAlways
}

// defaultSequence substitutes for an empty device sequence number in
// generated acknowledgments.
const defaultSequence = "0000"

// NeedsAck reports whether the frame requires a server acknowledgment.
// Heartbeats are always acknowledged; every RESP and BUFF frame is
// acknowledged; ACK frames with a non-heartbeat command word are not.
//
// Parameters:
//   - f: The decoded frame
//
// Returns:
//   - true if the gateway should reply with a SACK frame
func NeedsAck(f Frame) bool {
	if f.CommandWord == CommandHeartbeat {
		return true
	}

	return f.Kind == KindResp || f.Kind == KindBuff
}

// BuildAck builds the SACK frame text acknowledging f. It is deterministic:
// the same frame always yields byte-identical ack text. Heartbeat
// acknowledgments echo the command word, the first six characters of the
// protocol version and the sequence number; all other acknowledgments carry
// only the sequence number. An empty sequence number is replaced by "0000".
//
// Parameters:
//   - f: The decoded frame to acknowledge
//
// Returns:
//   - The complete SACK frame text, terminator included
func BuildAck(f Frame) string {
	seq := f.SequenceNumber
	if seq == "" {
		seq = defaultSequence
	}

	if f.CommandWord == CommandHeartbeat {
		ver := f.ProtocolVersion
		if len(ver) > 6 {
			ver = ver[:6]
		}

		return PrefixSack + f.CommandWord + "," + ver + "," + seq + string(Terminator)
	}

	return PrefixSack + seq + string(Terminator)
}
