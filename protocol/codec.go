package protocol

import (
	"errors"
	"strings"
)

// Decode errors. All of them are frame-local: the connection stays open and
// processing continues with the next frame in the buffer.
var (
	// ErrMissingTerminator is returned when the frame text does not end with
	// the terminator character.
	ErrMissingTerminator = errors.New("protocol: frame missing terminator")
	// ErrUnknownFrameType is returned when the frame does not begin with a
	// known prefix token.
	ErrUnknownFrameType = errors.New("protocol: unknown frame type")
	// ErrMalformedAck is returned when an ACK frame body has fewer than the
	// required number of comma-separated fields.
	ErrMalformedAck = errors.New("protocol: malformed ACK frame")
	// ErrMalformedResp is returned when a RESP or BUFF frame body has fewer
	// than the required number of comma-separated fields.
	ErrMalformedResp = errors.New("protocol: malformed RESP frame")
)

// minFields is the minimum number of comma-separated body fields in a
// well-formed ACK, RESP or BUFF frame.
const minFields = 6

// SplitFrames splits a raw byte buffer into complete terminator-delimited
// frame texts, preserving arrival order. Each returned frame text ends in
// exactly one terminator. Trailing bytes that are not yet terminated are
// returned as leftover; the caller retains them and prepends them to the
// next read. SplitFrames keeps no state between calls.
//
// Parameters:
//   - buf: The raw bytes read from the connection
//
// Returns:
//   - The complete frame texts found in buf, in order
//   - The unterminated trailing bytes, or nil if buf ended on a terminator
func SplitFrames(buf []byte) ([]string, []byte) {
	if len(buf) == 0 {
		return nil, nil
	}

	parts := strings.Split(string(buf), string(Terminator))

	// The last element is everything after the final terminator: leftover
	// bytes when non-empty, an empty fragment to discard otherwise.
	last := parts[len(parts)-1]
	parts = parts[:len(parts)-1]

	frames := make([]string, 0, len(parts))
	for _, p := range parts {
		frames = append(frames, p+string(Terminator))
	}

	var leftover []byte
	if last != "" {
		leftover = []byte(last)
	}

	return frames, leftover
}

// Decode parses one complete frame text into a Frame. Every input either
// yields a Frame with all required fields populated or one of the package's
// sentinel decode errors; no input is silently dropped.
//
// ACK bodies map all six fields positionally from the front. RESP bodies map
// the first four fields from the front but anchor SendTime and SequenceNumber
// to the last two fields, because the command-specific middle of the body
// varies in length. BUFF frames are buffered replays of RESP-shaped payloads
// and decode identically, keeping their own kind and raw text.
//
// Parameters:
//   - frameText: One complete frame, terminator included
//
// Returns:
//   - The decoded Frame
//   - ErrMissingTerminator, ErrUnknownFrameType, ErrMalformedAck or
//     ErrMalformedResp if the text is not a well-formed frame
func Decode(frameText string) (Frame, error) {
	if len(frameText) == 0 || frameText[len(frameText)-1] != Terminator {
		return Frame{}, ErrMissingTerminator
	}

	switch {
	case strings.HasPrefix(frameText, PrefixAck):
		return decodeAck(frameText)
	case strings.HasPrefix(frameText, PrefixResp):
		return decodeResp(frameText, KindResp, frameText)
	case strings.HasPrefix(frameText, PrefixBuff):
		respText := PrefixResp + strings.TrimPrefix(frameText, PrefixBuff)
		return decodeResp(respText, KindBuff, frameText)
	default:
		return Frame{}, ErrUnknownFrameType
	}
}

// decodeAck decodes an ACK frame: all fields positional from the front.
func decodeAck(frameText string) (Frame, error) {
	fields := bodyFields(frameText, PrefixAck)
	if len(fields) < minFields {
		return Frame{}, ErrMalformedAck
	}

	return Frame{
		Kind:            KindAck,
		CommandWord:     fields[0],
		ProtocolVersion: fields[1],
		DeviceID:        fields[2],
		DeviceName:      fields[3],
		SendTime:        fields[4],
		SequenceNumber:  fields[5],
		RawText:         frameText,
	}, nil
}

// decodeResp decodes a RESP-shaped frame. kind and rawText are taken from the
// caller so BUFF frames keep their original identity after the prefix swap.
func decodeResp(frameText string, kind FrameKind, rawText string) (Frame, error) {
	fields := bodyFields(frameText, PrefixResp)
	if len(fields) < minFields {
		return Frame{}, ErrMalformedResp
	}

	return Frame{
		Kind:            kind,
		CommandWord:     fields[0],
		ProtocolVersion: fields[1],
		DeviceID:        fields[2],
		DeviceName:      fields[3],
		SendTime:        fields[len(fields)-2],
		SequenceNumber:  fields[len(fields)-1],
		RawText:         rawText,
	}, nil
}

// bodyFields strips the prefix and terminator and splits the body on commas.
func bodyFields(frameText, prefix string) []string {
	body := strings.TrimPrefix(frameText, prefix)
	body = strings.TrimSuffix(body, string(Terminator))
	return strings.Split(body, ",")
}
