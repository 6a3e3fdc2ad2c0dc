package pi30

import (
	"bytes"
)

const (
	// Terminator ends every frame in both directions.
	Terminator byte = '\r'
	// ResponseStart marks the beginning of a device response payload.
	ResponseStart byte = '('
	// MaxFrameLength bounds a single response; anything longer without a
	// terminator is treated as incomplete.
	MaxFrameLength = 512
)

var nakToken = []byte("NAK")

// Encode builds the wire frame for a command: the mnemonic's ASCII bytes,
// the 2-byte checksum over exactly those bytes, and the terminator.
func Encode(cmd Command) []byte {
	payload := []byte(cmd.Mnemonic)
	hi, lo := checksumBytes(payload)
	frame := make([]byte, 0, len(payload)+3)
	frame = append(frame, payload...)
	frame = append(frame, hi, lo, Terminator)
	return frame
}

// DecodeFrame validates a raw response and returns its payload bytes:
// everything between the response start marker and the trailing checksum.
//
// Failures are total: ErrIncompleteFrame when no terminator is present
// within the frame bound, ErrChecksumMismatch when the trailing checksum
// does not match the recomputed one, ErrDeviceRejected when the device
// answered with the NAK token.
func DecodeFrame(raw []byte) ([]byte, error) {
	limit := len(raw)
	if limit > MaxFrameLength {
		limit = MaxFrameLength
	}
	end := bytes.IndexByte(raw[:limit], Terminator)
	if end < 0 {
		return nil, ErrIncompleteFrame
	}
	frame := raw[:end]
	if len(frame) < 3 {
		return nil, ErrIncompleteFrame
	}

	body, sum := frame[:len(frame)-2], frame[len(frame)-2:]
	hi, lo := checksumBytes(body)
	if sum[0] != hi || sum[1] != lo {
		return nil, ErrChecksumMismatch
	}

	payload := body
	if len(payload) > 0 && payload[0] == ResponseStart {
		payload = payload[1:]
	}
	if bytes.Equal(payload, nakToken) {
		return nil, ErrDeviceRejected
	}
	return payload, nil
}

// EncodeResponse builds a syntactically valid device response for the given
// payload text. The devices frame their answers exactly like commands, with
// a leading response marker inside the checksummed region.
func EncodeResponse(payload string) []byte {
	body := append([]byte{ResponseStart}, payload...)
	hi, lo := checksumBytes(body)
	frame := append(body, hi, lo, Terminator)
	return frame
}
