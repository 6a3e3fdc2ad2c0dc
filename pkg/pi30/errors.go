package pi30

import (
	"errors"
	"fmt"
)

// Transport errors.
var (
	ErrTimeout      = errors.New("pi30: timeout")
	ErrDeviceGone   = errors.New("pi30: device vanished")
	ErrPermission   = errors.New("pi30: permission denied")
	ErrNotConnected = errors.New("pi30: not connected")
)

// Frame errors.
var (
	ErrIncompleteFrame  = errors.New("pi30: incomplete frame")
	ErrChecksumMismatch = errors.New("pi30: checksum mismatch")
	ErrDeviceRejected   = errors.New("pi30: device rejected command (NAK)")
)

// Decode errors.
var (
	ErrUnknownCommand = errors.New("pi30: unknown command shape")
)

// FieldCountError reports a payload with fewer tokens than the command's
// declared shape. The record is rejected wholesale, never partially filled.
type FieldCountError struct {
	Command string
	Want    int
	Got     int
}

func (e *FieldCountError) Error() string {
	return fmt.Sprintf("pi30: %s field count mismatch: want %d, got %d", e.Command, e.Want, e.Got)
}

// FieldParseError reports a token that could not be converted to its
// declared type.
type FieldParseError struct {
	Command string
	Field   string
	Token   string
	Cause   error
}

func (e *FieldParseError) Error() string {
	return fmt.Sprintf("pi30: %s field %q: cannot parse %q: %v", e.Command, e.Field, e.Token, e.Cause)
}

func (e *FieldParseError) Unwrap() error {
	return e.Cause
}
