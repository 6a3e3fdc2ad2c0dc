package pi30

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/sstallion/go-hid"
	"go.bug.st/serial"
)

// Transport is a pure byte pipe with timeout semantics. It performs no
// framing: callers accumulate chunks and delimit frames themselves. A
// timeout with no data is ErrTimeout, never a partial success.
type Transport interface {
	Write(p []byte, timeout time.Duration) error
	Read(maxLen int, timeout time.Duration) ([]byte, error)
	Close() error
}

// hidWriteChunk is the report size PI30 devices expect on the HID
// endpoint; shorter frames are zero padded.
const hidWriteChunk = 8

// DetectTransportKind guesses the transport from the device path, the same
// heuristics the stock monitoring tools use.
func DetectTransportKind(devicePath string) string {
	switch {
	case strings.Contains(devicePath, "hidraw"):
		return "hidraw"
	case strings.Contains(devicePath, "ttyUSB"), strings.Contains(devicePath, "ttyS"),
		strings.Contains(devicePath, "serial"):
		return "serial"
	default:
		return "hidraw"
	}
}

// OpenTransport opens the device path with the transport its name implies.
func OpenTransport(devicePath string) (Transport, error) {
	if _, err := os.Stat(devicePath); err != nil {
		return nil, wrapIoError(err)
	}
	switch DetectTransportKind(devicePath) {
	case "serial":
		return openSerialTransport(devicePath)
	default:
		return openHidrawTransport(devicePath)
	}
}

// hidrawTransport talks to a /dev/hidrawN character device.
type hidrawTransport struct {
	dev *hid.Device
}

func openHidrawTransport(devicePath string) (Transport, error) {
	if err := hid.Init(); err != nil {
		return nil, wrapIoError(err)
	}
	dev, err := hid.OpenPath(devicePath)
	if err != nil {
		return nil, wrapIoError(err)
	}
	return &hidrawTransport{dev: dev}, nil
}

func (t *hidrawTransport) Write(p []byte, timeout time.Duration) error {
	// HID writes complete in one report exchange; the timeout bounds the
	// whole frame, chunked into fixed-size reports.
	deadline := time.Now().Add(timeout)
	for off := 0; off < len(p); off += hidWriteChunk {
		if time.Now().After(deadline) {
			return ErrTimeout
		}
		chunk := make([]byte, hidWriteChunk)
		copy(chunk, p[off:min(off+hidWriteChunk, len(p))])
		if _, err := t.dev.Write(chunk); err != nil {
			return wrapIoError(err)
		}
	}
	return nil
}

func (t *hidrawTransport) Read(maxLen int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, maxLen)
	n, err := t.dev.ReadWithTimeout(buf, timeout)
	if err != nil {
		return nil, wrapIoError(err)
	}
	if n == 0 {
		return nil, ErrTimeout
	}
	return buf[:n], nil
}

func (t *hidrawTransport) Close() error {
	return t.dev.Close()
}

// serialTransport talks to a USB-serial adapter at the fixed PI30 line
// settings (2400 8N1).
type serialTransport struct {
	port serial.Port
}

func openSerialTransport(devicePath string) (Transport, error) {
	port, err := serial.Open(devicePath, &serial.Mode{
		BaudRate: 2400,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, wrapIoError(err)
	}
	return &serialTransport{port: port}, nil
}

func (t *serialTransport) Write(p []byte, timeout time.Duration) error {
	if err := t.port.ResetOutputBuffer(); err != nil {
		return wrapIoError(err)
	}
	if _, err := t.port.Write(p); err != nil {
		return wrapIoError(err)
	}
	return nil
}

func (t *serialTransport) Read(maxLen int, timeout time.Duration) ([]byte, error) {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return nil, wrapIoError(err)
	}
	buf := make([]byte, maxLen)
	n, err := t.port.Read(buf)
	if err != nil {
		return nil, wrapIoError(err)
	}
	if n == 0 {
		return nil, ErrTimeout
	}
	return buf[:n], nil
}

func (t *serialTransport) Close() error {
	return t.port.Close()
}

func wrapIoError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermission, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrDeviceGone, err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return ErrTimeout
	default:
		return err
	}
}
