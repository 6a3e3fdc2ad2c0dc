package pi30

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Canned payloads for a healthy 24V/3kW unit. Tests and the fake reader
// share them so decoded values line up everywhere.
const (
	TestPayloadQPIGS = "230.1 49.9 230.1 49.9 0450 0430 015 368 27.10 012 100 0045 02.1 232.4 27.11 003 10010110 00 00 00942 010"
	TestPayloadQPIWS = "0000000000000000000000000000000000xx"
	TestPayloadQMOD  = "B"
	TestPayloadQID   = "92932105105335"
	TestPayloadQVFW  = "VERFW:00072.70"
	TestPayloadQPIRI = "230.0 13.0 230.0 50.0 13.0 3000 2400 24.0 23.0 21.0 28.2 27.0 0 30 040 0 1 2"
	TestPayloadQFLAG = "EakxyDbjuvz"
)

// FakeTransport is a scripted Transport for session tests: it answers each
// written command with a pre-framed response, or an injected error.
type FakeTransport struct {
	mu sync.Mutex

	// Responses maps command mnemonics to response payload text; the
	// transport frames them with a valid checksum.
	Responses map[string]string
	// Errs maps command mnemonics to injected read errors.
	Errs map[string]error
	// WriteErr fails every write when set.
	WriteErr error
	// ChunkSize splits responses into reads of at most this many bytes,
	// mimicking HID report sized chunks. Zero means one read.
	ChunkSize int

	pending    []byte
	pendingErr error
	closed     bool
	Writes     []string
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{
		Responses: map[string]string{
			"QPIGS": "(" + TestPayloadQPIGS,
			"QPIWS": "(" + TestPayloadQPIWS,
			"QMOD":  "(" + TestPayloadQMOD,
			"QID":   "(" + TestPayloadQID,
			"QVFW":  "(" + TestPayloadQVFW,
			"QPIRI": "(" + TestPayloadQPIRI,
			"QFLAG": "(" + TestPayloadQFLAG,
		},
		Errs: map[string]error{},
	}
}

// InjectErr makes every later exchange for the command fail with err. Safe
// to call while exchanges run.
func (t *FakeTransport) InjectErr(mnemonic string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Errs[mnemonic] = err
}

// ClearErrs removes every injected error, so later exchanges answer the
// canned payloads again.
func (t *FakeTransport) ClearErrs() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Errs = map[string]error{}
}

func (t *FakeTransport) Write(p []byte, timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.WriteErr != nil {
		return t.WriteErr
	}
	mnemonic := commandFromFrame(p)
	t.Writes = append(t.Writes, mnemonic)
	if err, ok := t.Errs[mnemonic]; ok {
		t.pending, t.pendingErr = nil, err
		return nil
	}
	payload, ok := t.Responses[mnemonic]
	if !ok {
		t.pending, t.pendingErr = nil, ErrTimeout
		return nil
	}
	body := []byte(payload)
	hi, lo := checksumBytes(body)
	t.pending = append(append(body, hi, lo), Terminator)
	t.pendingErr = nil
	return nil
}

func (t *FakeTransport) Read(maxLen int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingErr != nil {
		err := t.pendingErr
		t.pendingErr = nil
		return nil, err
	}
	if len(t.pending) == 0 {
		return nil, ErrTimeout
	}
	n := len(t.pending)
	if t.ChunkSize > 0 && t.ChunkSize < n {
		n = t.ChunkSize
	}
	if maxLen < n {
		n = maxLen
	}
	chunk := t.pending[:n]
	t.pending = t.pending[n:]
	return chunk, nil
}

func (t *FakeTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// commandFromFrame strips checksum and terminator from an encoded command.
func commandFromFrame(frame []byte) string {
	if len(frame) < 3 {
		return ""
	}
	end := len(frame)
	if frame[end-1] == Terminator {
		end--
	}
	// trailing zero padding from HID report sizing
	for end > 0 && frame[end-1] == 0 {
		end--
	}
	if end >= 2 {
		end -= 2 // checksum
	}
	return string(frame[:end])
}

// NewTestSession builds a Session backed by the given fake transport,
// bypassing device path resolution.
func NewTestSession(transport *FakeTransport, logger *zap.Logger) *Session {
	s, err := NewSession(SessionConfig{
		DevicePath:      "/dev/hidraw9",
		ProtocolVariant: "PI30",
		Timeout:         250 * time.Millisecond,
	}, logger, nil)
	if err != nil {
		panic(err)
	}
	s.open = func(string) (Transport, error) { return transport, nil }
	return s
}

// CreateTestInverterReader returns a reader whose answers come from the
// canned payloads above, for wiring actors in tests.
func CreateTestInverterReader(logger *zap.Logger) (InverterReader, *FakeTransport) {
	transport := NewFakeTransport()
	return NewTestSession(transport, logger), transport
}
