package pi30

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConnectionState tracks the device lifecycle. It is owned exclusively by
// the session; the polling engine only observes it.
type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateFaulted
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFaulted:
		return "faulted"
	}
	return "unknown"
}

var (
	ErrInvalidPath        = errors.New("pi30: invalid device path")
	ErrUnsupportedVariant = errors.New("pi30: unsupported protocol variant")
)

// SupportedVariants lists the protocol families this client knows how to
// speak. Only the ASCII command/response variant is implemented.
var SupportedVariants = []string{"PI30"}

// SessionConfig binds a session to one device.
type SessionConfig struct {
	DevicePath      string
	ProtocolVariant string
	// Timeout bounds each transport write and each whole-frame read.
	Timeout time.Duration
}

// Instrument receives timing callbacks for every transport operation.
type Instrument struct {
	RecordTime func(op string, elapsed time.Duration)
}

// DeviceInfo is the static identity read once per session.
type DeviceInfo struct {
	SerialNumber           string
	FirmwareVersion        string
	RatedOutputPowerWatt   int64
	RatedOutputVoltageVolt float64
	BatteryType            string
}

// InverterReader is the read surface the rest of the system consumes. The
// concrete implementation is the HID/serial session below; tests use the
// scripted fake in test_client.go.
type InverterReader interface {
	Open() error
	Close() error
	Reconnect() error
	MarkFaulted(reason error)
	State() (ConnectionState, error)
	TestConnection() (bool, error)
	GetDeviceInfo() (*DeviceInfo, error)
	Query(cmd Command) (*MeasurementRecord, error)
}

// Session owns the transport handle and serializes every command exchange:
// the channel is half duplex, so a write and its response read are paired
// under one lock and no second command may interleave.
type Session struct {
	mu sync.Mutex

	cfg         SessionConfig
	open        func(string) (Transport, error)
	transport   Transport
	state       ConnectionState
	faultReason error
	instrument  []Instrument
	logger      *zap.Logger
}

// NewSession validates the configuration and returns a session in the
// Disconnected state. No I/O happens until Open or the first Query.
func NewSession(cfg SessionConfig, logger *zap.Logger, instrument *Instrument) (*Session, error) {
	if strings.TrimSpace(cfg.DevicePath) == "" || !strings.HasPrefix(cfg.DevicePath, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, cfg.DevicePath)
	}
	variantOk := false
	for _, v := range SupportedVariants {
		if cfg.ProtocolVariant == v {
			variantOk = true
		}
	}
	if !variantOk {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVariant, cfg.ProtocolVariant)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	var inst []Instrument
	inst = append(inst, traceInstrument(logger))
	if instrument != nil {
		inst = append(inst, *instrument)
	}

	return &Session{
		cfg:        cfg,
		open:       OpenTransport,
		state:      StateDisconnected,
		instrument: inst,
		logger:     logger.With(zap.String("device", cfg.DevicePath)),
	}, nil
}

func traceInstrument(logger *zap.Logger) Instrument {
	return Instrument{
		RecordTime: func(op string, elapsed time.Duration) {
			logger.Debug("pi30 op", zap.String("op", op), zap.Int64("millis", elapsed.Milliseconds()))
		},
	}
}

func (s *Session) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureConnectedLocked()
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

// Reconnect drops the current handle and opens a fresh one. The polling
// engine requests this after cross-command failure.
func (s *Session) Reconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return s.ensureConnectedLocked()
}

// MarkFaulted forces the Faulted state. The polling engine calls this when
// poll failures span multiple commands or cycles; the only exit is a later
// reconnect attempt (Query, TestConnection or Reconnect).
func (s *Session) MarkFaulted(reason error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faultLocked(reason)
}

func (s *Session) State() (ConnectionState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.faultReason
}

// TestConnection issues one lightweight query and reports reachability
// without touching any snapshot state. A success clears a Faulted state.
func (s *Session) TestConnection() (bool, error) {
	_, err := s.Query(CommandQID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetDeviceInfo reads the static device identity (serial, firmware,
// ratings). Rating fields stay zero-valued when the device does not answer
// QPIRI; serial and firmware are required.
func (s *Session) GetDeviceInfo() (*DeviceInfo, error) {
	serial, err := s.Query(CommandQID)
	if err != nil {
		return nil, err
	}
	firmware, err := s.Query(CommandQVFW)
	if err != nil {
		return nil, err
	}

	info := &DeviceInfo{}
	if v, ok := serial.Field("serial_number"); ok {
		info.SerialNumber = v.Text
	}
	if v, ok := firmware.Field("firmware_version"); ok {
		info.FirmwareVersion = v.Text
	}

	if ratings, err := s.Query(CommandQPIRI); err == nil {
		if v, ok := ratings.Field("ac_output_rating_active_power"); ok {
			info.RatedOutputPowerWatt = v.Int
		}
		if v, ok := ratings.Field("ac_output_rating_voltage"); ok {
			info.RatedOutputVoltageVolt = v.Float
		}
		if v, ok := ratings.Field("battery_type"); ok {
			info.BatteryType = v.Text
		}
	} else {
		s.logger.Warn("pi30: device did not answer rating query", zap.Error(err))
	}

	return info, nil
}

// Query performs one full command cycle: encode, write, bounded read,
// frame validation, field decode. Any transport failure moves the session
// to Faulted; protocol failures (bad checksum, NAK, decode) do not, the
// link itself is still up.
func (s *Session) Query(cmd Command) (*MeasurementRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureConnectedLocked(); err != nil {
		return nil, err
	}

	raw, err := s.exchangeLocked(cmd)
	if err != nil {
		// A timeout alone does not fault the session: the device may just
		// be slow, and the polling engine escalates repeated failures to a
		// reconnect. Losing the handle itself does.
		if errors.Is(err, ErrDeviceGone) || errors.Is(err, ErrPermission) {
			s.faultLocked(err)
		}
		return nil, err
	}

	payload, err := DecodeFrame(raw)
	if err != nil {
		return nil, err
	}
	return Decode(cmd, payload, time.Now())
}

func (s *Session) exchangeLocked(cmd Command) ([]byte, error) {
	defer s.recordTime(cmd.Mnemonic)()

	frame := Encode(cmd)
	if err := s.transport.Write(frame, s.cfg.Timeout); err != nil {
		return nil, err
	}

	// Responses arrive in transport-sized chunks; accumulate until the
	// terminator shows up or the frame deadline passes. A deadline with a
	// partial frame is a timeout, never a partial success.
	deadline := time.Now().Add(s.cfg.Timeout)
	var raw []byte
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrTimeout
		}
		chunk, err := s.transport.Read(MaxFrameLength-len(raw), remaining)
		if err != nil {
			if errors.Is(err, ErrTimeout) {
				return nil, ErrTimeout
			}
			return nil, err
		}
		raw = append(raw, chunk...)
		if containsTerminator(raw) {
			return raw, nil
		}
		if len(raw) >= MaxFrameLength {
			return nil, ErrIncompleteFrame
		}
	}
}

func (s *Session) ensureConnectedLocked() error {
	switch s.state {
	case StateConnected:
		return nil
	case StateFaulted, StateDisconnected, StateConnecting:
		s.state = StateConnecting
		transport, err := s.open(s.cfg.DevicePath)
		if err != nil {
			s.state = StateFaulted
			s.faultReason = err
			return err
		}
		s.transport = transport
		s.state = StateConnected
		s.faultReason = nil
		s.logger.Info("pi30: device connected")
		return nil
	}
	return ErrNotConnected
}

func (s *Session) closeLocked() error {
	var err error
	if s.transport != nil {
		err = s.transport.Close()
		s.transport = nil
	}
	s.state = StateDisconnected
	s.faultReason = nil
	return err
}

func (s *Session) faultLocked(reason error) {
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	s.state = StateFaulted
	s.faultReason = reason
	s.logger.Warn("pi30: session faulted", zap.Error(reason))
}

func (s *Session) recordTime(op string) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		for i := range s.instrument {
			s.instrument[i].RecordTime(op, elapsed)
		}
	}
}

func containsTerminator(raw []byte) bool {
	for _, b := range raw {
		if b == Terminator {
			return true
		}
	}
	return false
}
