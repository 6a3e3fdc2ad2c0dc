package pi30

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewSessionValidation(t *testing.T) {
	assert := assert.New(t)

	_, err := NewSession(SessionConfig{DevicePath: "", ProtocolVariant: "PI30"}, zap.NewNop(), nil)
	assert.ErrorIs(err, ErrInvalidPath)

	_, err = NewSession(SessionConfig{DevicePath: "hidraw0", ProtocolVariant: "PI30"}, zap.NewNop(), nil)
	assert.ErrorIs(err, ErrInvalidPath)

	_, err = NewSession(SessionConfig{DevicePath: "/dev/hidraw0", ProtocolVariant: "PI17"}, zap.NewNop(), nil)
	assert.ErrorIs(err, ErrUnsupportedVariant)

	s, err := NewSession(SessionConfig{DevicePath: "/dev/hidraw0", ProtocolVariant: "PI30"}, zap.NewNop(), nil)
	require.NoError(t, err)
	state, _ := s.State()
	assert.Equal(StateDisconnected, state)
}

func TestQueryRoundTrip(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	session := NewTestSession(transport, zap.NewNop())

	record, err := session.Query(CommandQPIGS)
	require.NoError(t, err)

	v, ok := record.Field("battery_voltage")
	require.True(t, ok)
	assert.Equal(27.10, v.Float)

	state, reason := session.State()
	assert.Equal(StateConnected, state)
	assert.NoError(reason)
	assert.Equal([]string{"QPIGS"}, transport.Writes)
}

func TestQueryChunkedReads(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	transport.ChunkSize = 8
	session := NewTestSession(transport, zap.NewNop())

	record, err := session.Query(CommandQPIGS)
	require.NoError(t, err)
	assert.Equal("QPIGS", record.Command)
}

func TestQueryTimeoutDoesNotFault(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	delete(transport.Responses, "QPIGS")
	session := NewTestSession(transport, zap.NewNop())

	record, err := session.Query(CommandQPIGS)

	assert.Nil(record)
	assert.ErrorIs(err, ErrTimeout)
	state, _ := session.State()
	assert.Equal(StateConnected, state, "a slow device is not a broken link")
}

func TestQueryDeviceGoneFaults(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	transport.Errs["QPIGS"] = ErrDeviceGone
	session := NewTestSession(transport, zap.NewNop())

	_, err := session.Query(CommandQPIGS)
	assert.ErrorIs(err, ErrDeviceGone)

	state, reason := session.State()
	assert.Equal(StateFaulted, state)
	assert.ErrorIs(reason, ErrDeviceGone)
}

func TestQueryNAKDoesNotFault(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	transport.Responses["QPIGS"] = "(NAK"
	session := NewTestSession(transport, zap.NewNop())

	_, err := session.Query(CommandQPIGS)
	assert.ErrorIs(err, ErrDeviceRejected)

	state, _ := session.State()
	assert.Equal(StateConnected, state)
}

func TestMarkFaultedThenTestConnectionRecovers(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	session := NewTestSession(transport, zap.NewNop())
	require.NoError(t, session.Open())

	session.MarkFaulted(ErrTimeout)
	state, reason := session.State()
	assert.Equal(StateFaulted, state)
	assert.ErrorIs(reason, ErrTimeout)

	ok, err := session.TestConnection()
	require.NoError(t, err)
	assert.True(ok)

	state, reason = session.State()
	assert.Equal(StateConnected, state)
	assert.NoError(reason)
}

func TestReconnect(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	session := NewTestSession(transport, zap.NewNop())
	require.NoError(t, session.Open())

	require.NoError(t, session.Reconnect())

	state, _ := session.State()
	assert.Equal(StateConnected, state)
	assert.True(transport.closed, "reconnect must drop the old handle")
}

func TestGetDeviceInfo(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	session := NewTestSession(transport, zap.NewNop())

	info, err := session.GetDeviceInfo()
	require.NoError(t, err)

	assert.Equal(TestPayloadQID, info.SerialNumber)
	assert.Equal(TestPayloadQVFW, info.FirmwareVersion)
	assert.EqualValues(2400, info.RatedOutputPowerWatt)
	assert.Equal(230.0, info.RatedOutputVoltageVolt)
	assert.Equal("AGM", info.BatteryType)

	// half duplex: identity queries go out strictly one at a time
	assert.Equal([]string{"QID", "QVFW", "QPIRI"}, transport.Writes)
}

func TestGetDeviceInfoWithoutRatings(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	delete(transport.Responses, "QPIRI")
	session := NewTestSession(transport, zap.NewNop())

	info, err := session.GetDeviceInfo()
	require.NoError(t, err, "missing ratings must not fail identity")

	assert.Equal(TestPayloadQID, info.SerialNumber)
	assert.Zero(info.RatedOutputPowerWatt)
	assert.Empty(info.BatteryType)
}

func TestCloseResetsState(t *testing.T) {
	assert := assert.New(t)

	transport := NewFakeTransport()
	session := NewTestSession(transport, zap.NewNop())
	require.NoError(t, session.Open())

	require.NoError(t, session.Close())

	state, _ := session.State()
	assert.Equal(StateDisconnected, state)
	assert.True(transport.closed)
}
