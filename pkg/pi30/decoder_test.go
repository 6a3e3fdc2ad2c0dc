package pi30

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var decodeTime = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func TestDecodeQPIGS(t *testing.T) {
	assert := assert.New(t)

	record, err := Decode(CommandQPIGS, []byte(TestPayloadQPIGS), decodeTime)
	require.NoError(t, err)

	assert.Equal("QPIGS", record.Command)
	assert.Equal(CategoryStatus, record.Category)
	assert.Equal(decodeTime, record.TakenAt)

	v, ok := record.Field("ac_input_voltage")
	require.True(t, ok)
	assert.Equal(230.1, v.Float)
	assert.Equal("V", v.Unit)

	v, ok = record.Field("ac_output_active_power")
	require.True(t, ok)
	assert.EqualValues(430, v.Int)
	assert.Equal("W", v.Unit)

	v, ok = record.Field("battery_voltage")
	require.True(t, ok)
	assert.Equal(27.10, v.Float)

	// flag token 10010110: positions are ordered per the declared shape
	v, ok = record.Field("is_sbu_priority_version_added")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("is_load_on")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("is_charging_on")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("is_ac_charging_on")
	require.True(t, ok)
	assert.False(v.Bool)

	// derived from pv voltage and current
	v, ok = record.Field("pv_input_power")
	require.True(t, ok)
	assert.EqualValues(488, v.Int)
	assert.Equal("W", v.Unit)
}

func TestDecodeIdempotent(t *testing.T) {
	assert := assert.New(t)

	first, err := Decode(CommandQPIGS, []byte(TestPayloadQPIGS), decodeTime)
	require.NoError(t, err)
	second, err := Decode(CommandQPIGS, []byte(TestPayloadQPIGS), decodeTime)
	require.NoError(t, err)

	assert.Equal(first, second, "same payload must decode identically")
}

func TestDecodeFieldCountMismatch(t *testing.T) {
	assert := assert.New(t)

	tokens := strings.Fields(TestPayloadQPIGS)
	short := strings.Join(tokens[:len(CommandQPIGS.Fields)-1], " ")

	record, err := Decode(CommandQPIGS, []byte(short), decodeTime)

	assert.Nil(record, "no partially populated record")
	var fce *FieldCountError
	assert.ErrorAs(err, &fce)
	assert.Equal(len(CommandQPIGS.Fields), fce.Want)
}

func TestDecodeFieldParseError(t *testing.T) {
	assert := assert.New(t)

	bad := strings.Replace(TestPayloadQPIGS, "230.1", "23x.1", 1)
	record, err := Decode(CommandQPIGS, []byte(bad), decodeTime)

	assert.Nil(record)
	var fpe *FieldParseError
	assert.ErrorAs(err, &fpe)
	assert.Equal("ac_input_voltage", fpe.Field)
}

func TestDecodeIgnoresUnknownTrailingTokens(t *testing.T) {
	assert := assert.New(t)

	extended := TestPayloadQPIGS + " 99 98 97"
	record, err := Decode(CommandQPIGS, []byte(extended), decodeTime)

	assert.NoError(err)
	assert.NotNil(record)
}

func TestDecodeQMOD(t *testing.T) {
	assert := assert.New(t)

	record, err := Decode(CommandQMOD, []byte("B"), decodeTime)
	require.NoError(t, err)

	v, ok := record.Field("device_mode")
	require.True(t, ok)
	assert.Equal("Battery", v.Text)
}

func TestDecodeQMODUnknownLetter(t *testing.T) {
	assert := assert.New(t)

	record, err := Decode(CommandQMOD, []byte("Z"), decodeTime)
	require.NoError(t, err, "undocumented mode letters must not fail the record")

	v, ok := record.Field("device_mode")
	require.True(t, ok)
	assert.Equal("Unknown(Z)", v.Text)
	assert.EqualValues('Z', v.Int)
}

func TestDecodeUnknownEnumOrdinal(t *testing.T) {
	assert := assert.New(t)

	// battery_type 7 is outside the documented table
	payload := strings.Replace(TestPayloadQPIRI, " 0 30 ", " 7 30 ", 1)
	record, err := Decode(CommandQPIRI, []byte(payload), decodeTime)
	require.NoError(t, err)

	v, ok := record.Field("battery_type")
	require.True(t, ok)
	assert.Equal("Unknown(7)", v.Text)
	assert.EqualValues(7, v.Int)
}

func TestDecodeQPIRIEnums(t *testing.T) {
	assert := assert.New(t)

	record, err := Decode(CommandQPIRI, []byte(TestPayloadQPIRI), decodeTime)
	require.NoError(t, err)

	v, _ := record.Field("battery_type")
	assert.Equal("AGM", v.Text)
	v, _ = record.Field("output_source_priority")
	assert.Equal("Solar First", v.Text)
	v, _ = record.Field("charger_source_priority")
	assert.Equal("Solar and Utility", v.Text)
}

func TestDecodeQPIWS(t *testing.T) {
	assert := assert.New(t)

	bits := []byte(strings.Repeat("0", len(CommandQPIWS.Bitfield)))
	bits[4] = '1'  // line_fail_warning
	bits[14] = '1' // overload_fault

	record, err := Decode(CommandQPIWS, bits, decodeTime)
	require.NoError(t, err)

	v, ok := record.Field("line_fail_warning")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("overload_fault")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("inverter_fault")
	require.True(t, ok)
	assert.False(v.Bool)

	_, ok = record.Field("")
	assert.False(ok, "reserved positions are not recorded")
}

func TestDecodeQPIWSTooShort(t *testing.T) {
	assert := assert.New(t)

	short := strings.Repeat("0", len(CommandQPIWS.Bitfield)-1)
	record, err := Decode(CommandQPIWS, []byte(short), decodeTime)

	assert.Nil(record)
	var fce *FieldCountError
	assert.ErrorAs(err, &fce)
}

func TestDecodeQPIWSRequiresFullFrame(t *testing.T) {
	assert := assert.New(t)

	// 28 characters cover every named flag, but real units pad the
	// reserved tail and anything shorter than 32 is a truncated frame
	record, err := Decode(CommandQPIWS, []byte(strings.Repeat("0", 28)), decodeTime)

	assert.Nil(record)
	var fce *FieldCountError
	assert.ErrorAs(err, &fce)
	assert.Equal(32, fce.Want)
}

func TestDecodeQFLAG(t *testing.T) {
	assert := assert.New(t)

	record, err := Decode(CommandQFLAG, []byte(TestPayloadQFLAG), decodeTime)
	require.NoError(t, err)

	v, ok := record.Field("buzzer")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("lcd_backlight")
	require.True(t, ok)
	assert.True(v.Bool)
	v, ok = record.Field("overload_bypass")
	require.True(t, ok)
	assert.False(v.Bool)
	v, ok = record.Field("record_fault_code")
	require.True(t, ok)
	assert.False(v.Bool)
}

func TestDecodeQID(t *testing.T) {
	assert := assert.New(t)

	record, err := Decode(CommandQID, []byte(TestPayloadQID), decodeTime)
	require.NoError(t, err)

	v, ok := record.Field("serial_number")
	require.True(t, ok)
	assert.Equal(TestPayloadQID, v.Text)
}
