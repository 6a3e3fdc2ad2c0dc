package events

import (
	"testing"
	"time"

	"sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementRecordToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	record, err := pi30.Decode(pi30.CommandQPIGS, []byte(pi30.TestPayloadQPIGS), time.Now())
	require.NoError(t, err)

	events := MeasurementRecordToUpdateEvents(record)
	assert.Len(events, len(record.Fields))

	byId := map[string]any{}
	for _, ev := range events {
		byId[ev.(domain.SensorUpdateEvent).SensorId()] = ev
	}

	voltage, ok := byId["ac_input_voltage"].(domain.FloatSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(230.1, voltage.Value)
	assert.EqualValues(1, voltage.Decimals)

	power, ok := byId["ac_output_active_power"].(domain.FloatSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(430.0, power.Value)
	assert.EqualValues(0, power.Decimals)

	loadOn, ok := byId["is_load_on"].(domain.BinarySensorUpdateEvent)
	require.True(t, ok)
	assert.True(loadOn.Value)
}

func TestDeviceModeToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	record, err := pi30.Decode(pi30.CommandQMOD, []byte(pi30.TestPayloadQMOD), time.Now())
	require.NoError(t, err)

	events := MeasurementRecordToUpdateEvents(record)
	require.Len(t, events, 1)

	mode, ok := events[0].(domain.TextSensorUpdateEvent)
	require.True(t, ok)
	assert.Equal(domain.SENSOR_ID_DEVICE_MODE, mode.Id)
	assert.Equal("Battery", mode.Value)
}

func TestConnectionStateToUpdateEvents(t *testing.T) {

	assert := assert.New(t)

	events := ConnectionStateToUpdateEvents(pi30.StateConnected)
	require.Len(t, events, 2)
	assert.Equal("connected", events[0].(domain.TextSensorUpdateEvent).Value)
	assert.True(events[1].(domain.BridgeStateUpdateEvent).Value)

	events = ConnectionStateToUpdateEvents(pi30.StateFaulted)
	assert.Equal("faulted", events[0].(domain.TextSensorUpdateEvent).Value)
	assert.False(events[1].(domain.BridgeStateUpdateEvent).Value)
}

func TestSensorCatalog(t *testing.T) {

	assert := assert.New(t)

	info := &pi30.DeviceInfo{
		SerialNumber:         pi30.TestPayloadQID,
		FirmwareVersion:      pi30.TestPayloadQVFW,
		RatedOutputPowerWatt: 2400,
	}
	device := InverterDevice(info)
	assert.Contains(device.Model, "2400W")

	sensors := InverterStatusSensors(device)
	ids := map[string]domain.GenericSensor{}
	for _, s := range sensors {
		ids[s.Id] = s
	}
	assert.Contains(ids, "battery_voltage")
	assert.Contains(ids, "pv_input_power")
	assert.Contains(ids, domain.SENSOR_ID_DEVICE_MODE)
	assert.Equal(domain.DEVICE_CLASS_VOLTAGE, ids["battery_voltage"].DeviceClass)
	assert.Equal(domain.DEVICE_CLASS_BATTERY, ids["battery_capacity"].DeviceClass)

	warnings := WarningBinarySensors(device)
	for _, s := range warnings {
		assert.NotEmpty(s.Id, "reserved positions are not exposed")
		assert.Equal(domain.SENSOR_TYPE_BINARY, s.SensorType)
	}

	buttons := MaintenanceButtons(device)
	assert.Len(buttons, 2)
}
