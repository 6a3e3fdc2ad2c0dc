package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	. "sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/pkg/pi30"

	"github.com/carlmjohnson/versioninfo"
)

// deviceClassByUnit maps a measurement unit to the Home Assistant device
// class the sensor should carry.
var deviceClassByUnit = map[string]string{
	"V":  DEVICE_CLASS_VOLTAGE,
	"A":  DEVICE_CLASS_CURRENT,
	"W":  DEVICE_CLASS_POWER,
	"VA": DEVICE_CLASS_APPARENT_POWER,
	"Hz": DEVICE_CLASS_FREQUENCY,
	"°C": DEVICE_CLASS_TEMPERATURE,
}

// diagnosticSensors are exposed but hidden behind the diagnostic section.
var diagnosticSensors = map[string]bool{
	"bus_voltage":              true,
	"battery_voltage_from_scc": true,
}

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("sunwatt_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "SunWatt",
		Model:        "SunWatt",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("SunWatt %s", md5HashShort(baseTopic)),
	}
}

func InverterDevice(info *pi30.DeviceInfo) Device {
	model := "PI30"
	if info.RatedOutputPowerWatt > 0 {
		model = fmt.Sprintf("PI30 %dW", info.RatedOutputPowerWatt)
	}
	return Device{
		Id:           fmt.Sprintf("sw_inverter_%s", md5HashShort(info.SerialNumber)),
		Version:      info.FirmwareVersion,
		Manufacturer: "MPP Solar",
		Model:        model,
		Name:         fmt.Sprintf("MPP Solar %s %s", model, md5HashShort(info.SerialNumber)),
	}
}

func IdDevice(device Device) Device {
	return Device{
		Id:   device.Id,
		Name: device.Name,
	}
}

// InverterStatusSensors declares one HA sensor per numeric field of the
// general status query, plus the derived PV power. Sensor ids are the
// decoded field names, so update events route by name alone.
func InverterStatusSensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	for _, field := range pi30.CommandQPIGS.Fields {
		if field.Kind != pi30.FieldFloat && field.Kind != pi30.FieldInt {
			continue
		}
		sensors = append(sensors, statusSensor(inverterDevice, field.Name, field.Unit))
	}

	// PV input power is derived from PV voltage and current
	pv := statusSensor(inverterDevice, "pv_input_power", "W")
	pv.Icon = "mdi:solar-power"
	sensors = append(sensors, pv)

	// Device Mode
	sensors = append(sensors, GenericSensor{
		Device:     inverterDevice,
		Id:         SENSOR_ID_DEVICE_MODE,
		SensorType: SENSOR_TYPE_SENSOR,
		Name:       "Device mode",
		Icon:       "mdi:power-settings",
		UniqueId:   uniqueId(inverterDevice.Id, SENSOR_ID_DEVICE_MODE),
	})

	// Connection state
	sensors = append(sensors, GenericSensor{
		Device:         inverterDevice,
		Id:             SENSOR_ID_CONNECTION_STATE,
		SensorType:     SENSOR_TYPE_SENSOR,
		Name:           "Connection state",
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(inverterDevice.Id, SENSOR_ID_CONNECTION_STATE),
	})

	return sensors
}

func statusSensor(device Device, fieldName, unit string) GenericSensor {
	sensor := GenericSensor{
		Device:            device,
		Id:                fieldName,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              sensorName(fieldName),
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       deviceClassByUnit[unit],
		UnitOfMeasurement: unit,
		UniqueId:          uniqueId(device.Id, fieldName),
	}
	if fieldName == "battery_capacity" {
		sensor.DeviceClass = DEVICE_CLASS_BATTERY
	}
	if diagnosticSensors[fieldName] {
		sensor.EntityCategory = ENTITY_CLASS_DIAGNOSTIC
		sensor.EnabledByDefault = optionalBool(false)
	}
	return sensor
}

// DeviceStatusBinarySensors exposes the packed status bits of the general
// status query (load on, charging on, ...).
func DeviceStatusBinarySensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	for _, field := range pi30.CommandQPIGS.Fields {
		if field.Kind != pi30.FieldFlags {
			continue
		}
		for _, name := range field.Flags {
			sensors = append(sensors, GenericSensor{
				Device:         inverterDevice,
				Id:             name,
				SensorType:     SENSOR_TYPE_BINARY,
				Name:           sensorName(name),
				EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
				UniqueId:       uniqueId(inverterDevice.Id, name),
			})
		}
	}

	return sensors
}

// WarningBinarySensors exposes each named warning/fault flag as a problem
// binary sensor. Reserved bitfield positions carry no name and are
// skipped.
func WarningBinarySensors(inverterDevice Device) []GenericSensor {

	var sensors []GenericSensor

	for _, name := range pi30.CommandQPIWS.Bitfield {
		if name == "" {
			continue
		}
		sensors = append(sensors, GenericSensor{
			Device:         inverterDevice,
			Id:             name,
			SensorType:     SENSOR_TYPE_BINARY,
			Name:           sensorName(name),
			DeviceClass:    DEVICE_CLASS_PROBLEM,
			EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
			UniqueId:       uniqueId(inverterDevice.Id, name),
		})
	}

	return sensors
}

func BridgeSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	// Bridge connectivity
	sensors = append(sensors, GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Connection state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       uniqueId(bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	})

	return sensors
}

func MaintenanceButtons(inverterDevice Device) []GenericButton {

	var buttons []GenericButton

	// Reconnect
	buttons = append(buttons, GenericButton{
		Device:         inverterDevice,
		Id:             BUTTON_ID_RECONNECT,
		Name:           "Reconnect",
		UniqueId:       uniqueId(inverterDevice.Id, BUTTON_ID_RECONNECT),
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:restart",
	})
	// Poll now
	buttons = append(buttons, GenericButton{
		Device:         inverterDevice,
		Id:             BUTTON_ID_REFRESH,
		Name:           "Poll now",
		UniqueId:       uniqueId(inverterDevice.Id, BUTTON_ID_REFRESH),
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		Icon:           "mdi:refresh",
	})

	return buttons
}

// sensorName turns a field name like "ac_output_active_power" into
// "Ac output active power".
func sensorName(fieldName string) string {
	out := []byte(fieldName)
	for i := range out {
		if out[i] == '_' {
			out[i] = ' '
		}
	}
	if len(out) > 0 && out[0] >= 'a' && out[0] <= 'z' {
		out[0] -= 'a' - 'A'
	}
	return string(out)
}

func uniqueId(baseId, id string) string {
	return fmt.Sprintf("uid_%s_%s", baseId, id)
}

func md5Hash(text string) string {
	hash := md5.Sum([]byte(text))
	return hex.EncodeToString(hash[:])
}

func md5HashShort(text string) string {
	hash := md5Hash(text)
	return hash[0:8]
}

func optionalBool(value bool) *bool {
	return &value
}
