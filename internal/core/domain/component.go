package domain

const (
	SENSOR_ID_BRIDGE_STATE      = "bridge"
	SENSOR_ID_CONNECTION_STATE  = "connection_state"
	SENSOR_ID_DEVICE_MODE       = "device_mode"
	BUTTON_ID_RECONNECT         = "reconnect"
	BUTTON_ID_REFRESH           = "refresh"
	STATE_CLASS_MEASUREMENT     = "measurement"
	DEVICE_CLASS_APPARENT_POWER = "apparent_power"
	DEVICE_CLASS_BATTERY        = "battery"
	DEVICE_CLASS_CONNECTIVITY   = "connectivity"
	DEVICE_CLASS_CURRENT        = "current"
	DEVICE_CLASS_FREQUENCY      = "frequency"
	DEVICE_CLASS_POWER          = "power"
	DEVICE_CLASS_PROBLEM        = "problem"
	DEVICE_CLASS_TEMPERATURE    = "temperature"
	DEVICE_CLASS_VOLTAGE        = "voltage"
	ENTITY_CLASS_DIAGNOSTIC     = "diagnostic"
	SENSOR_TYPE_SENSOR          = "sensor"
	SENSOR_TYPE_BINARY          = "binary_sensor"
)

type Device struct {
	Id           string
	Name         string
	Version      string
	Model        string
	Manufacturer string
	ViaDevice    string
}

type GenericSensor struct {
	Device            Device
	Id                string
	SensorType        string
	Name              string
	UniqueId          string
	UnitOfMeasurement string
	StateClass        string // measurement, duration, total_increasing (for acc energy)
	DeviceClass       string // voltage, current, power, energy
	EntityCategory    string // diagnostic, config, nil
	EnabledByDefault  *bool
	Icon              string
}

type GenericButton struct {
	Device         Device
	Id             string
	Name           string
	UniqueId       string
	EntityCategory string
	Icon           string
}
