package pi30

// Category groups commands by the kind of snapshot entry they produce.
type Category string

const (
	CategoryStatus     Category = "status"
	CategoryDeviceInfo Category = "device_info"
	CategoryWarning    Category = "warning"
)

type FieldKind int

const (
	FieldFloat FieldKind = iota
	FieldInt
	FieldEnum
	FieldFlags
	FieldString
)

// FieldSpec declares one position of a command's response shape. Decoding
// is order-indexed: token N of the payload always maps to spec N.
type FieldSpec struct {
	Name string
	Kind FieldKind
	Unit string
	// Enum maps raw ordinals to state names. Ordinals outside the table
	// decode to Unknown(ordinal) instead of failing the record.
	Enum map[int64]string
	// Flags names each character position of a packed bit token, in order.
	// An empty name skips the position.
	Flags []string
}

// Command is an immutable descriptor of one query: its ASCII mnemonic and
// the declared response shape. The registry is fixed at process start.
type Command struct {
	Mnemonic    string
	Description string
	Category    Category
	// Fields describes space-delimited token responses.
	Fields []FieldSpec
	// Bitfield names each character position of a '0'/'1' response, for
	// warning/fault queries. An empty name marks a reserved position.
	Bitfield []string
	// FlagLetters maps QFLAG option letters to field names.
	FlagLetters map[byte]string
}

var deviceStatusFlags = []string{
	"is_sbu_priority_version_added",
	"is_configuration_changed",
	"is_scc_firmware_updated",
	"is_load_on",
	"is_battery_voltage_to_steady_while_charging",
	"is_charging_on",
	"is_scc_charging_on",
	"is_ac_charging_on",
}

var warningBitfield = []string{
	"inverter_fault",
	"bus_over_fault",
	"bus_under_fault",
	"bus_soft_fail_fault",
	"line_fail_warning",
	"opv_short_warning",
	"inverter_voltage_too_low_fault",
	"inverter_voltage_too_high_fault",
	"over_temperature_fault",
	"fan_locked_fault",
	"battery_voltage_too_high_fault",
	"battery_low_alarm_warning",
	"", // reserved
	"battery_under_shutdown_warning",
	"overload_fault",
	"eeprom_fault",
	"inverter_over_current_fault",
	"inverter_soft_fail_fault",
	"self_test_fail_fault",
	"op_dc_voltage_over_fault",
	"battery_open_fault",
	"current_sensor_fail_fault",
	"battery_short_fault",
	"power_limit_warning",
	"pv_voltage_high_warning",
	"mppt_overload_fault",
	"mppt_overload_warning",
	"battery_too_low_to_charge_warning",
	// positions 28-31 are reserved; units always pad the frame to 32
	"",
	"",
	"",
	"",
}

var (
	batteryTypes = map[int64]string{
		0: "AGM",
		1: "Flooded",
		2: "User",
	}
	outputSourcePriorities = map[int64]string{
		0: "Utility First",
		1: "Solar First",
		2: "SBU",
	}
	chargerSourcePriorities = map[int64]string{
		0: "Utility First",
		1: "Solar First",
		2: "Solar and Utility",
		3: "Solar Only",
	}
)

// CommandQPIGS reports the general status parameters: the main per-poll
// telemetry source.
var CommandQPIGS = Command{
	Mnemonic:    "QPIGS",
	Description: "General Status Parameters",
	Category:    CategoryStatus,
	Fields: []FieldSpec{
		{Name: "ac_input_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "ac_input_frequency", Kind: FieldFloat, Unit: "Hz"},
		{Name: "ac_output_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "ac_output_frequency", Kind: FieldFloat, Unit: "Hz"},
		{Name: "ac_output_apparent_power", Kind: FieldInt, Unit: "VA"},
		{Name: "ac_output_active_power", Kind: FieldInt, Unit: "W"},
		{Name: "ac_output_load", Kind: FieldInt, Unit: "%"},
		{Name: "bus_voltage", Kind: FieldInt, Unit: "V"},
		{Name: "battery_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_charging_current", Kind: FieldInt, Unit: "A"},
		{Name: "battery_capacity", Kind: FieldInt, Unit: "%"},
		{Name: "inverter_heat_sink_temperature", Kind: FieldInt, Unit: "°C"},
		{Name: "pv_input_current_for_battery", Kind: FieldFloat, Unit: "A"},
		{Name: "pv_input_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_voltage_from_scc", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_discharge_current", Kind: FieldInt, Unit: "A"},
		{Name: "device_status", Kind: FieldFlags, Flags: deviceStatusFlags},
	},
}

// CommandQMOD reports the current device mode as a single letter.
var CommandQMOD = Command{
	Mnemonic:    "QMOD",
	Description: "Device Mode",
	Category:    CategoryDeviceInfo,
	Fields: []FieldSpec{
		{Name: "device_mode", Kind: FieldEnum},
	},
}

// CommandQPIWS reports the warning/fault status as a bitfield, one
// character position per flag.
var CommandQPIWS = Command{
	Mnemonic:    "QPIWS",
	Description: "Device Warning Status",
	Category:    CategoryWarning,
	Bitfield:    warningBitfield,
}

var CommandQID = Command{
	Mnemonic:    "QID",
	Description: "Device Serial Number",
	Category:    CategoryDeviceInfo,
	Fields: []FieldSpec{
		{Name: "serial_number", Kind: FieldString},
	},
}

var CommandQVFW = Command{
	Mnemonic:    "QVFW",
	Description: "Main CPU Firmware Version",
	Category:    CategoryDeviceInfo,
	Fields: []FieldSpec{
		{Name: "firmware_version", Kind: FieldString},
	},
}

// CommandQPIRI reports the device rating information. Read once at session
// start; ratings do not change while the device runs.
var CommandQPIRI = Command{
	Mnemonic:    "QPIRI",
	Description: "Device Rating Information",
	Category:    CategoryDeviceInfo,
	Fields: []FieldSpec{
		{Name: "grid_rating_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "grid_rating_current", Kind: FieldFloat, Unit: "A"},
		{Name: "ac_output_rating_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "ac_output_rating_frequency", Kind: FieldFloat, Unit: "Hz"},
		{Name: "ac_output_rating_current", Kind: FieldFloat, Unit: "A"},
		{Name: "ac_output_rating_apparent_power", Kind: FieldInt, Unit: "VA"},
		{Name: "ac_output_rating_active_power", Kind: FieldInt, Unit: "W"},
		{Name: "battery_rating_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_recharge_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_under_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_bulk_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_float_voltage", Kind: FieldFloat, Unit: "V"},
		{Name: "battery_type", Kind: FieldEnum, Enum: batteryTypes},
		{Name: "max_ac_charging_current", Kind: FieldInt, Unit: "A"},
		{Name: "max_charging_current", Kind: FieldInt, Unit: "A"},
		{Name: "input_voltage_range", Kind: FieldInt},
		{Name: "output_source_priority", Kind: FieldEnum, Enum: outputSourcePriorities},
		{Name: "charger_source_priority", Kind: FieldEnum, Enum: chargerSourcePriorities},
	},
}

// CommandQFLAG reports the enabled/disabled device options as letters after
// an 'E' (enabled) or 'D' (disabled) marker.
var CommandQFLAG = Command{
	Mnemonic:    "QFLAG",
	Description: "Device Flag Status",
	Category:    CategoryStatus,
	FlagLetters: map[byte]string{
		'a': "buzzer",
		'b': "overload_bypass",
		'j': "power_saving",
		'k': "lcd_reset_to_default",
		'u': "overload_restart",
		'v': "over_temperature_restart",
		'x': "lcd_backlight",
		'y': "primary_source_interrupt_alarm",
		'z': "record_fault_code",
	},
}

// Commands is the full static registry, keyed by mnemonic.
var Commands = map[string]Command{
	CommandQPIGS.Mnemonic: CommandQPIGS,
	CommandQMOD.Mnemonic:  CommandQMOD,
	CommandQPIWS.Mnemonic: CommandQPIWS,
	CommandQID.Mnemonic:   CommandQID,
	CommandQVFW.Mnemonic:  CommandQVFW,
	CommandQPIRI.Mnemonic: CommandQPIRI,
	CommandQFLAG.Mnemonic: CommandQFLAG,
}

// PollCommands are the commands the polling engine issues every cycle, in
// issue order. The transport is half duplex, so order is also the wire
// order.
var PollCommands = []Command{CommandQPIGS, CommandQPIWS, CommandQMOD}
