package pi30

import (
	"encoding/json"
	"fmt"
	"time"
)

type ValueKind int

const (
	KindFloat ValueKind = iota
	KindInt
	KindBool
	KindText
	KindEnum
)

// FieldValue is one decoded measurement. Exactly one of the value members
// is meaningful, selected by Kind.
type FieldValue struct {
	Kind  ValueKind
	Float float64
	Int   int64
	Bool  bool
	Text  string
	Unit  string
}

func FloatValue(v float64, unit string) FieldValue {
	return FieldValue{Kind: KindFloat, Float: v, Unit: unit}
}

func IntValue(v int64, unit string) FieldValue {
	return FieldValue{Kind: KindInt, Int: v, Unit: unit}
}

func BoolValue(v bool) FieldValue {
	return FieldValue{Kind: KindBool, Bool: v}
}

func TextValue(v string) FieldValue {
	return FieldValue{Kind: KindText, Text: v}
}

func EnumValue(name string, ordinal int64) FieldValue {
	return FieldValue{Kind: KindEnum, Text: name, Int: ordinal}
}

func (v FieldValue) String() string {
	switch v.Kind {
	case KindFloat:
		return fmt.Sprintf("%g %s", v.Float, v.Unit)
	case KindInt:
		return fmt.Sprintf("%d %s", v.Int, v.Unit)
	case KindBool:
		if v.Bool {
			return "on"
		}
		return "off"
	default:
		return v.Text
	}
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	out := struct {
		Value any    `json:"value"`
		Unit  string `json:"unit,omitempty"`
	}{Unit: v.Unit}
	switch v.Kind {
	case KindFloat:
		out.Value = v.Float
	case KindInt:
		out.Value = v.Int
	case KindBool:
		out.Value = v.Bool
	default:
		out.Value = v.Text
	}
	return json.Marshal(out)
}

// MeasurementRecord is the result of one successful command cycle: every
// field the command's shape declares, decoded and tagged with the capture
// time. Records are never mutated after Decode returns them; a later poll
// replaces the whole record.
type MeasurementRecord struct {
	Command  string
	Category Category
	TakenAt  time.Time
	Fields   map[string]FieldValue
}

func (r *MeasurementRecord) Field(name string) (FieldValue, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// DeviceMode is the inverter's operating mode as reported by QMOD.
type DeviceMode int

const (
	ModeUnknown DeviceMode = iota
	ModePowerOn
	ModeStandby
	ModeLine
	ModeBattery
	ModeFault
	ModePowerSaving
)

var deviceModeNames = map[DeviceMode]string{
	ModePowerOn:     "Power On",
	ModeStandby:     "Standby",
	ModeLine:        "Line",
	ModeBattery:     "Battery",
	ModeFault:       "Fault",
	ModePowerSaving: "Power Saving",
}

var deviceModeLetters = map[byte]DeviceMode{
	'P': ModePowerOn,
	'S': ModeStandby,
	'L': ModeLine,
	'B': ModeBattery,
	'F': ModeFault,
	'H': ModePowerSaving,
}

func (m DeviceMode) String() string {
	if s, ok := deviceModeNames[m]; ok {
		return s
	}
	return "Unknown"
}

// DeviceModeFromLetter maps a QMOD response letter to a mode. Firmware
// variants report letters outside the documented table; those come back as
// ModeUnknown with ok=false so the caller can keep the raw letter.
func DeviceModeFromLetter(letter byte) (DeviceMode, bool) {
	m, ok := deviceModeLetters[letter]
	if !ok {
		return ModeUnknown, false
	}
	return m, true
}
