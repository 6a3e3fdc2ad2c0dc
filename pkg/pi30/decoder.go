package pi30

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Decode maps a validated frame payload to a typed MeasurementRecord using
// the command's declared shape. Decoding is total and order-indexed: token
// N always maps to field N. Unknown trailing tokens are ignored; missing
// tokens fail the whole record, which is never partially populated.
func Decode(cmd Command, payload []byte, takenAt time.Time) (*MeasurementRecord, error) {
	record := &MeasurementRecord{
		Command:  cmd.Mnemonic,
		Category: cmd.Category,
		TakenAt:  takenAt,
		Fields:   make(map[string]FieldValue),
	}

	switch {
	case cmd.Bitfield != nil:
		if err := decodeBitfield(cmd, payload, record); err != nil {
			return nil, err
		}
	case cmd.FlagLetters != nil:
		if err := decodeFlagLetters(cmd, payload, record); err != nil {
			return nil, err
		}
	case cmd.Fields != nil:
		if err := decodeTokens(cmd, payload, record); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownCommand
	}

	deriveFields(record)
	return record, nil
}

func decodeTokens(cmd Command, payload []byte, record *MeasurementRecord) error {
	// Single-field string commands take the payload verbatim; serials and
	// firmware ids may contain anything but the frame delimiters.
	if len(cmd.Fields) == 1 && cmd.Fields[0].Kind == FieldString {
		record.Fields[cmd.Fields[0].Name] = TextValue(strings.TrimSpace(string(payload)))
		return nil
	}

	tokens := strings.Fields(string(payload))
	if len(tokens) < len(cmd.Fields) {
		return &FieldCountError{Command: cmd.Mnemonic, Want: len(cmd.Fields), Got: len(tokens)}
	}

	for i, spec := range cmd.Fields {
		token := tokens[i]
		switch spec.Kind {
		case FieldFloat:
			v, err := strconv.ParseFloat(token, 64)
			if err != nil {
				return &FieldParseError{Command: cmd.Mnemonic, Field: spec.Name, Token: token, Cause: err}
			}
			record.Fields[spec.Name] = FloatValue(v, spec.Unit)
		case FieldInt:
			v, err := strconv.ParseInt(token, 10, 64)
			if err != nil {
				return &FieldParseError{Command: cmd.Mnemonic, Field: spec.Name, Token: token, Cause: err}
			}
			record.Fields[spec.Name] = IntValue(v, spec.Unit)
		case FieldEnum:
			value, err := decodeEnum(cmd, spec, token)
			if err != nil {
				return err
			}
			record.Fields[spec.Name] = value
		case FieldFlags:
			if len(token) < len(spec.Flags) {
				return &FieldCountError{Command: cmd.Mnemonic, Want: len(spec.Flags), Got: len(token)}
			}
			for pos, name := range spec.Flags {
				set, err := bitChar(token[pos])
				if err != nil {
					return &FieldParseError{Command: cmd.Mnemonic, Field: name, Token: token, Cause: err}
				}
				record.Fields[name] = BoolValue(set)
			}
		case FieldString:
			record.Fields[spec.Name] = TextValue(token)
		}
	}
	return nil
}

func decodeEnum(cmd Command, spec FieldSpec, token string) (FieldValue, error) {
	// QMOD-style mode fields are single letters, not ordinals.
	if spec.Enum == nil {
		if len(token) != 1 {
			return FieldValue{}, &FieldParseError{Command: cmd.Mnemonic, Field: spec.Name, Token: token,
				Cause: fmt.Errorf("want a single mode letter")}
		}
		letter := token[0]
		if mode, ok := DeviceModeFromLetter(letter); ok {
			return EnumValue(mode.String(), int64(letter)), nil
		}
		return EnumValue(fmt.Sprintf("Unknown(%c)", letter), int64(letter)), nil
	}

	ordinal, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return FieldValue{}, &FieldParseError{Command: cmd.Mnemonic, Field: spec.Name, Token: token, Cause: err}
	}
	if name, ok := spec.Enum[ordinal]; ok {
		return EnumValue(name, ordinal), nil
	}
	// Firmware variants introduce undocumented ordinals; keep the record.
	return EnumValue(fmt.Sprintf("Unknown(%d)", ordinal), ordinal), nil
}

func decodeBitfield(cmd Command, payload []byte, record *MeasurementRecord) error {
	if len(payload) < len(cmd.Bitfield) {
		return &FieldCountError{Command: cmd.Mnemonic, Want: len(cmd.Bitfield), Got: len(payload)}
	}
	for pos, name := range cmd.Bitfield {
		if name == "" {
			continue
		}
		set, err := bitChar(payload[pos])
		if err != nil {
			return &FieldParseError{Command: cmd.Mnemonic, Field: name, Token: string(payload), Cause: err}
		}
		record.Fields[name] = BoolValue(set)
	}
	return nil
}

// decodeFlagLetters parses QFLAG payloads of the form "EakxyDbjuvz": every
// letter after an 'E' marker names an enabled option, after a 'D' marker a
// disabled one. Letters outside the declared table are ignored.
func decodeFlagLetters(cmd Command, payload []byte, record *MeasurementRecord) error {
	enabled := false
	seenMarker := false
	for _, c := range payload {
		switch c {
		case 'E':
			enabled, seenMarker = true, true
		case 'D':
			enabled, seenMarker = false, true
		default:
			if !seenMarker {
				return &FieldParseError{Command: cmd.Mnemonic, Field: "flags", Token: string(payload),
					Cause: fmt.Errorf("missing E/D marker")}
			}
			if name, ok := cmd.FlagLetters[c]; ok {
				record.Fields[name] = BoolValue(enabled)
			}
		}
	}
	if !seenMarker {
		return &FieldParseError{Command: cmd.Mnemonic, Field: "flags", Token: string(payload),
			Cause: fmt.Errorf("missing E/D marker")}
	}
	return nil
}

func bitChar(c byte) (bool, error) {
	switch c {
	case '0':
		return false, nil
	case '1':
		return true, nil
	}
	return false, fmt.Errorf("invalid bit character %q", c)
}

// deriveFields adds values computed from decoded ones. PV input power is
// not reported directly by the device.
func deriveFields(record *MeasurementRecord) {
	voltage, okV := record.Fields["pv_input_voltage"]
	current, okC := record.Fields["pv_input_current_for_battery"]
	if okV && okC {
		record.Fields["pv_input_power"] = IntValue(int64(voltage.Float*current.Float), "W")
	}
}
