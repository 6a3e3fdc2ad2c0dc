package events

import (
	. "sunwatt2mqtt/internal/core/domain"
	"sunwatt2mqtt/pkg/pi30"
)

// MeasurementRecordToUpdateEvents maps every decoded field of a record to
// a sensor update event. Sensor ids are the field names, so the mapping
// needs no per-command tables.
func MeasurementRecordToUpdateEvents(record *pi30.MeasurementRecord) []any {
	var events []any

	for name, value := range record.Fields {
		switch value.Kind {
		case pi30.KindFloat:
			events = append(events, FloatSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: name,
				},
				Value:    value.Float,
				Decimals: decimalsForUnit(value.Unit),
			})
		case pi30.KindInt:
			events = append(events, FloatSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: name,
				},
				Value: float64(value.Int),
			})
		case pi30.KindBool:
			events = append(events, BinarySensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: name,
				},
				Value: value.Bool,
			})
		case pi30.KindText, pi30.KindEnum:
			events = append(events, TextSensorUpdateEvent{
				SensorUpdateEventMixIn: SensorUpdateEventMixIn{
					Id: name,
				},
				Value: value.Text,
			})
		}
	}

	return events
}

// ConnectionStateToUpdateEvents reports session health: a text sensor with
// the precise state and the bridge availability flag.
func ConnectionStateToUpdateEvents(state pi30.ConnectionState) []any {
	var events []any

	events = append(events, TextSensorUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_CONNECTION_STATE,
		},
		Value: state.String(),
	})
	events = append(events, BridgeStateUpdateEvent{
		SensorUpdateEventMixIn: SensorUpdateEventMixIn{
			Id: SENSOR_ID_BRIDGE_STATE,
		},
		Value: state == pi30.StateConnected,
	})

	return events
}

func decimalsForUnit(unit string) uint {
	switch unit {
	case "V", "A", "Hz":
		return 1
	default:
		return 0
	}
}
