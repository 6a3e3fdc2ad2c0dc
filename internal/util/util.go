package util

import (
	"sunwatt2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		Inverter: config.InverterConfig{
			DevicePath:      "/dev/hidraw9",
			ProtocolVariant: "PI30",
			TimeoutMillis:   250,
		},
		MQTT: config.MQTTConfig{
			Host:      "localhost",
			Port:      1883,
			BaseTopic: "sunwatt",
		},
		Monitor: config.MonitorConfig{
			PollIntervalMillis:   500,
			CommandRetries:       2,
			ReconnectAfterCycles: 3,
			BackoffMaxFactor:     8,
		},
		Port: 8080,
	}
}
