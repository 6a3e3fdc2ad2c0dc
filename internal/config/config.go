package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel zapcore.Level
	Inverter InverterConfig `mapstructure:"inverter"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`

	Monitor MonitorConfig `mapstructure:"monitor"`
	Port    uint          `mapstructure:"port"`
	HttpLog bool          `mapstructure:"http_log"`
}

type InverterConfig struct {
	DevicePath      string `mapstructure:"device_path"`
	ProtocolVariant string `mapstructure:"protocol_variant"`
	// TimeoutMillis bounds every single command exchange on the wire.
	TimeoutMillis uint32 `mapstructure:"timeout_millis"`
}

type MonitorConfig struct {
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
	// CommandRetries is the max attempts per command within one poll cycle.
	CommandRetries uint `mapstructure:"command_retries"`
	// ReconnectAfterCycles triggers a device reconnect after this many
	// consecutive cycles with at least one failed command.
	ReconnectAfterCycles uint `mapstructure:"reconnect_after_cycles"`
	// BackoffMaxFactor caps the poll interval multiplier applied while the
	// device keeps failing entire cycles.
	BackoffMaxFactor uint32 `mapstructure:"backoff_max_factor"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
