package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Pushbutton policy selectors. Exactly one policy is active per process.
const (
	PushbuttonOpenHold = "openhold"
	PushbuttonOpen     = "open"
	PushbuttonToggle   = "toggle"
)

// Config is the root configuration structure for Doorkeeper.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	// Device is the hexadecimal identifier of the smart lock this instance serves.
	Device string `yaml:"device"`

	MQTT     MQTTConfig     `yaml:"mqtt"`
	GPIO     GPIOConfig     `yaml:"gpio"`
	Door     DoorConfig     `yaml:"door"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// GPIOConfig contains relay and pushbutton line assignments.
//
// When Enabled is false the controller runs with no-op relays; useful on
// development hosts and in deployments where the relay board is driven by a
// downstream MQTT subscriber instead of local GPIO.
type GPIOConfig struct {
	Enabled bool   `yaml:"enabled"`
	Chip    string `yaml:"chip"`

	// Line offsets on Chip (BCM numbering on Raspberry Pi).
	Pushbutton    int `yaml:"pushbutton"`
	OpenDoor      int `yaml:"opendoor"`
	OpenHoldMode  int `yaml:"openhold_mode"`
	OpenCloseMode int `yaml:"openclose_mode"`
}

// DoorConfig contains door state machine timing and policy settings.
// All durations are in seconds.
type DoorConfig struct {
	// Pushbutton selects the pushbutton policy: openhold, open or toggle.
	Pushbutton string `yaml:"pushbutton"`

	// OpenTime is how long the door may stay in the opened state before the
	// watchdog forces it back to closed.
	OpenTime int `yaml:"open_time"`

	// CloseTime is how long an openhold request may stay unconfirmed (openhold
	// relay never energized) before the watchdog forces the state to closed.
	CloseTime int `yaml:"close_time"`

	// UnlatchTime is how long to wait for the lock to report unlatched before
	// the timeout fallback treats the unlatch as confirmed.
	UnlatchTime int `yaml:"unlatch_time"`

	// CheckInterval is the auto-close watchdog period.
	CheckInterval int `yaml:"check_interval"`

	// PulseTime is the opendoor relay pulse duration.
	PulseTime int `yaml:"pulse_time"`

	// ActionEventMaxAge is how long a received lock action event stays usable
	// before it is considered stale.
	ActionEventMaxAge int `yaml:"action_event_max_age"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// GatewayConfig contains remote gateway listener settings.
type GatewayConfig struct {
	Enabled bool `yaml:"enabled"`

	// Listen is the stream listener address for peer connections, e.g.
	// "0.0.0.0:9100". RFCOMM channels are bound externally and forwarded here.
	Listen string `yaml:"listen"`

	// Heartbeat is the status fan-out interval in seconds.
	Heartbeat int `yaml:"heartbeat"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORKEEPER_SECTION_KEY
// For example: DOORKEEPER_MQTT_HOST, DOORKEEPER_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Door timings match the reference deployment: 40s open, 10s close, 4s unlatch.
func defaultConfig() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorkeeper",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		GPIO: GPIOConfig{
			Enabled:       true,
			Chip:          "gpiochip0",
			Pushbutton:    2,
			OpenDoor:      26,
			OpenHoldMode:  20,
			OpenCloseMode: 21,
		},
		Door: DoorConfig{
			Pushbutton:        PushbuttonOpenHold,
			OpenTime:          40,
			CloseTime:         10,
			UnlatchTime:       4,
			CheckInterval:     3,
			PulseTime:         1,
			ActionEventMaxAge: 30,
		},
		Database: DatabaseConfig{
			Path:        "./data/doorkeeper.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Gateway: GatewayConfig{
			Listen:    "0.0.0.0:9100",
			Heartbeat: 3,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8088,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORKEEPER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOORKEEPER_DEVICE"); v != "" {
		cfg.Device = v
	}

	// MQTT
	if v := os.Getenv("DOORKEEPER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORKEEPER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORKEEPER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("DOORKEEPER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("DOORKEEPER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device == "" {
		errs = append(errs, "device is required (set DOORKEEPER_DEVICE or the device key)")
	}

	switch c.Door.Pushbutton {
	case PushbuttonOpenHold, PushbuttonOpen, PushbuttonToggle:
	default:
		errs = append(errs, "door.pushbutton must be one of: openhold, open, toggle")
	}

	if c.Door.OpenTime <= 0 {
		errs = append(errs, "door.open_time must be positive")
	}
	if c.Door.CloseTime <= 0 {
		errs = append(errs, "door.close_time must be positive")
	}
	if c.Door.UnlatchTime <= 0 {
		errs = append(errs, "door.unlatch_time must be positive")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.GPIO.Enabled && c.GPIO.Chip == "" {
		errs = append(errs, "gpio.chip is required when gpio is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Gateway.Enabled && c.Gateway.Listen == "" {
		errs = append(errs, "gateway.listen is required when the gateway is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// DoorOpenTime returns door.open_time as a Duration.
func (c *Config) DoorOpenTime() time.Duration {
	return time.Duration(c.Door.OpenTime) * time.Second
}

// DoorCloseTime returns door.close_time as a Duration.
func (c *Config) DoorCloseTime() time.Duration {
	return time.Duration(c.Door.CloseTime) * time.Second
}

// LockUnlatchTime returns door.unlatch_time as a Duration.
func (c *Config) LockUnlatchTime() time.Duration {
	return time.Duration(c.Door.UnlatchTime) * time.Second
}

// CheckInterval returns door.check_interval as a Duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Door.CheckInterval) * time.Second
}

// PulseTime returns door.pulse_time as a Duration.
func (c *Config) PulseTime() time.Duration {
	return time.Duration(c.Door.PulseTime) * time.Second
}

// ActionEventMaxAge returns door.action_event_max_age as a Duration.
func (c *Config) ActionEventMaxAge() time.Duration {
	return time.Duration(c.Door.ActionEventMaxAge) * time.Second
}

// HeartbeatInterval returns gateway.heartbeat as a Duration.
func (c GatewayConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.Heartbeat) * time.Second
}
