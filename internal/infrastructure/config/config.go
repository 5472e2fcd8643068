package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frequency bounds for DRC telemetry push rates (Hz).
const (
	MinFrequencyHz = 1
	MaxFrequencyHz = 30
)

// Config is the root configuration structure for SkyBridge Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway  GatewayConfig  `yaml:"gateway"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	DRC      DRCConfig      `yaml:"drc"`
	Database DatabaseConfig `yaml:"database"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GatewayConfig identifies the DJI gateway (dock or remote controller) this
// instance talks to by default. The serial number templates every cloud-API topic.
type GatewayConfig struct {
	SerialNumber string `yaml:"serial_number"`
	UserID       string `yaml:"user_id"`
	UserCallsign string `yaml:"user_callsign"`
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
}

// DRCConfig contains Direct Remote Control session settings.
type DRCConfig struct {
	// OSDFrequency is the aircraft OSD push rate in Hz (1-30).
	OSDFrequency int `yaml:"osd_frequency"`

	// HSIFrequency is the horizontal situation indicator push rate in Hz (1-30).
	HSIFrequency int `yaml:"hsi_frequency"`

	// Relay is the MQTT relay broker handed to the aircraft on DRC entry.
	// When address is empty, the main MQTT broker settings are reused.
	Relay RelayConfig `yaml:"relay"`

	// ServiceTimeout is how long to wait for a services_reply (seconds).
	ServiceTimeout int `yaml:"service_timeout"`

	// ConfirmTimeout is how long the pilot has to confirm authorisation on
	// the remote controller before the request is considered stale (seconds).
	ConfirmTimeout int `yaml:"confirm_timeout"`

	// HeartbeatInterval is the DRC heartbeat period in milliseconds.
	HeartbeatInterval int `yaml:"heartbeat_interval"`
}

// RelayConfig describes the MQTT relay broker included in the drc_mode_enter
// handoff payload. ExpireTime is a Unix timestamp in seconds; zero means
// "auto-fill at handoff time".
type RelayConfig struct {
	Address    string `yaml:"address"`
	ClientID   string `yaml:"client_id"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	EnableTLS  bool   `yaml:"enable_tls"`
	ExpireTime int64  `yaml:"expire_time"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for flight telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
// Environment variables follow the pattern: SKYBRIDGE_SECTION_KEY
// For example: SKYBRIDGE_MQTT_HOST, SKYBRIDGE_GATEWAY_SN
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
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			UserID:       "skybridge_user",
			UserCallsign: "SkyBridge Pilot",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "skybridge-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		DRC: DRCConfig{
			OSDFrequency:      10,
			HSIFrequency:      1,
			ServiceTimeout:    10,
			ConfirmTimeout:    60,
			HeartbeatInterval: 200,
		},
		Database: DatabaseConfig{
			Path:        "./data/skybridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: SKYBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Gateway
	if v := os.Getenv("SKYBRIDGE_GATEWAY_SN"); v != "" {
		cfg.Gateway.SerialNumber = v
	}

	// MQTT
	if v := os.Getenv("SKYBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SKYBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("SKYBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SKYBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("SKYBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("SKYBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Gateway validation - the serial number templates every cloud-API topic
	if c.Gateway.SerialNumber == "" {
		errs = append(errs, "gateway.serial_number is required (set SKYBRIDGE_GATEWAY_SN environment variable)")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	// DRC validation
	if c.DRC.OSDFrequency < MinFrequencyHz || c.DRC.OSDFrequency > MaxFrequencyHz {
		errs = append(errs, fmt.Sprintf("drc.osd_frequency must be between %d and %d Hz", MinFrequencyHz, MaxFrequencyHz))
	}
	if c.DRC.HSIFrequency < MinFrequencyHz || c.DRC.HSIFrequency > MaxFrequencyHz {
		errs = append(errs, fmt.Sprintf("drc.hsi_frequency must be between %d and %d Hz", MinFrequencyHz, MaxFrequencyHz))
	}
	if c.DRC.HeartbeatInterval < 1 {
		errs = append(errs, "drc.heartbeat_interval must be positive")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetServiceTimeout returns the service call timeout as a Duration.
func (c *Config) GetServiceTimeout() time.Duration {
	return time.Duration(c.DRC.ServiceTimeout) * time.Second
}

// GetConfirmTimeout returns the manual-confirm timeout as a Duration.
func (c *Config) GetConfirmTimeout() time.Duration {
	return time.Duration(c.DRC.ConfirmTimeout) * time.Second
}

// GetHeartbeatInterval returns the DRC heartbeat period as a Duration.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.DRC.HeartbeatInterval) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
