package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Registry backends.
const (
	RegistryBackendJSON   = "json"
	RegistryBackendSQLite = "sqlite"
)

// Config is the root configuration structure for Presence Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Registry RegistryConfig `yaml:"registry"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Web      WebConfig      `yaml:"web"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Scanner  ScannerConfig  `yaml:"scanner"`

	// envProblems collects environment overrides that could not be applied.
	envProblems []string
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	Name string `yaml:"name"`
}

// RegistryConfig selects where device settings are persisted.
type RegistryConfig struct {
	// Backend is "json" (a single JSON array file, rewritten on every
	// change) or "sqlite" (the database section is used).
	Backend string `yaml:"backend"`

	// Path is the JSON registry file used by the json backend.
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	KeepAlive int                 `yaml:"keep_alive"` // seconds
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`

	// ReceiveTimeoutMS bounds every wait of the ingest and publish loops.
	ReceiveTimeoutMS int `yaml:"receive_timeout_ms"`

	// PublishTimeoutMS bounds a single status publish.
	PublishTimeoutMS int `yaml:"publish_timeout_ms"`

	// MaxPayloadSize is the largest inbound or outbound payload in bytes.
	MaxPayloadSize int `yaml:"max_payload_size"`

	// RetainStatus publishes the status summary as a retained message.
	RetainStatus bool `yaml:"retain_status"`
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

// MQTTTopicsConfig names the topics this service talks on.
type MQTTTopicsConfig struct {
	// Discovery is the inbound topic carrying discovery snapshots.
	Discovery string `yaml:"discovery"`

	// Status is the outbound topic the presence summary is published to.
	Status string `yaml:"status"`

	// Availability, if set, receives retained online/offline messages and
	// is used as the Last Will topic.
	Availability string `yaml:"availability"`
}

// WebConfig contains settings for the HTTP server that serves the
// settings form and the JSON endpoints.
type WebConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts WebTimeoutConfig `yaml:"timeouts"`

	// TemplatesDir, if set and present on disk, replaces the embedded
	// templates and static assets (development only).
	TemplatesDir string `yaml:"templates_dir"`
}

// WebTimeoutConfig contains HTTP timeout settings in seconds.
type WebTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ScannerConfig configures cmd/presence-scan, the ARP discovery producer.
type ScannerConfig struct {
	// Interface is the network interface to sweep. Empty picks the first
	// interface that is up, not loopback, and has an IPv4 address.
	Interface string `yaml:"interface"`

	// Interval is the time between sweeps in seconds.
	Interval int `yaml:"interval"`

	// Timeout is how long one sweep listens for replies, in seconds.
	Timeout int `yaml:"timeout"`

	// Location is copied into every discovered record.
	Location string `yaml:"location"`

	// MaxHosts refuses to sweep prefixes with more addresses than this.
	MaxHosts int `yaml:"max_hosts"`
}

// ValidationError lists every problem found in a configuration.
// Callers can log Problems individually for a structured startup report.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration errors: %s", strings.Join(e.Problems, "; "))
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
// For example: PRESENCE_MQTT_HOST, PRESENCE_REGISTRY_PATH
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
		Site: SiteConfig{
			Name: "Presence",
		},
		Registry: RegistryConfig{
			Backend: RegistryBackendJSON,
			Path:    "./data/device_data.json",
		},
		Database: DatabaseConfig{
			Path:        "./data/presence.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "presence-core",
			},
			QoS:       0,
			KeepAlive: 5,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			ReceiveTimeoutMS: 2000,
			PublishTimeoutMS: 2000,
			MaxPayloadSize:   1000 * 1024,
		},
		Web: WebConfig{
			Host: "127.0.0.1",
			Port: 8000,
			Timeouts: WebTimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Scanner: ScannerConfig{
			Interval: 30,
			Timeout:  5,
			MaxHosts: 1024,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: PRESENCE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Registry
	if v := os.Getenv("PRESENCE_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}

	// MQTT
	if v := os.Getenv("PRESENCE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PRESENCE_MQTT_PORT"); v != "" {
		cfg.MQTT.Broker.Port = cfg.envInt("PRESENCE_MQTT_PORT", v, cfg.MQTT.Broker.Port)
	}
	if v := os.Getenv("PRESENCE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PRESENCE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("PRESENCE_MQTT_DISCOVERY_TOPIC"); v != "" {
		cfg.MQTT.Topics.Discovery = v
	}
	if v := os.Getenv("PRESENCE_MQTT_STATUS_TOPIC"); v != "" {
		cfg.MQTT.Topics.Status = v
	}

	// Web
	if v := os.Getenv("PRESENCE_WEB_HOST"); v != "" {
		cfg.Web.Host = v
	}
	if v := os.Getenv("PRESENCE_WEB_PORT"); v != "" {
		cfg.Web.Port = cfg.envInt("PRESENCE_WEB_PORT", v, cfg.Web.Port)
	}

	// InfluxDB
	if v := os.Getenv("PRESENCE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("PRESENCE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// envInt parses an integer override, recording a problem and keeping the
// current value if it does not parse.
func (c *Config) envInt(name, value string, current int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		c.envProblems = append(c.envProblems, fmt.Sprintf("%s must be an integer, got %q", name, value))
		return current
	}
	return n
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: *ValidationError listing every problem, or nil if valid
func (c *Config) Validate() error {
	errs := append([]string(nil), c.envProblems...)

	// Registry validation
	switch c.Registry.Backend {
	case RegistryBackendJSON:
		if c.Registry.Path == "" {
			errs = append(errs, "registry.path is required for the json backend")
		}
	case RegistryBackendSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("registry.backend must be %q or %q", RegistryBackendJSON, RegistryBackendSQLite))
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Discovery == "" {
		errs = append(errs, "mqtt.topics.discovery is required (set PRESENCE_MQTT_DISCOVERY_TOPIC)")
	}
	if c.MQTT.Topics.Status == "" {
		errs = append(errs, "mqtt.topics.status is required (set PRESENCE_MQTT_STATUS_TOPIC)")
	}
	if c.MQTT.ReceiveTimeoutMS <= 0 {
		errs = append(errs, "mqtt.receive_timeout_ms must be positive")
	}
	if c.MQTT.PublishTimeoutMS <= 0 {
		errs = append(errs, "mqtt.publish_timeout_ms must be positive")
	}

	// Web validation
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		errs = append(errs, "web.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Scanner validation
	if c.Scanner.Interval <= 0 {
		errs = append(errs, "scanner.interval must be positive")
	}
	if c.Scanner.Timeout <= 0 {
		errs = append(errs, "scanner.timeout must be positive")
	}
	if c.Scanner.Timeout >= c.Scanner.Interval && c.Scanner.Interval > 0 {
		errs = append(errs, "scanner.timeout must be shorter than scanner.interval")
	}

	if len(errs) > 0 {
		return &ValidationError{Problems: errs}
	}

	return nil
}

// ReceiveTimeout returns the bounded wait used by the ingest and publish loops.
func (c MQTTConfig) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutMS) * time.Millisecond
}

// PublishTimeout returns the bound on a single publish.
func (c MQTTConfig) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the web read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the web write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the web idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Web.Timeouts.Idle) * time.Second
}
