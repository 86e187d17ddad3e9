package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the coordinator.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig        `yaml:"site"`
	MQTT      MQTTConfig        `yaml:"mqtt"`
	API       APIConfig         `yaml:"api"`
	WebSocket WebSocketConfig   `yaml:"websocket"`
	Heartbeat HeartbeatConfig   `yaml:"heartbeat"`
	InfluxDB  InfluxDBConfig    `yaml:"influxdb"`
	Logging   LoggingConfig     `yaml:"logging"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	AdminUserID string          `yaml:"admin_user_id"`
	AccessLogRetention int       `yaml:"access_log_retention"`
	Devices   []DeviceSeedConfig `yaml:"devices"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// MQTTConfig contains MQTT broker connection settings, used to republish
// device state and access events for external telemetry consumers.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	APIPrefix string           `yaml:"api_prefix"`
	TLS       TLSConfig        `yaml:"tls"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains the dashboard observer WebSocket's transport
// settings. Heartbeat cadence for both observer and controller sessions
// lives in HeartbeatConfig since the spec pins them to the same clock.
type WebSocketConfig struct {
	Endpoint       string `yaml:"ws_endpoint"`
	MaxMessageSize int    `yaml:"max_message_size"`
}

// HeartbeatConfig controls the Connection Registry's ping/pong cadence for
// both observer and controller sessions.
type HeartbeatConfig struct {
	PingIntervalSeconds int `yaml:"ping_interval"`
	PongDeadlineSeconds int `yaml:"pong_deadline"`
}

func (h HeartbeatConfig) PingInterval() time.Duration {
	return time.Duration(h.PingIntervalSeconds) * time.Second
}

func (h HeartbeatConfig) PongDeadline() time.Duration {
	return time.Duration(h.PongDeadlineSeconds) * time.Second
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// RateLimitConfig contains the Rate Limiter's four enumerated tunables
// plus the admin-exemption policy choice.
type RateLimitConfig struct {
	MaxAttemptsPerMinute     int  `yaml:"max_attempts_per_minute"`
	MaxFailedAttempts        int  `yaml:"max_failed_attempts"`
	LockoutDurationSeconds   int  `yaml:"lockout_duration"`
	CleanupIntervalMinutes   int  `yaml:"cleanup_interval"`
	AdminExemptFromRateLimit bool `yaml:"admin_exempt_from_rate_limit"`
}

func (r RateLimitConfig) LockoutDuration() time.Duration {
	return time.Duration(r.LockoutDurationSeconds) * time.Second
}

func (r RateLimitConfig) CleanupInterval() time.Duration {
	return time.Duration(r.CleanupIntervalMinutes) * time.Minute
}

// DeviceSeedConfig describes one device as loaded from configuration at
// startup.
type DeviceSeedConfig struct {
	ID                    string `yaml:"id"`
	Location              string `yaml:"location"`
	Kind                  string `yaml:"kind"`
	InitialPhysicalStatus string `yaml:"initial_physical_status"`
	InitialLockState      string `yaml:"initial_lock_state"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: DOORGUARD_SECTION_KEY
// For example: DOORGUARD_API_HOST, DOORGUARD_MQTT_HOST
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

// defaultConfig returns a Config with the shipped defaults, seeded with
// the canonical two-door demonstration layout.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Doorguard",
			Timezone: "UTC",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorguard-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
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
		WebSocket: WebSocketConfig{
			Endpoint:       "/ws",
			MaxMessageSize: 8192,
		},
		Heartbeat: HeartbeatConfig{
			PingIntervalSeconds: 10,
			PongDeadlineSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		RateLimit: RateLimitConfig{
			MaxAttemptsPerMinute:   10,
			MaxFailedAttempts:      5,
			LockoutDurationSeconds: 60,
			CleanupIntervalMinutes: 60,
		},
		AdminUserID:        "admin",
		AccessLogRetention: 10000,
		Devices: []DeviceSeedConfig{
			{ID: "DOOR-001", Location: "Front Entrance", Kind: "physical", InitialPhysicalStatus: "closed", InitialLockState: "locked"},
			{ID: "DOOR-002", Location: "Side Gate", Kind: "virtual", InitialPhysicalStatus: "closed", InitialLockState: "unlocked"},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DOORGUARD_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DOORGUARD_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORGUARD_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORGUARD_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("DOORGUARD_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("DOORGUARD_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("DOORGUARD_ADMIN_USER_ID"); v != "" {
		cfg.AdminUserID = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.RateLimit.MaxAttemptsPerMinute < 1 {
		errs = append(errs, "rate_limit.max_attempts_per_minute must be at least 1")
	}
	if c.RateLimit.MaxFailedAttempts < 1 {
		errs = append(errs, "rate_limit.max_failed_attempts must be at least 1")
	}
	if c.RateLimit.LockoutDurationSeconds < 1 {
		errs = append(errs, "rate_limit.lockout_duration must be at least 1 second")
	}
	if c.RateLimit.CleanupIntervalMinutes < 1 {
		errs = append(errs, "rate_limit.cleanup_interval must be at least 1 minute")
	}

	if c.AdminUserID == "" {
		errs = append(errs, "admin_user_id is required")
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.ID == "" {
			errs = append(errs, "devices: id is required for every seed record")
			continue
		}
		if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("devices: duplicate id %q", d.ID))
		}
		seen[d.ID] = true
		if d.Kind != "physical" && d.Kind != "virtual" {
			errs = append(errs, fmt.Sprintf("devices: %q has invalid kind %q", d.ID, d.Kind))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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
