package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/c360/shopstream/errors"
	"github.com/c360/shopstream/pkg/security"
)

const envPrefix = "SHOPSTREAM"

// Duration unmarshals from a Go duration string ("5s") or nanoseconds
type Duration time.Duration

// UnmarshalJSON accepts both string and numeric forms
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case string:
		parsed, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", val, err)
		}
		*d = Duration(parsed)
		return nil
	case float64:
		*d = Duration(time.Duration(val))
		return nil
	default:
		return fmt.Errorf("duration must be a string or number, got %T", v)
	}
}

// MarshalJSON writes the duration in its string form
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete application configuration
type Config struct {
	Gateway GatewayConfig `json:"gateway"`
	Broker  BrokerConfig  `json:"broker"`
	Logging LoggingConfig `json:"logging"`
}

// GatewayConfig holds HTTP server and routing settings
type GatewayConfig struct {
	ListenAddr      string                   `json:"listen_addr"`
	MaxRequestSize  int64                    `json:"max_request_size,omitempty"`
	CallTimeout     Duration                 `json:"call_timeout,omitempty"`
	ReadTimeout     Duration                 `json:"read_timeout,omitempty"`
	WriteTimeout    Duration                 `json:"write_timeout,omitempty"`
	ShutdownTimeout Duration                 `json:"shutdown_timeout,omitempty"`
	TLS             security.ServerTLSConfig `json:"tls,omitempty"`
}

// BrokerConfig holds the NATS connection and subject layout
type BrokerConfig struct {
	URL             string                   `json:"url"`
	ConnectAttempts int                      `json:"connect_attempts,omitempty"`
	ConnectBackoff  Duration                 `json:"connect_backoff,omitempty"`
	MaxReconnects   int                      `json:"max_reconnects,omitempty"`
	ReconnectWait   Duration                 `json:"reconnect_wait,omitempty"`
	Username        string                   `json:"username,omitempty"`
	Password        string                   `json:"password,omitempty"`
	Token           string                   `json:"token,omitempty"`
	TLS             security.ClientTLSConfig `json:"tls,omitempty"`
	Subjects        SubjectConfig            `json:"subjects,omitempty"`
}

// SubjectConfig names the request queues, the fan-out channel, and the
// work-queue stream that captures the queues
type SubjectConfig struct {
	Stream       string `json:"stream,omitempty"`
	UserRequests string `json:"user_requests,omitempty"`
	ItemRequests string `json:"item_requests,omitempty"`
	ItemUpdates  string `json:"item_updates,omitempty"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level  string `json:"level,omitempty"`  // debug, info, warn, error
	Format string `json:"format,omitempty"` // text or json
}

// Default returns the stock configuration
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ListenAddr:      ":8080",
			MaxRequestSize:  1024 * 1024,
			CallTimeout:     Duration(5 * time.Second),
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Broker: BrokerConfig{
			URL:             "nats://localhost:4222",
			ConnectAttempts: 5,
			ConnectBackoff:  Duration(2 * time.Second),
			MaxReconnects:   -1,
			ReconnectWait:   Duration(2 * time.Second),
			Subjects: SubjectConfig{
				Stream:       "rpc_requests",
				UserRequests: "user_requests",
				ItemRequests: "item_requests",
				ItemUpdates:  "item_updates",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration file at path (optional), layers it over the
// defaults, applies SHOPSTREAM_* environment overrides, and validates the
// result. An empty path loads defaults plus environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "read config file")
		}
		if err := validateDocument(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Config", "Load", "parse config file")
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers environment variables over the file values so
// deployments can inject addresses and credentials without editing files
func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv(envPrefix + "_LISTEN_ADDR"); val != "" {
		cfg.Gateway.ListenAddr = val
	}
	if val := os.Getenv(envPrefix + "_NATS_URL"); val != "" {
		cfg.Broker.URL = val
	}
	if val := os.Getenv(envPrefix + "_NATS_USERNAME"); val != "" {
		cfg.Broker.Username = val
	}
	if val := os.Getenv(envPrefix + "_NATS_PASSWORD"); val != "" {
		cfg.Broker.Password = val
	}
	if val := os.Getenv(envPrefix + "_NATS_TOKEN"); val != "" {
		cfg.Broker.Token = val
	}
	if val := os.Getenv(envPrefix + "_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv(envPrefix + "_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv(envPrefix + "_CONNECT_ATTEMPTS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Broker.ConnectAttempts = n
		}
	}
}

// Validate checks bounds and normalizes defaults in place
func (c *Config) Validate() error {
	if c.Gateway.ListenAddr == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"gateway.listen_addr cannot be empty")
	}

	if c.Gateway.MaxRequestSize < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"gateway.max_request_size cannot be negative")
	}
	if c.Gateway.MaxRequestSize == 0 {
		c.Gateway.MaxRequestSize = 1024 * 1024
	}
	if c.Gateway.MaxRequestSize > 100*1024*1024 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"gateway.max_request_size cannot exceed 100MB")
	}

	if c.Gateway.CallTimeout == 0 {
		c.Gateway.CallTimeout = Duration(5 * time.Second)
	}
	if c.Gateway.CallTimeout.Std() < 100*time.Millisecond || c.Gateway.CallTimeout.Std() > 30*time.Second {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"gateway.call_timeout must be between 100ms and 30s")
	}

	if c.Gateway.TLS.Enabled {
		if c.Gateway.TLS.CertFile == "" || c.Gateway.TLS.KeyFile == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				"gateway.tls requires cert_file and key_file when enabled")
		}
	}

	if c.Broker.URL == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"broker.url cannot be empty")
	}
	if c.Broker.ConnectAttempts < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"broker.connect_attempts must be at least 1")
	}

	// Broker client certs are optional even with TLS on; they only make
	// sense as a pair.
	if (c.Broker.TLS.CertFile == "") != (c.Broker.TLS.KeyFile == "") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"broker.tls cert_file and key_file must be set together")
	}

	for name, subject := range map[string]string{
		"broker.subjects.stream":        c.Broker.Subjects.Stream,
		"broker.subjects.user_requests": c.Broker.Subjects.UserRequests,
		"broker.subjects.item_requests": c.Broker.Subjects.ItemRequests,
		"broker.subjects.item_updates":  c.Broker.Subjects.ItemUpdates,
	} {
		if !isValidSubjectPart(subject) {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("%s %q is not a valid broker subject", name, subject))
		}
	}

	level := strings.ToLower(c.Logging.Level)
	switch level {
	case "", "debug", "info", "warn", "error":
		if level == "" {
			level = "info"
		}
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}
	c.Logging.Level = level

	format := strings.ToLower(c.Logging.Format)
	switch format {
	case "":
		format = "text"
	case "text", "json":
	default:
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			fmt.Sprintf("logging.format %q must be text or json", c.Logging.Format))
	}
	c.Logging.Format = format

	return nil
}

// isValidSubjectPart checks a name can be used as a broker subject token.
// Valid characters are alphanumeric, dots, dashes, and underscores.
func isValidSubjectPart(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) &&
			r != '-' && r != '_' && r != '.' {
			return false
		}
	}
	return true
}

// String returns an indented JSON form with credentials masked
func (c *Config) String() string {
	clone := *c
	if clone.Broker.Password != "" {
		clone.Broker.Password = "***"
	}
	if clone.Broker.Token != "" {
		clone.Broker.Token = "***"
	}
	data, _ := json.MarshalIndent(&clone, "", "  ")
	return string(data)
}
