// Package config loads and validates the bridge's YAML configuration:
// HTTP server settings, API auth, the broker connection, and the seed
// namespaces, object types, and mapping rules.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/i3xbridge/errors"
	"github.com/c360/i3xbridge/mapping"
	"github.com/c360/i3xbridge/mqttclient"
	"github.com/c360/i3xbridge/pkg/timestamp"
	"github.com/c360/i3xbridge/pkg/tlsutil"
	"github.com/c360/i3xbridge/types"
)

// Config is the complete bridge configuration document.
type Config struct {
	Server      ServerConfig      `json:"server"      yaml:"server"`
	Auth        AuthConfig        `json:"auth"        yaml:"auth"`
	MQTT        mqttclient.Config `json:"mqtt"        yaml:"mqtt"`
	Logging     LoggingConfig     `json:"logging"     yaml:"logging"`
	Namespaces  []NamespaceSeed   `json:"namespaces"  yaml:"namespaces"`
	ObjectTypes []ObjectTypeSeed  `json:"objectTypes" yaml:"objectTypes"`
	Mappings    []mapping.Rule    `json:"mappings"    yaml:"mappings"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string               `json:"host"             yaml:"host"`
	Port            int                  `json:"port"             yaml:"port"`
	ReadTimeout     timestamp.Duration   `json:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    timestamp.Duration   `json:"write_timeout"    yaml:"write_timeout"`
	ShutdownTimeout timestamp.Duration   `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigins     []string             `json:"cors_origins"     yaml:"cors_origins"`
	RateLimit       RateLimitConfig      `json:"rate_limit"       yaml:"rate_limit"`
	TLS             tlsutil.ServerConfig `json:"tls"              yaml:"tls"`
}

// RateLimitConfig bounds API request rates per client.
type RateLimitConfig struct {
	Enabled bool    `json:"enabled" yaml:"enabled"`
	RPS     float64 `json:"rps"     yaml:"rps"`
	Burst   int     `json:"burst"   yaml:"burst"`
}

// AuthConfig holds the bearer/API-key check settings. When disabled,
// every request is accepted.
type AuthConfig struct {
	Enabled bool     `json:"enabled"  yaml:"enabled"`
	APIKeys []string `json:"api_keys" yaml:"api_keys"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `json:"level"  yaml:"level"`
	// Format is "json" or "text".
	Format string `json:"format" yaml:"format"`
}

// NamespaceSeed declares a namespace registered at startup.
type NamespaceSeed struct {
	URI         string `json:"uri"         yaml:"uri"`
	DisplayName string `json:"displayName" yaml:"displayName"`
}

// ObjectTypeSeed declares an object type registered at startup. Schema
// is an arbitrary JSON Schema document expressed in YAML.
type ObjectTypeSeed struct {
	ElementID    string         `json:"elementId"    yaml:"elementId"`
	DisplayName  string         `json:"displayName"  yaml:"displayName"`
	NamespaceURI string         `json:"namespaceUri" yaml:"namespaceUri"`
	Schema       map[string]any `json:"schema"       yaml:"schema"`
}

// Namespace converts the seed into the store's namespace record.
func (n NamespaceSeed) Namespace() types.Namespace {
	return types.Namespace{URI: n.URI, DisplayName: n.DisplayName}
}

// ObjectType converts the seed into the store's object type record.
func (o ObjectTypeSeed) ObjectType() (types.ObjectType, error) {
	ot := types.ObjectType{
		ElementID:    o.ElementID,
		DisplayName:  o.DisplayName,
		NamespaceURI: o.NamespaceURI,
	}
	if o.Schema != nil {
		raw, err := json.Marshal(o.Schema)
		if err != nil {
			return types.ObjectType{}, errors.WrapInvalid(err, "config", "ObjectType",
				fmt.Sprintf("encode schema for %s", o.ElementID))
		}
		ot.Schema = raw
	}
	return ot, nil
}

// DefaultConfig returns a runnable local-development configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     timestamp.Duration(30 * time.Second),
			WriteTimeout:    timestamp.Duration(30 * time.Second),
			ShutdownTimeout: timestamp.Duration(10 * time.Second),
			RateLimit: RateLimitConfig{
				RPS:   50,
				Burst: 100,
			},
		},
		MQTT: mqttclient.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// EnvBrokerURL overrides the configured MQTT broker URL, letting
// deployments point one config file at different brokers.
const EnvBrokerURL = "I3XBRIDGE_MQTT_BROKER_URL"

// Load reads, parses, and validates a YAML configuration file. Unset
// fields fall back to DefaultConfig values; environment overrides are
// applied after parsing, before validation.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load",
			fmt.Sprintf("read config file %s", path))
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load",
			fmt.Sprintf("parse config file %s", path))
	}

	if url := os.Getenv(EnvBrokerURL); url != "" {
		cfg.MQTT.BrokerURL = url
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions a running
// bridge cannot tolerate.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return invalid(fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return invalid(fmt.Errorf("auth enabled with no api keys"))
	}
	if c.MQTT.BrokerURL == "" {
		return invalid(fmt.Errorf("mqtt broker URL is required"))
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RPS <= 0 {
		return invalid(fmt.Errorf("rate limit enabled with rps %v", c.Server.RateLimit.RPS))
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Errorf("unknown log level %q", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return invalid(fmt.Errorf("unknown log format %q", c.Logging.Format))
	}

	seen := make(map[string]struct{}, len(c.Mappings))
	for i := range c.Mappings {
		rule := &c.Mappings[i]
		if err := rule.Validate(); err != nil {
			return err
		}
		if _, dup := seen[rule.ID]; dup {
			return invalid(fmt.Errorf("duplicate mapping rule id %q", rule.ID))
		}
		seen[rule.ID] = struct{}{}
		if _, err := mapping.CompilePattern(rule.TopicPattern); err != nil {
			return err
		}
	}

	for _, ns := range c.Namespaces {
		if ns.URI == "" {
			return invalid(fmt.Errorf("namespace with empty uri"))
		}
	}
	for _, ot := range c.ObjectTypes {
		if ot.ElementID == "" {
			return invalid(fmt.Errorf("object type with empty elementId"))
		}
	}
	return nil
}

func invalid(err error) error {
	return errors.WrapInvalid(
		fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
		"config", "Validate", "validate config")
}
