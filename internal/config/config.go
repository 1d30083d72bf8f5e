// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-sigauth.
//
// go-sigauth is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package config loads the sigauth configuration from a YAML file and
// SIGAUTH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix prefixes every environment variable read by the loader.
	EnvPrefix = "SIGAUTH_"

	DefaultTimeout    = 30 * time.Second
	DefaultStore      = "file"
	DefaultLocation   = "current_user"
	DefaultStorePath  = "~/.sigauth/certs"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultVerify     = "warn"
	DefaultEncoding   = "raw"
	DefaultConfigName = "sigauth.yaml"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete client configuration.
type Config struct {
	Auth        AuthConfig        `yaml:"auth"`
	Certificate CertificateConfig `yaml:"certificate"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// AuthConfig configures the authentication service endpoints and the
// handshake.
type AuthConfig struct {
	ChallengeURL    string        `yaml:"challenge_url" validate:"required,http_endpoint"`
	TokenURL        string        `yaml:"token_url" validate:"required,http_endpoint"`
	Timeout         time.Duration `yaml:"timeout" validate:"gte=0"`
	Detached        bool          `yaml:"detached"`
	Verify          string        `yaml:"verify" validate:"omitempty,oneof=skip warn enforce"`
	PayloadEncoding string        `yaml:"payload_encoding" validate:"omitempty,oneof=raw base64"`
	TLS             TLSConfig     `yaml:"tls"`
	RateLimit       RateLimit     `yaml:"rate_limit"`
}

// RateLimit throttles requests to the authentication service. Zero
// requests per minute disables throttling.
type RateLimit struct {
	RequestsPerMinute int `yaml:"requests_per_minute" validate:"gte=0"`
	Burst             int `yaml:"burst" validate:"gte=0"`
}

// TLSConfig controls verification of the service certificate.
type TLSConfig struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify"`
	CAFile             string `yaml:"ca_file" validate:"omitempty,file_exists"`
}

// CertificateConfig selects the certificate store and signing certificate.
type CertificateConfig struct {
	// Store is the provider: file, pkcs11 or platform.
	Store string `yaml:"store" validate:"required,oneof=file pkcs11 platform"`

	// Location is current_user or local_machine.
	Location string `yaml:"location" validate:"omitempty,store_location"`

	// Thumbprint selects one certificate; empty selects the first.
	Thumbprint string `yaml:"thumbprint" validate:"omitempty,thumbprint"`

	File   FileStoreConfig   `yaml:"file"`
	PKCS11 PKCS11StoreConfig `yaml:"pkcs11"`
}

// FileStoreConfig configures the PEM directory store.
type FileStoreConfig struct {
	Path     string `yaml:"path"`
	Password string `yaml:"password"`
}

// PKCS11StoreConfig configures the PKCS#11 token store.
type PKCS11StoreConfig struct {
	Library string `yaml:"library"`
	Token   string `yaml:"token"`
	PIN     string `yaml:"pin"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	ErrorLog   string `yaml:"error_log"`
	ReportPath string `yaml:"report_path"`
}

// MetricsConfig controls metrics export
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// Default returns a configuration with every optional value set.
func Default() *Config {
	return &Config{
		Auth: AuthConfig{
			Timeout:         DefaultTimeout,
			Detached:        true,
			Verify:          DefaultVerify,
			PayloadEncoding: DefaultEncoding,
		},
		Certificate: CertificateConfig{
			Store:    DefaultStore,
			Location: DefaultLocation,
			File: FileStoreConfig{
				Path: DefaultStorePath,
			},
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Load reads the configuration file at path over the defaults, applies
// environment overrides and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read is Load without validation. Callers that layer further overrides
// on the result validate it themselves.
func Read(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		// #nosec G304 - Config file path is provided by the user
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides replaces file values with SIGAUTH_* variables. Invalid
// values are reported and ignored.
func applyEnvOverrides(cfg *Config) {
	strs := map[string]*string{
		"CHALLENGE_URL":    &cfg.Auth.ChallengeURL,
		"TOKEN_URL":        &cfg.Auth.TokenURL,
		"VERIFY":           &cfg.Auth.Verify,
		"PAYLOAD_ENCODING": &cfg.Auth.PayloadEncoding,
		"CA_FILE":          &cfg.Auth.TLS.CAFile,
		"THUMBPRINT":       &cfg.Certificate.Thumbprint,
		"STORE":            &cfg.Certificate.Store,
		"STORE_LOCATION":   &cfg.Certificate.Location,
		"STORE_PATH":       &cfg.Certificate.File.Path,
		"STORE_PASSWORD":   &cfg.Certificate.File.Password,
		"PKCS11_LIBRARY":   &cfg.Certificate.PKCS11.Library,
		"PKCS11_TOKEN":     &cfg.Certificate.PKCS11.Token,
		"PKCS11_PIN":       &cfg.Certificate.PKCS11.PIN,
		"LOG_LEVEL":        &cfg.Logging.Level,
		"LOG_FORMAT":       &cfg.Logging.Format,
		"ERROR_LOG":        &cfg.Logging.ErrorLog,
		"REPORT_PATH":      &cfg.Logging.ReportPath,
		"METRICS_TEXTFILE": &cfg.Metrics.Textfile,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "TIMEOUT"); v != "" {
		d, err := parseTimeout(v)
		if err != nil {
			log.Printf("Warning: invalid %sTIMEOUT value %q, using %s: %v", EnvPrefix, v, cfg.Auth.Timeout, err)
		} else {
			cfg.Auth.Timeout = d
		}
	}

	bools := map[string]*bool{
		"DETACHED":             &cfg.Auth.Detached,
		"INSECURE_SKIP_VERIFY": &cfg.Auth.TLS.InsecureSkipVerify,
		"METRICS_ENABLED":      &cfg.Metrics.Enabled,
	}
	for name, dst := range bools {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Printf("Warning: invalid %s%s value %q, using %t: %v", EnvPrefix, name, v, *dst, err)
			continue
		}
		*dst = b
	}
}

// parseTimeout accepts a Go duration ("45s") or a whole number of seconds.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String returns the configuration as YAML with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.Certificate.File.Password = mask(c.Certificate.File.Password)
	masked.Certificate.PKCS11.PIN = mask(c.Certificate.PKCS11.PIN)
	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Sprintf("config: %v", err)
	}
	return string(data)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}
