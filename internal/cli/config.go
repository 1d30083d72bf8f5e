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


package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-sigauth/internal/config"
)

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text, table)
	OutputFormat string

	// Verbose enables debug logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: string(OutputFormatText),
	}
}

// configFromViper reads the global options. Flags take precedence over
// SIGAUTH_CONFIG, SIGAUTH_OUTPUT and SIGAUTH_VERBOSE.
func configFromViper(v *viper.Viper) (*Config, error) {
	cfg := NewConfig()
	cfg.ConfigFile = v.GetString("config")
	if format := v.GetString("output"); format != "" {
		cfg.OutputFormat = strings.ToLower(format)
	}
	cfg.Verbose = v.GetBool("verbose")

	switch OutputFormat(cfg.OutputFormat) {
	case OutputFormatText, OutputFormatJSON, OutputFormatTable:
	default:
		return nil, fmt.Errorf("unknown output format: %s", cfg.OutputFormat)
	}
	return cfg, nil
}

// ResolveConfigFile returns ConfigFile when set, otherwise the first
// sigauth.yaml found in the working directory, ~/.sigauth or /etc/sigauth.
// An empty result means defaults and environment only.
func (c *Config) ResolveConfigFile() string {
	if c.ConfigFile != "" {
		return expandHome(c.ConfigFile)
	}
	candidates := []string{config.DefaultConfigName}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".sigauth", config.DefaultConfigName))
	}
	candidates = append(candidates, filepath.Join("/etc/sigauth", config.DefaultConfigName))

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// applyFlagOverrides copies explicitly set flags over the loaded
// configuration.
func applyFlagOverrides(flags *pflag.FlagSet, v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		"challenge-url": &cfg.Auth.ChallengeURL,
		"token-url":     &cfg.Auth.TokenURL,
		"ca-file":       &cfg.Auth.TLS.CAFile,
		"thumbprint":    &cfg.Certificate.Thumbprint,
		"store":         &cfg.Certificate.Store,
		"location":      &cfg.Certificate.Location,
		"store-path":    &cfg.Certificate.File.Path,
		"log-level":     &cfg.Logging.Level,
	}
	for name, dst := range strs {
		if flags.Changed(name) {
			*dst = v.GetString(name)
		}
	}
	if flags.Changed("timeout") {
		cfg.Auth.Timeout = v.GetDuration("timeout")
	}
	if flags.Changed("insecure-skip-verify") {
		cfg.Auth.TLS.InsecureSkipVerify = v.GetBool("insecure-skip-verify")
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
