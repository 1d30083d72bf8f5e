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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
auth:
  challenge_url: https://auth.example.com/auth/key
  token_url: https://auth.example.com/auth/token
  timeout: 10s
  verify: enforce
  payload_encoding: base64
certificate:
  store: file
  location: local_machine
  thumbprint: "a9 4a 8f e5 cc b1 9b a6 1c 4c 08 73 d3 91 e9 87 98 2f bb d3"
  file:
    path: /etc/sigauth/certs
logging:
  level: debug
  format: json
  error_log: /var/log/sigauth-errors.log
metrics:
  enabled: true
  textfile: /var/lib/node_exporter/sigauth.prom
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sigauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Success(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com/auth/key", cfg.Auth.ChallengeURL)
	assert.Equal(t, "https://auth.example.com/auth/token", cfg.Auth.TokenURL)
	assert.Equal(t, 10*time.Second, cfg.Auth.Timeout)
	assert.Equal(t, "enforce", cfg.Auth.Verify)
	assert.Equal(t, "base64", cfg.Auth.PayloadEncoding)
	assert.True(t, cfg.Auth.Detached, "unset keys keep their defaults")
	assert.Equal(t, "local_machine", cfg.Certificate.Location)
	assert.Equal(t, "/etc/sigauth/certs", cfg.Certificate.File.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("/nonexistent/sigauth.yaml")
	assert.ErrorContains(t, err, "failed to read config file")

	_, err = Load(writeConfig(t, "auth: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIGAUTH_CHALLENGE_URL", "http://localhost:8080/key")
	t.Setenv("SIGAUTH_TOKEN_URL", "http://localhost:8080/token")
	t.Setenv("SIGAUTH_TIMEOUT", "45")
	t.Setenv("SIGAUTH_THUMBPRINT", "")
	t.Setenv("SIGAUTH_STORE_LOCATION", "CurrentUser")
	t.Setenv("SIGAUTH_LOG_LEVEL", "warn")
	t.Setenv("SIGAUTH_DETACHED", "false")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/key", cfg.Auth.ChallengeURL)
	assert.Equal(t, "http://localhost:8080/token", cfg.Auth.TokenURL)
	assert.Equal(t, 45*time.Second, cfg.Auth.Timeout)
	assert.Empty(t, cfg.Certificate.Thumbprint, "set-but-empty variable clears the value")
	assert.Equal(t, "CurrentUser", cfg.Certificate.Location)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.False(t, cfg.Auth.Detached)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("SIGAUTH_CHALLENGE_URL", "https://a.example.com/key")
	t.Setenv("SIGAUTH_TOKEN_URL", "https://a.example.com/token")
	t.Setenv("SIGAUTH_TIMEOUT", "1m30s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Auth.Timeout)
	assert.Equal(t, DefaultStore, cfg.Certificate.Store)
}

func TestLoad_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("SIGAUTH_TIMEOUT", "soon")
	t.Setenv("SIGAUTH_METRICS_ENABLED", "maybe")

	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Auth.Timeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		c := Default()
		c.Auth.ChallengeURL = "https://a.example.com/key"
		c.Auth.TokenURL = "https://a.example.com/token"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Valid", func(*Config) {}, ""},
		{"MissingChallengeURL", func(c *Config) { c.Auth.ChallengeURL = "" }, "Auth.ChallengeURL is required"},
		{"RelativeTokenURL", func(c *Config) { c.Auth.TokenURL = "/token" }, "Auth.TokenURL must be an absolute http(s) URL"},
		{"NegativeTimeout", func(c *Config) { c.Auth.Timeout = -time.Second }, "Auth.Timeout"},
		{"BadVerify", func(c *Config) { c.Auth.Verify = "always" }, "Auth.Verify must be one of"},
		{"BadEncoding", func(c *Config) { c.Auth.PayloadEncoding = "hex" }, "Auth.PayloadEncoding"},
		{"BadStore", func(c *Config) { c.Certificate.Store = "registry" }, "Certificate.Store"},
		{"BadLocation", func(c *Config) { c.Certificate.Location = "roaming" }, "Certificate.Location"},
		{"ShortThumbprint", func(c *Config) { c.Certificate.Thumbprint = "ABCD" }, "Certificate.Thumbprint"},
		{"NonHexThumbprint", func(c *Config) { c.Certificate.Thumbprint = "ZZ4A8FE5CCB19BA61C4C0873D391E987982FBBD3" }, "Certificate.Thumbprint"},
		{"ColonThumbprint", func(c *Config) { c.Certificate.Thumbprint = "a9:4a:8f:e5:cc:b1:9b:a6:1c:4c:08:73:d3:91:e9:87:98:2f:bb:d3" }, ""},
		{"MissingCAFile", func(c *Config) { c.Auth.TLS.CAFile = "/nonexistent/ca.pem" }, "does not exist"},
		{"FileStoreWithoutPath", func(c *Config) { c.Certificate.File.Path = "" }, "certificate.file.path"},
		{"PKCS11WithoutLibrary", func(c *Config) { c.Certificate.Store = "pkcs11" }, "certificate.pkcs11.library"},
		{"PKCS11WithoutToken", func(c *Config) {
			c.Certificate.Store = "pkcs11"
			c.Certificate.PKCS11.Library = "/usr/lib/softhsm/libsofthsm2.so"
		}, "certificate.pkcs11.token"},
		{"PlatformStore", func(c *Config) { c.Certificate.Store = "platform" }, ""},
		{"BadLogLevel", func(c *Config) { c.Logging.Level = "trace" }, "Logging.Level"},
		{"BadLogFormat", func(c *Config) { c.Logging.Format = "xml" }, "Logging.Format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidConfig)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveAndString(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	cfg.Certificate.File.Password = "hunter2"
	cfg.Certificate.PKCS11.PIN = "1234"

	s := cfg.String()
	assert.NotContains(t, s, "hunter2")
	assert.NotContains(t, s, "1234")
	assert.Contains(t, s, "challenge_url: https://auth.example.com/auth/key")

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, cfg.Save(path))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidateStore(t *testing.T) {
	cfg, err := Read("")
	require.NoError(t, err)

	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, "endpoints are required for the handshake")
	assert.NoError(t, cfg.ValidateStore())

	cfg.Certificate.Store = "registry"
	err = cfg.ValidateStore()
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "Store must be one of")

	cfg.Certificate.Store = "pkcs11"
	assert.ErrorContains(t, cfg.ValidateStore(), "certificate.pkcs11.library is required")
}
