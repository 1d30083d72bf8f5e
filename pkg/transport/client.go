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

// Package transport implements the HTTP side of the challenge handshake:
// fetching a challenge and exchanging a signed challenge for a token.
//
// A Client holds immutable configuration and opens Sessions. Each Session
// owns its own connection pool, released by Close. Requests are issued once;
// retry policy belongs to the caller.
package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/jeremyhahn/go-sigauth/pkg/logging"
	"github.com/jeremyhahn/go-sigauth/pkg/ratelimit"
)

const (
	// DefaultTimeout bounds each request when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	// maxBodySize limits response bodies.
	maxBodySize = 1 << 20

	defaultUserAgent = "sigauth/1.0"
)

// Config configures the authentication endpoints.
type Config struct {
	// ChallengeURL is fetched with GET to obtain a challenge.
	ChallengeURL string

	// TokenURL receives the signed challenge with POST.
	TokenURL string

	// Timeout bounds each request. Defaults to DefaultTimeout.
	Timeout time.Duration

	// TLSInsecureSkipVerify disables server certificate verification.
	TLSInsecureSkipVerify bool

	// TLSCAFile is a PEM bundle of additional trusted roots.
	TLSCAFile string

	// Headers are added to every request.
	Headers map[string]string

	// UserAgent overrides the User-Agent header.
	UserAgent string

	// Logger receives request diagnostics.
	Logger *logging.Logger

	// Transport overrides the base round tripper. Sessions use it as is
	// instead of creating their own pool.
	Transport http.RoundTripper

	// Limiter throttles requests across every session of the client.
	// Optional.
	Limiter *ratelimit.Limiter
}

// Client issues sessions against the configured endpoints. Thread-safe.
type Client struct {
	challengeURL string
	tokenURL     string
	timeout      time.Duration
	headers      map[string]string
	userAgent    string
	logger       *logging.Logger

	tlsConfig *tls.Config
	transport http.RoundTripper
	limiter   *ratelimit.Limiter
}

// New validates cfg and creates a client. No connection is made.
func New(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if err := validateURL("challenge URL", cfg.ChallengeURL); err != nil {
		return nil, err
	}
	if err := validateURL("token URL", cfg.TokenURL); err != nil {
		return nil, err
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must not be negative", ErrInvalidConfig)
	}

	c := &Client{
		challengeURL: cfg.ChallengeURL,
		tokenURL:     cfg.TokenURL,
		timeout:      cfg.Timeout,
		headers:      cfg.Headers,
		userAgent:    cfg.UserAgent,
		logger:       cfg.Logger,
		transport:    cfg.Transport,
		limiter:      cfg.Limiter,
	}
	if c.timeout == 0 {
		c.timeout = DefaultTimeout
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}

	tlsConfig, err := newTLSConfig(cfg)
	if err != nil {
		return nil, err
	}
	c.tlsConfig = tlsConfig
	return c, nil
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// Open creates a session with a dedicated connection pool.
func (c *Client) Open(ctx context.Context) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: "open session", Err: err}
	}

	s := &Session{client: c}
	if c.transport != nil {
		s.http = &http.Client{Transport: c.transport}
		return s, nil
	}

	base, _ := http.DefaultTransport.(*http.Transport)
	var tr *http.Transport
	if base != nil {
		tr = base.Clone()
	} else {
		tr = &http.Transport{Proxy: http.ProxyFromEnvironment}
	}
	tr.TLSClientConfig = c.tlsConfig
	s.pool = tr
	s.http = &http.Client{Transport: tr}
	c.logger.Debug("transport session opened")
	return s, nil
}

// WithSession opens a session, runs fn and closes the session regardless of
// the outcome.
func WithSession(ctx context.Context, c *Client, fn func(*Session) error) error {
	s, err := c.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func validateURL(name, raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, name)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, name, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute http(s) URL: %q", ErrInvalidConfig, name, raw)
	}
	return nil
}

func newTLSConfig(cfg *Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSInsecureSkipVerify, // #nosec G402 - opt-in for test environments
		MinVersion:         tls.VersionTLS12,
	}

	if cfg.TLSCAFile != "" {
		caCert, err := os.ReadFile(cfg.TLSCAFile)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CA certificate: %v", ErrInvalidConfig, err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("%w: failed to parse CA certificate", ErrInvalidConfig)
		}
		tlsConfig.RootCAs = pool
	}
	return tlsConfig, nil
}
