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

	"github.com/jeremyhahn/go-sigauth/internal/config"
	"github.com/jeremyhahn/go-sigauth/pkg/auth"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore/file"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore/pkcs11"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore/platform"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
	"github.com/jeremyhahn/go-sigauth/pkg/ratelimit"
	"github.com/jeremyhahn/go-sigauth/pkg/signing"
	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

// newProvider creates the certificate store provider named by cfg.Store.
func newProvider(cfg *config.CertificateConfig, logger *logging.Logger) (certstore.Provider, error) {
	switch cfg.Store {
	case "file":
		var password []byte
		if cfg.File.Password != "" {
			password = []byte(cfg.File.Password)
		}
		return file.New(expandHome(cfg.File.Path), &file.Options{
			Password: password,
			Logger:   logger,
		})
	case "pkcs11":
		return pkcs11.New(&pkcs11.Config{
			Library:    cfg.PKCS11.Library,
			TokenLabel: cfg.PKCS11.Token,
			PIN:        cfg.PKCS11.PIN,
		})
	case "platform":
		return platform.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown certificate store %q", config.ErrInvalidConfig, cfg.Store)
	}
}

// newAuthenticator wires the transport, certificate store and signing
// service described by cfg.
func newAuthenticator(cfg *config.Config, logger *logging.Logger) (*auth.Authenticator, error) {
	provider, err := newProvider(&cfg.Certificate, logger)
	if err != nil {
		return nil, err
	}
	location, err := certstore.ParseLocation(cfg.Certificate.Location)
	if err != nil {
		return nil, err
	}
	verify, err := auth.ParseVerifyPolicy(cfg.Auth.Verify)
	if err != nil {
		return nil, err
	}
	payload, err := auth.ParsePayloadEncoding(cfg.Auth.PayloadEncoding)
	if err != nil {
		return nil, err
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	return auth.New(&auth.Config{
		Transport:       auth.HTTPTransport(client),
		Provider:        provider,
		Signer:          signing.NewCAdES(&signing.Options{Logger: logger}),
		Logger:          logger,
		Thumbprint:      cfg.Certificate.Thumbprint,
		Location:        location,
		Detached:        cfg.Auth.Detached,
		Verify:          verify,
		PayloadEncoding: payload,
	})
}

// newClient creates the transport client for the configured endpoints.
func newClient(cfg *config.Config, logger *logging.Logger) (*transport.Client, error) {
	limiter, err := ratelimit.New(&ratelimit.Config{
		RequestsPerMinute: cfg.Auth.RateLimit.RequestsPerMinute,
		Burst:             cfg.Auth.RateLimit.Burst,
	})
	if err != nil {
		return nil, err
	}

	client, err := transport.New(&transport.Config{
		ChallengeURL:          cfg.Auth.ChallengeURL,
		TokenURL:              cfg.Auth.TokenURL,
		Timeout:               cfg.Auth.Timeout,
		TLSInsecureSkipVerify: cfg.Auth.TLS.InsecureSkipVerify,
		TLSCAFile:             expandHome(cfg.Auth.TLS.CAFile),
		UserAgent:             "sigauth/" + Version,
		Logger:                logger,
		Limiter:               limiter,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Auth.TLS.InsecureSkipVerify {
		logger.Warn("TLS certificate verification is disabled")
	}
	return client, nil
}
