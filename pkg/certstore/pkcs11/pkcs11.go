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

// Package pkcs11 provides a certstore.Provider over a PKCS#11 token such as
// a smart card, USB token or HSM. Only certificates paired with a private
// key on the token are listed.
//
// A token has no user and machine partitions, so every location opens the
// same token.
package pkcs11

import (
	"context"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ThalesGroup/crypto11"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

var (
	// ErrInvalidConfig is returned for incomplete token configuration.
	ErrInvalidConfig = errors.New("pkcs11: invalid configuration")

	// ErrLibraryNotFound is returned when the module library does not exist.
	ErrLibraryNotFound = errors.New("pkcs11: library not found")

	// ErrInvalidPINLength is returned for PINs shorter than four characters.
	ErrInvalidPINLength = errors.New("pkcs11: PIN must be at least 4 characters")

	// ErrClosed is returned when a closed store handle is used.
	ErrClosed = errors.New("pkcs11: store is closed")
)

// Config configures access to a PKCS#11 token.
type Config struct {
	// Library is the path to the PKCS#11 module.
	// Examples:
	//   - /usr/lib/softhsm/libsofthsm2.so (SoftHSM)
	//   - /usr/lib/libykcs11.so (YubiKey)
	Library string `yaml:"library" json:"library" mapstructure:"library"`

	// TokenLabel is the label of the token to log in to.
	TokenLabel string `yaml:"token" json:"token" mapstructure:"token"`

	// PIN is the user PIN.
	PIN string `yaml:"pin,omitempty" json:"pin,omitempty" mapstructure:"pin"`
}

// Validate checks that the configuration can be used to open a token.
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if c.Library == "" {
		return fmt.Errorf("%w: library path is required", ErrInvalidConfig)
	}
	if _, err := os.Stat(c.Library); os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrLibraryNotFound, c.Library)
	}
	if c.TokenLabel == "" {
		return fmt.Errorf("%w: token label is required", ErrInvalidConfig)
	}
	if c.PIN != "" && len(c.PIN) < 4 {
		return ErrInvalidPINLength
	}
	return nil
}

// String returns the configuration with the PIN masked.
func (c *Config) String() string {
	pin := ""
	if c.PIN != "" {
		pin = strings.Repeat("*", len(c.PIN))
	}
	return fmt.Sprintf("PKCS#11{library=%s, token=%s, pin=%s}", c.Library, c.TokenLabel, pin)
}

// tokenContext is the subset of *crypto11.Context used by the provider.
type tokenContext interface {
	FindAllPairedCertificates() ([]tls.Certificate, error)
	Close() error
}

// configure opens a crypto11 context; replaced in tests.
var configure = func(cfg *crypto11.Config) (tokenContext, error) {
	return crypto11.Configure(cfg)
}

// Provider opens a PKCS#11 token as a certificate store.
type Provider struct {
	config Config
}

// New creates a provider for the token described by config.
func New(config *Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Provider{config: *config}, nil
}

// Name implements certstore.Provider.
func (p *Provider) Name() string {
	return "pkcs11"
}

// Open logs in to the token and enumerates its paired certificates. The
// token session stays open until the store is closed.
func (p *Provider) Open(ctx context.Context, _ certstore.Location) (certstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tok, err := configure(&crypto11.Config{
		Path:       p.config.Library,
		TokenLabel: p.config.TokenLabel,
		Pin:        p.config.PIN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure PKCS#11 context: %w", err)
	}

	pairs, err := tok.FindAllPairedCertificates()
	if err != nil {
		_ = tok.Close()
		return nil, fmt.Errorf("failed to enumerate token certificates: %w", err)
	}

	ids := make([]certstore.Identity, 0, len(pairs))
	for _, pair := range pairs {
		id, err := newIdentity(pair)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return &store{token: tok, ids: ids}, nil
}

type store struct {
	mu     sync.Mutex
	token  tokenContext
	ids    []certstore.Identity
	closed bool
}

func (s *store) Find(criteria certstore.Criteria) ([]certstore.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []certstore.Identity
	for _, id := range s.ids {
		if criteria.Matches(id.Certificate()) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	s.ids = nil
	return s.token.Close()
}

// identity is a token certificate and its key handle.
type identity struct {
	cert   *x509.Certificate
	signer crypto.Signer
}

func newIdentity(pair tls.Certificate) (*identity, error) {
	cert := pair.Leaf
	if cert == nil {
		if len(pair.Certificate) == 0 {
			return nil, errors.New("pkcs11: empty certificate chain")
		}
		var err error
		if cert, err = x509.ParseCertificate(pair.Certificate[0]); err != nil {
			return nil, err
		}
	}
	signer, _ := pair.PrivateKey.(crypto.Signer)
	return &identity{cert: cert, signer: signer}, nil
}

func (i *identity) Certificate() *x509.Certificate {
	return i.cert
}

func (i *identity) Signer() (crypto.Signer, error) {
	if i.signer == nil {
		return nil, certstore.ErrNoPrivateKey
	}
	return i.signer, nil
}
