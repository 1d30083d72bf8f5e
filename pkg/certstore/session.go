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

package certstore

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sigauth/pkg/logging"
	"github.com/jeremyhahn/go-sigauth/pkg/metrics"
)

// Session is a scoped handle to a certificate store.
//
// The zero state is closed-for-use: Select fails with ErrNoSession until Open
// succeeds. Close may be called any number of times, including before Open
// or after a failed Open. A Session is safe for concurrent use, although the
// underlying platform store may not be; callers sharing one store across
// goroutines should serialize their sessions.
type Session struct {
	provider Provider
	logger   *logging.Logger

	mu       sync.Mutex
	store    Store
	location Location
	cert     *Certificate
	closed   bool
}

// NewSession creates a session over provider without opening the store.
func NewSession(provider Provider, logger *logging.Logger) *Session {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Session{
		provider: provider,
		logger:   logger,
	}
}

// Open creates a session and opens the store at location. On failure the
// session is released before returning.
func Open(ctx context.Context, provider Provider, location Location, logger *logging.Logger) (*Session, error) {
	s := NewSession(provider, logger)
	if err := s.Open(ctx, location); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open acquires the store handle at location.
func (s *Session) Open(ctx context.Context, location Location) error {
	if s.provider == nil {
		return ErrProviderRequired
	}
	if !location.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidLocation, location)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if s.store != nil {
		return ErrSessionOpen
	}

	start := time.Now()
	store, err := s.provider.Open(ctx, location)
	metrics.RecordOperation(metrics.OpStoreOpen, s.provider.Name(), metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		metrics.RecordError(metrics.OpStoreOpen, s.provider.Name(), "unavailable")
		s.logger.Error("failed to open certificate store",
			"provider", s.provider.Name(), "location", location, "error", err)
		return fmt.Errorf("%w: %s %s: %w", ErrStoreUnavailable, s.provider.Name(), location, err)
	}

	s.store = store
	s.location = location
	s.logger.Debug("certificate store opened", "provider", s.provider.Name(), "location", location)
	return nil
}

// Select chooses the signing certificate. A thumbprint must match exactly
// (ignoring case and separators); a thumbprint that is empty once separators
// are removed selects the first certificate in the store. On failure the previously selected
// certificate, if any, is cleared.
func (s *Session) Select(thumbprint string) (*Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil, ErrNoSession
	}
	s.cert = nil
	thumbprint = NormalizeThumbprint(thumbprint)

	start := time.Now()
	ids, err := s.store.Find(Criteria{Thumbprint: thumbprint})
	if err == nil && len(ids) == 0 {
		err = ErrNotFound
	}
	metrics.RecordOperation(metrics.OpSelect, s.provider.Name(), metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		if thumbprint != "" {
			err = fmt.Errorf("%w: thumbprint %s", err, thumbprint)
		}
		metrics.RecordError(metrics.OpSelect, s.provider.Name(), "not_found")
		s.logger.Error("failed to select certificate", "provider", s.provider.Name(), "error", err)
		return nil, err
	}

	id := ids[0]
	s.cert = &Certificate{
		x509:     id.Certificate(),
		identity: id,
		session:  s,
	}
	s.logger.Info("selected certificate",
		"subject", s.cert.Subject(), "thumbprint", s.cert.Thumbprint())
	return s.cert, nil
}

// Certificate returns the selected certificate, or nil if none is selected.
func (s *Session) Certificate() *Certificate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cert
}

// Certificates lists every certificate in the open store.
func (s *Session) Certificates() ([]CertificateInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil, ErrNoSession
	}
	ids, err := s.store.Find(Criteria{})
	if err != nil {
		return nil, err
	}
	infos := make([]CertificateInfo, 0, len(ids))
	for _, id := range ids {
		infos = append(infos, NewCertificateInfo(id))
	}
	return infos, nil
}

// Location returns the location of the open store.
func (s *Session) Location() Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// IsOpen reports whether the store handle is held.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// Close releases the store handle. Every certificate handle obtained from
// the session becomes invalid. Close is idempotent; only the first call that
// releases a handle can return an error.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.cert = nil
	if s.store == nil {
		return nil
	}
	store := s.store
	s.store = nil

	if err := store.Close(); err != nil {
		s.logger.Warn("failed to close certificate store", "provider", s.provider.Name(), "error", err)
		return fmt.Errorf("certstore: close %s: %w", s.provider.Name(), err)
	}
	s.logger.Debug("certificate store closed", "provider", s.provider.Name())
	return nil
}

func (s *Session) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// Certificate is a handle to a selected signing certificate. It is owned by
// the session that produced it and is invalid once that session closes.
type Certificate struct {
	x509     *x509.Certificate
	identity Identity
	session  *Session
}

// X509 returns the parsed certificate.
func (c *Certificate) X509() *x509.Certificate {
	return c.x509
}

// Subject returns the certificate subject distinguished name.
func (c *Certificate) Subject() string {
	return c.x509.Subject.String()
}

// Thumbprint returns the SHA-1 thumbprint of the certificate.
func (c *Certificate) Thumbprint() string {
	return Thumbprint(c.x509)
}

// Valid reports whether the handle can still be used.
func (c *Certificate) Valid() bool {
	return c != nil && c.session != nil && c.session.isOpen()
}

// CheckValidity checks the certificate validity period at now.
func (c *Certificate) CheckValidity(now time.Time) error {
	if now.Before(c.x509.NotBefore) {
		return fmt.Errorf("%w: valid from %s", ErrCertNotYetValid, c.x509.NotBefore.Format(time.RFC3339))
	}
	if now.After(c.x509.NotAfter) {
		return fmt.Errorf("%w: expired at %s", ErrCertExpired, c.x509.NotAfter.Format(time.RFC3339))
	}
	return nil
}

// Signer returns the private key of the certificate as a crypto.Signer.
func (c *Certificate) Signer() (crypto.Signer, error) {
	if !c.Valid() {
		return nil, ErrHandleClosed
	}
	return c.identity.Signer()
}
