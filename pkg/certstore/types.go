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

// Package certstore provides scoped access to a certificate store holding
// the signing certificate used for challenge authentication.
//
// A Session opens a store through a Provider, selects one certificate by
// thumbprint (or the first available one) and releases the store handle
// exactly once when closed. Certificate handles obtained from a session are
// only usable while that session is open.
package certstore

import (
	"context"
	"crypto"
	"crypto/x509"
	"strings"
	"time"
)

// Provider opens a platform certificate store. Implementations exist for
// PEM directories, PKCS#11 tokens and the operating system store.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Open acquires a handle to the store at location. The returned Store
	// must be closed by the caller.
	Open(ctx context.Context, location Location) (Store, error)
}

// Store is an open handle to a certificate store.
type Store interface {
	// Find returns the identities matching criteria, in store order.
	// An empty result is not an error.
	Find(criteria Criteria) ([]Identity, error)

	// Close releases the store handle.
	Close() error
}

// Identity is a certificate together with access to its private key.
type Identity interface {
	// Certificate returns the X.509 certificate.
	Certificate() *x509.Certificate

	// Signer returns a crypto.Signer backed by the certificate's private key.
	// Returns ErrNoPrivateKey if the store holds no key for the certificate.
	Signer() (crypto.Signer, error)
}

// Criteria selects certificates within a store.
type Criteria struct {
	// Thumbprint restricts the match to one certificate. Empty, or only
	// separators, matches all.
	Thumbprint string
}

// Matches reports whether cert satisfies the criteria.
func (c Criteria) Matches(cert *x509.Certificate) bool {
	if NormalizeThumbprint(c.Thumbprint) == "" {
		return true
	}
	return MatchThumbprint(cert, c.Thumbprint)
}

// CertificateInfo summarizes a certificate for listings.
type CertificateInfo struct {
	// Subject is the certificate subject distinguished name.
	Subject string

	// Issuer is the issuer distinguished name.
	Issuer string

	// SerialNumber is the hex serial number.
	SerialNumber string

	// Thumbprint is the SHA-1 thumbprint.
	Thumbprint string

	// NotBefore is the certificate validity start time.
	NotBefore time.Time

	// NotAfter is the certificate validity end time.
	NotAfter time.Time

	// HasPrivateKey reports whether the store holds the private key.
	HasPrivateKey bool
}

// NewCertificateInfo builds the listing summary for an identity.
func NewCertificateInfo(id Identity) CertificateInfo {
	cert := id.Certificate()
	_, err := id.Signer()
	return CertificateInfo{
		Subject:       cert.Subject.String(),
		Issuer:        cert.Issuer.String(),
		SerialNumber:  strings.ToUpper(cert.SerialNumber.Text(16)),
		Thumbprint:    Thumbprint(cert),
		NotBefore:     cert.NotBefore,
		NotAfter:      cert.NotAfter,
		HasPrivateKey: err == nil,
	}
}
