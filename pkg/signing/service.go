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

// Package signing produces and verifies CMS detached or attached signatures
// with a certificate selected from a certstore session.
package signing

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/encoding"
)

// Level names the advanced electronic signature profile of a signature.
type Level string

// LevelCAdESBES is the basic CAdES profile: signed content-type,
// message-digest, signing-time and signing-certificate-v2 attributes.
const LevelCAdESBES Level = "CAdES-BES"

// Service signs payloads with a certificate handle and verifies the result.
// Implementations are stateless and safe for concurrent use.
type Service interface {
	// Sign returns a CMS SignedData over data using the private key of cert.
	// When detached is true the content is not embedded in the signature.
	Sign(ctx context.Context, cert *certstore.Certificate, data []byte, detached bool) (Signature, error)

	// Verify checks sig against original, or against the embedded content
	// when original is empty. It returns ErrInvalidSignature when the
	// signature does not hold.
	Verify(sig Signature, original []byte) error
}

// Signature is a DER-encoded CMS SignedData structure.
type Signature []byte

// Encode returns the base64 wire form of the signature.
func (s Signature) Encode() string {
	return encoding.EncodeBase64(s)
}

// DecodeSignature parses the base64 wire form of a signature.
func DecodeSignature(s string) (Signature, error) {
	der, err := encoding.DecodeBase64(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return Signature(der), nil
}

// Detached reports whether the signature carries no embedded content.
func (s Signature) Detached() (bool, error) {
	p7, err := parse(s)
	if err != nil {
		return false, err
	}
	return len(p7.Content) == 0, nil
}

// Certificate returns the signer certificate embedded in the signature.
func (s Signature) Certificate() (*x509.Certificate, error) {
	p7, err := parse(s)
	if err != nil {
		return nil, err
	}
	cert := p7.GetOnlySigner()
	if cert == nil {
		return nil, fmt.Errorf("%w: expected exactly one signer", ErrInvalidSignature)
	}
	return cert, nil
}
