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

package encoding

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"

	"github.com/youmark/pkcs8"
)

// PEM block types understood by DecodePrivateKeyPEM.
const (
	PEMTypePrivateKey          = "PRIVATE KEY"
	PEMTypeEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	PEMTypeECPrivateKey        = "EC PRIVATE KEY"
	PEMTypeRSAPrivateKey       = "RSA PRIVATE KEY"
	PEMTypeCertificate         = "CERTIFICATE"
)

// EncodePKCS8 encodes a private key to ASN.1 DER PKCS#8 format.
// If a password is provided, the key will be encrypted.
func EncodePKCS8(privateKey crypto.PrivateKey, password []byte) ([]byte, error) {
	if privateKey == nil {
		return nil, ErrInvalidPrivateKey
	}
	if len(password) == 0 {
		der, err := x509.MarshalPKCS8PrivateKey(privateKey)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
		}
		return der, nil
	}
	der, err := pkcs8.MarshalPrivateKey(privateKey, password, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal PKCS#8: %w", err)
	}
	return der, nil
}

// DecodePKCS8 decodes ASN.1 DER PKCS#8 data, decrypting it when a password
// is given.
func DecodePKCS8(data []byte, password []byte) (crypto.PrivateKey, error) {
	if len(data) == 0 {
		return nil, ErrInvalidData
	}
	if len(password) == 0 {
		key, err := x509.ParsePKCS8PrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
		}
		return key, nil
	}
	key, err := pkcs8.ParsePKCS8PrivateKey(data, password)
	if err != nil {
		if isPasswordError(err) {
			return nil, ErrInvalidPassword
		}
		return nil, fmt.Errorf("failed to parse PKCS#8: %w", err)
	}
	return key, nil
}

// DecodePrivateKeyBlock decodes a single PEM block holding a private key.
// Supported block types are PKCS#8 (plain and encrypted), SEC1 EC and PKCS#1 RSA.
func DecodePrivateKeyBlock(block *pem.Block, password []byte) (crypto.PrivateKey, error) {
	if block == nil {
		return nil, ErrInvalidPEMEncoding
	}
	switch block.Type {
	case PEMTypeEncryptedPrivateKey:
		if len(password) == 0 {
			return nil, ErrPasswordRequired
		}
		return DecodePKCS8(block.Bytes, password)
	case PEMTypePrivateKey:
		return DecodePKCS8(block.Bytes, nil)
	case PEMTypeECPrivateKey:
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		return key, nil
	case PEMTypeRSAPrivateKey:
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: unexpected block type %q", ErrInvalidPEMEncoding, block.Type)
	}
}

// IsPrivateKeyBlock reports whether the PEM block type carries a private key.
func IsPrivateKeyBlock(blockType string) bool {
	switch blockType {
	case PEMTypePrivateKey, PEMTypeEncryptedPrivateKey, PEMTypeECPrivateKey, PEMTypeRSAPrivateKey:
		return true
	}
	return false
}

// EncodePrivateKeyPEM returns key as a PKCS#8 PEM block, encrypted when a
// password is supplied.
func EncodePrivateKeyPEM(key crypto.PrivateKey, password []byte) ([]byte, error) {
	der, err := EncodePKCS8(key, password)
	if err != nil {
		return nil, err
	}
	blockType := PEMTypePrivateKey
	if len(password) > 0 {
		blockType = PEMTypeEncryptedPrivateKey
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der}), nil
}

// EncodeCertificatePEM returns the certificate as a PEM block.
func EncodeCertificatePEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: PEMTypeCertificate, Bytes: cert.Raw})
}

// isPasswordError checks whether err comes from a wrong password.
// youmark/pkcs8 reports bad passwords as padding or ASN.1 structure errors.
func isPasswordError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"incorrect password",
		"asn1: structure error",
		"tags don't match",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
