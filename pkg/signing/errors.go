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

package signing

import "errors"

var (
	// ErrNoCertificate indicates the certificate handle is missing, closed,
	// or outside its validity period.
	ErrNoCertificate = errors.New("signing: no usable signing certificate")

	// ErrEngineFailure indicates the signing engine could not produce a
	// signature: the private key is inaccessible, the payload is empty or
	// the CMS structure could not be built.
	ErrEngineFailure = errors.New("signing: engine failure")

	// ErrInvalidSignature indicates a signature that does not verify against
	// the supplied or embedded content.
	ErrInvalidSignature = errors.New("signing: invalid signature")

	// ErrUnsupportedAlgorithm indicates the certificate key type cannot be
	// used for CAdES signatures.
	ErrUnsupportedAlgorithm = errors.New("signing: unsupported signing algorithm")
)

// IsInvalid reports whether err is a verification failure, as opposed to
// a nil error (valid) or an operational error.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}
