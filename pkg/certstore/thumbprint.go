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
	"crypto/sha1" // #nosec G505 - thumbprints are SHA-1 by platform convention
	"crypto/x509"
	"encoding/hex"
	"strings"
)

// Thumbprint returns the platform thumbprint of cert: the upper-case hex
// SHA-1 digest of its DER encoding.
func Thumbprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	sum := sha1.Sum(cert.Raw) // #nosec G401
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// NormalizeThumbprint strips separators and the invisible marks that
// certificate viewers insert when a thumbprint is copied, and upper-cases
// the result.
func NormalizeThumbprint(s string) string {
	return strings.ToUpper(strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '-', '\t', '\u200e', '\u200f', '\ufeff':
			return -1
		}
		return r
	}, s))
}

// MatchThumbprint reports whether cert has the given thumbprint, ignoring
// case and separators.
func MatchThumbprint(cert *x509.Certificate, thumbprint string) bool {
	want := NormalizeThumbprint(thumbprint)
	return want != "" && Thumbprint(cert) == want
}
