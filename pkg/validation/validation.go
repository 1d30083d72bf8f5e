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


// Package validation provides input validation shared by the configuration
// loader, the certificate stores and the transport.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

// thumbprintPattern matches a normalized SHA-1 thumbprint
var thumbprintPattern = regexp.MustCompile(`^[0-9A-F]{40}$`)

// ValidateThumbprint validates a certificate thumbprint in any of the forms
// certificate viewers display it: upper or lower case, grouped with spaces,
// colons or dashes, or prefixed with invisible direction marks.
// An empty thumbprint is valid and selects the first certificate.
func ValidateThumbprint(thumbprint string) error {
	normalized := certstore.NormalizeThumbprint(thumbprint)
	if normalized == "" {
		return nil
	}
	if len(normalized) != 40 {
		return fmt.Errorf("thumbprint must be 40 hex characters, got %d", len(normalized))
	}
	if !thumbprintPattern.MatchString(normalized) {
		return fmt.Errorf("thumbprint contains invalid characters (allowed: 0-9, A-F)")
	}
	return nil
}

// SanitizeForLog sanitizes a string for safe logging (prevents log injection).
func SanitizeForLog(s string) string {
	// Remove control characters and null bytes
	s = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)

	// Limit length to prevent log flooding
	if len(s) > 1000 {
		s = s[:1000] + "...[truncated]"
	}

	return s
}
