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

package auth

import (
	"fmt"
	"strings"
)

// State is the position of a handshake in the protocol.
type State int

const (
	StateInit State = iota
	StateChallengeFetched
	StateSigned
	StateTokenExchanged
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateChallengeFetched:
		return "challenge_fetched"
	case StateSigned:
		return "signed"
	case StateTokenExchanged:
		return "token_exchanged"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// VerifyPolicy controls the self-check of a fresh signature before it is
// sent.
type VerifyPolicy string

const (
	// VerifySkip sends the signature unchecked.
	VerifySkip VerifyPolicy = "skip"
	// VerifyWarn logs a failed check and sends the signature anyway.
	VerifyWarn VerifyPolicy = "warn"
	// VerifyEnforce fails the handshake when the check fails.
	VerifyEnforce VerifyPolicy = "enforce"
)

// ParseVerifyPolicy parses a policy name. Empty selects VerifyWarn.
func ParseVerifyPolicy(s string) (VerifyPolicy, error) {
	switch p := VerifyPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return VerifyWarn, nil
	case VerifySkip, VerifyWarn, VerifyEnforce:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown verify policy %q", ErrInvalidConfig, s)
	}
}

// PayloadEncoding selects the bytes signed for a challenge.
type PayloadEncoding string

const (
	// PayloadRaw signs the challenge data as received.
	PayloadRaw PayloadEncoding = "raw"
	// PayloadBase64 signs the base64 encoding of the challenge data.
	PayloadBase64 PayloadEncoding = "base64"
)

// ParsePayloadEncoding parses an encoding name. Empty selects PayloadRaw.
func ParsePayloadEncoding(s string) (PayloadEncoding, error) {
	switch e := PayloadEncoding(strings.ToLower(strings.TrimSpace(s))); e {
	case "":
		return PayloadRaw, nil
	case PayloadRaw, PayloadBase64:
		return e, nil
	default:
		return "", fmt.Errorf("%w: unknown payload encoding %q", ErrInvalidConfig, s)
	}
}
