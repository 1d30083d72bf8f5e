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
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

var (
	// ErrChallengeFailed matches failures to obtain a challenge.
	ErrChallengeFailed = errors.New("auth: challenge retrieval failed")

	// ErrSigningFailed matches failures to open the store, select the
	// certificate, sign the challenge or, under the enforce policy, verify
	// the signature.
	ErrSigningFailed = errors.New("auth: signing failed")

	// ErrTokenExchangeFailed matches failures to obtain a token.
	ErrTokenExchangeFailed = errors.New("auth: token exchange failed")

	// ErrNoToken is the cause when the service returned no token.
	ErrNoToken = errors.New("auth: no token issued")

	// ErrVerificationFailed is the cause when a fresh signature does not
	// verify under the enforce policy.
	ErrVerificationFailed = errors.New("auth: signature verification failed")

	// ErrInvalidConfig is returned by New for incomplete configuration.
	ErrInvalidConfig = errors.New("auth: invalid configuration")
)

// Stage identifies the protocol step that failed.
type Stage string

const (
	StageChallenge     Stage = "challenge"
	StageSigning       Stage = "signing"
	StageTokenExchange Stage = "token_exchange"
)

func (s Stage) sentinel() error {
	switch s {
	case StageChallenge:
		return ErrChallengeFailed
	case StageSigning:
		return ErrSigningFailed
	case StageTokenExchange:
		return ErrTokenExchangeFailed
	}
	return nil
}

// Error is a handshake failure. errors.Is matches both the stage sentinel
// and the underlying cause.
type Error struct {
	Stage Stage
	Err   error
}

// Error implements error.
func (e *Error) Error() string {
	return fmt.Sprintf("%v: %v", e.Stage.sentinel(), e.Err)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the stage sentinel.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Stage.sentinel()
}

// IsRetryable reports whether a new handshake attempt may succeed: the
// failure was a connection failure or a timeout talking to the service.
func IsRetryable(err error) bool {
	var ae *Error
	if !errors.As(err, &ae) || ae.Stage == StageSigning {
		return false
	}
	return transport.IsRetryable(ae.Err)
}
