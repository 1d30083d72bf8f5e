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

package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrHTTP matches errors for non-2xx responses.
	ErrHTTP = errors.New("transport: server returned an error status")

	// ErrUnavailable matches errors for unreachable endpoints and closed
	// sessions.
	ErrUnavailable = errors.New("transport: service unavailable")

	// ErrBadResponse matches errors for 2xx responses whose body is not the
	// expected JSON document.
	ErrBadResponse = errors.New("transport: malformed response")

	// ErrTimeout matches errors for requests that exceeded their deadline.
	ErrTimeout = errors.New("transport: request timed out")

	// ErrInvalidConfig is returned by New for unusable configuration.
	ErrInvalidConfig = errors.New("transport: invalid configuration")

	// ErrSessionClosed is wrapped by errors for requests on a closed session.
	ErrSessionClosed = errors.New("transport: session is closed")
)

// Kind classifies a transport failure.
type Kind int

const (
	// KindHTTP is a non-2xx response.
	KindHTTP Kind = iota + 1
	// KindUnavailable is a connection failure.
	KindUnavailable
	// KindBadResponse is an unparseable or incomplete 2xx body.
	KindBadResponse
	// KindTimeout is an expired request deadline.
	KindTimeout
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindUnavailable:
		return "unavailable"
	case KindBadResponse:
		return "bad_response"
	case KindTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindHTTP:
		return ErrHTTP
	case KindUnavailable:
		return ErrUnavailable
	case KindBadResponse:
		return ErrBadResponse
	case KindTimeout:
		return ErrTimeout
	}
	return nil
}

// Error describes a failed request.
type Error struct {
	// Kind classifies the failure.
	Kind Kind

	// Op is the protocol step, "fetch challenge" or "exchange token".
	Op string

	// Status is the HTTP status code for KindHTTP, zero otherwise.
	Status int

	// Message is the server-supplied error message for KindHTTP.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements error.
func (e *Error) Error() string {
	switch {
	case e.Kind == KindHTTP:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// Retryable reports whether repeating the request may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindUnavailable || e.Kind == KindTimeout
}

// IsRetryable reports whether err is a transport error worth retrying.
func IsRetryable(err error) bool {
	var te *Error
	return errors.As(err, &te) && te.Retryable()
}
