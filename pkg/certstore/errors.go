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

import "errors"

// Store errors
var (
	// ErrStoreUnavailable is returned when the platform store cannot be
	// opened (missing store, insufficient permissions, absent token).
	ErrStoreUnavailable = errors.New("certstore: store unavailable")

	// ErrProviderRequired is returned when a session is created without a provider.
	ErrProviderRequired = errors.New("certstore: provider is required")

	// ErrSessionOpen is returned when Open is called on an open session.
	ErrSessionOpen = errors.New("certstore: session already open")

	// ErrSessionClosed is returned when Open is called on a closed session.
	ErrSessionClosed = errors.New("certstore: session closed")

	// ErrInvalidLocation is returned for an unknown store location.
	ErrInvalidLocation = errors.New("certstore: invalid store location")
)

// Selection errors
var (
	// ErrNoSession is returned when a certificate is selected before the
	// store has been opened.
	ErrNoSession = errors.New("certstore: store not open")

	// ErrNotFound is returned when no certificate matches the selection.
	ErrNotFound = errors.New("certstore: certificate not found")
)

// Certificate handle errors
var (
	// ErrHandleClosed is returned when a certificate handle is used after
	// its session has been closed.
	ErrHandleClosed = errors.New("certstore: certificate handle closed")

	// ErrNoPrivateKey is returned when the selected certificate has no
	// associated private key.
	ErrNoPrivateKey = errors.New("certstore: certificate has no private key")

	// ErrCertExpired is returned when a certificate has expired.
	ErrCertExpired = errors.New("certstore: certificate expired")

	// ErrCertNotYetValid is returned when a certificate is not yet valid.
	ErrCertNotYetValid = errors.New("certstore: certificate not yet valid")
)
