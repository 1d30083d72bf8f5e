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

// Package platform provides a certstore.Provider over the operating system
// certificate store: the Windows "MY" store or the macOS keychain.
// On other platforms opening the store fails with ErrUnsupported.
package platform

import (
	"errors"
	"fmt"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

var (
	// ErrUnsupported is returned when the platform has no native store.
	ErrUnsupported = errors.New("platform: native certificate store not supported on this platform")

	// ErrLocationUnsupported is returned for locations the native store
	// cannot open.
	ErrLocationUnsupported = errors.New("platform: store location not supported")

	// ErrClosed is returned when a closed store handle is used.
	ErrClosed = errors.New("platform: store is closed")
)

// Provider opens the native certificate store.
type Provider struct{}

// New creates a native store provider.
func New() *Provider {
	return &Provider{}
}

// Name implements certstore.Provider.
func (p *Provider) Name() string {
	return "platform"
}

// checkLocation reports whether the native store can open location. Only
// the user's personal store is reachable without elevated privileges.
func checkLocation(location certstore.Location) error {
	if location != certstore.CurrentUser {
		return fmt.Errorf("%w: %s", ErrLocationUnsupported, location)
	}
	return nil
}
