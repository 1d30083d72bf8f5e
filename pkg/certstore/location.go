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
	"fmt"
	"strings"
)

// Location identifies which platform certificate store to open.
type Location string

const (
	// CurrentUser is the personal store of the calling user.
	CurrentUser Location = "current_user"

	// LocalMachine is the machine-wide store.
	LocalMachine Location = "local_machine"
)

// String returns the string representation of the location
func (l Location) String() string {
	return string(l)
}

// IsValid reports whether l is a known location.
func (l Location) IsValid() bool {
	switch l {
	case CurrentUser, LocalMachine:
		return true
	}
	return false
}

// ParseLocation parses a location name. Aliases used by platform tooling
// ("user", "machine", "CurrentUser", "LocalMachine") are accepted.
func ParseLocation(s string) (Location, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "current_user", "currentuser", "user":
		return CurrentUser, nil
	case "local_machine", "localmachine", "machine":
		return LocalMachine, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
}
