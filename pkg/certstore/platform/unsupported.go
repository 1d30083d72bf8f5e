//go:build !windows && !(darwin && cgo)

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

package platform

import (
	"context"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

// Open implements certstore.Provider. It always fails on this platform.
func (p *Provider) Open(ctx context.Context, location certstore.Location) (certstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkLocation(location); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}
