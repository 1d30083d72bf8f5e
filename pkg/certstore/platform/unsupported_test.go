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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

func TestProvider_Unsupported(t *testing.T) {
	p := New()
	assert.Equal(t, "platform", p.Name())

	_, err := p.Open(context.Background(), certstore.CurrentUser)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = p.Open(context.Background(), certstore.LocalMachine)
	assert.ErrorIs(t, err, ErrLocationUnsupported)

	_, err = certstore.Open(context.Background(), p, certstore.CurrentUser, nil)
	assert.ErrorIs(t, err, certstore.ErrStoreUnavailable)
	assert.ErrorIs(t, err, ErrUnsupported)
}
