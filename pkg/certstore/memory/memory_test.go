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

package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sigauth/internal/testutil"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

func TestProvider_OpenFindClose(t *testing.T) {
	c, err := testutil.GenerateSigningCert(nil, testutil.CertOptions{})
	require.NoError(t, err)

	p := New()
	p.Add(certstore.CurrentUser, NewIdentity(c.Cert, c.Key))
	assert.Equal(t, "memory", p.Name())

	store, err := p.Open(context.Background(), certstore.CurrentUser)
	require.NoError(t, err)
	assert.Equal(t, 1, p.OpenHandles())

	ids, err := store.Find(certstore.Criteria{Thumbprint: certstore.Thumbprint(c.Cert)})
	require.NoError(t, err)
	require.Len(t, ids, 1)

	ids, err = store.Find(certstore.Criteria{Thumbprint: "00"})
	require.NoError(t, err)
	assert.Empty(t, ids)

	require.NoError(t, store.Close())
	assert.Equal(t, 0, p.OpenHandles())
	assert.ErrorIs(t, store.Close(), ErrClosed)

	_, err = store.Find(certstore.Criteria{})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestProvider_OpenErrors(t *testing.T) {
	p := New()

	_, err := p.Open(context.Background(), certstore.LocalMachine)
	assert.Error(t, err)

	p.AddStore(certstore.LocalMachine)
	p.FailOpen(errors.New("locked"))
	_, err = p.Open(context.Background(), certstore.LocalMachine)
	assert.EqualError(t, err, "locked")

	p.FailOpen(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Open(ctx, certstore.LocalMachine)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.OpenHandles())
}
