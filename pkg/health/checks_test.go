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


package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sigauth/internal/testutil"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore/memory"
	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

func signingCert(t *testing.T, opts testutil.CertOptions) *testutil.TestCertificate {
	t.Helper()
	cert, err := testutil.GenerateSigningCert(nil, opts)
	require.NoError(t, err)
	return cert
}

func TestStoreCheck(t *testing.T) {
	valid := signingCert(t, testutil.CertOptions{CommonName: "valid", NotAfter: time.Now().Add(365 * 24 * time.Hour)})
	expiring := signingCert(t, testutil.CertOptions{CommonName: "expiring", NotAfter: time.Now().Add(48 * time.Hour)})
	expired := signingCert(t, testutil.CertOptions{
		CommonName: "expired",
		NotBefore:  time.Now().Add(-48 * time.Hour),
		NotAfter:   time.Now().Add(-time.Hour),
	})

	tests := []struct {
		name       string
		setup      func(p *memory.Provider)
		thumbprint string
		status     Status
		message    string
	}{
		{
			name: "valid certificate",
			setup: func(p *memory.Provider) {
				p.Add(certstore.CurrentUser, memory.NewIdentity(valid.Cert, valid.Key))
			},
			status:  StatusHealthy,
			message: "CN=valid",
		},
		{
			name: "expiring soon",
			setup: func(p *memory.Provider) {
				p.Add(certstore.CurrentUser, memory.NewIdentity(expiring.Cert, expiring.Key))
			},
			status:  StatusDegraded,
			message: "expires in",
		},
		{
			name: "expired",
			setup: func(p *memory.Provider) {
				p.Add(certstore.CurrentUser, memory.NewIdentity(expired.Cert, expired.Key))
			},
			status:  StatusUnhealthy,
			message: "is not valid",
		},
		{
			name: "no private key",
			setup: func(p *memory.Provider) {
				p.Add(certstore.CurrentUser, memory.NewIdentity(valid.Cert, nil))
			},
			status:  StatusUnhealthy,
			message: "private key",
		},
		{
			name: "thumbprint not found",
			setup: func(p *memory.Provider) {
				p.Add(certstore.CurrentUser, memory.NewIdentity(valid.Cert, valid.Key))
			},
			thumbprint: certstore.Thumbprint(expired.Cert),
			status:     StatusUnhealthy,
			message:    "no signing certificate",
		},
		{
			name: "store cannot be opened",
			setup: func(p *memory.Provider) {
				p.FailOpen(errors.New("token not present"))
			},
			status:  StatusUnhealthy,
			message: "cannot be opened",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := memory.New()
			tt.setup(p)

			check := StoreCheck(p, StoreOptions{Location: certstore.CurrentUser, Thumbprint: tt.thumbprint})
			result := check(context.Background())

			assert.Equal(t, "certificate", result.Name)
			assert.Equal(t, tt.status, result.Status, result.Error)
			assert.Contains(t, result.Message, tt.message)
			if tt.status == StatusUnhealthy {
				assert.NotEmpty(t, result.Error)
			}
			assert.Zero(t, p.OpenHandles(), "store must be released")
		})
	}
}

func TestChallengeCheck(t *testing.T) {
	newClient := func(t *testing.T, handler http.HandlerFunc) *transport.Client {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		client, err := transport.New(&transport.Config{
			ChallengeURL: srv.URL + "/auth/key",
			TokenURL:     srv.URL + "/auth/token",
			Timeout:      time.Second,
		})
		require.NoError(t, err)
		return client
	}

	t.Run("Reachable", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"uuid":"u1","data":"d1"}`))
		})
		result := ChallengeCheck(client)(context.Background())
		assert.Equal(t, StatusHealthy, result.Status)
		assert.Equal(t, "challenge_endpoint", result.Name)
	})

	t.Run("ServerError", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"message":"maintenance"}`, http.StatusServiceUnavailable)
		})
		result := ChallengeCheck(client)(context.Background())
		assert.Equal(t, StatusUnhealthy, result.Status)
		assert.Contains(t, result.Error, "maintenance")
	})

	t.Run("MalformedChallenge", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":"d1"}`))
		})
		result := ChallengeCheck(client)(context.Background())
		assert.Equal(t, StatusUnhealthy, result.Status)
	})
}
