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

package certstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sigauth/internal/testutil"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore/memory"
)

func newProvider(t *testing.T, certs ...*testutil.TestCertificate) *memory.Provider {
	t.Helper()
	p := memory.New()
	p.AddStore(certstore.CurrentUser)
	for _, c := range certs {
		p.Add(certstore.CurrentUser, memory.NewIdentity(c.Cert, c.Key))
	}
	return p
}

func newCert(t *testing.T, cn string) *testutil.TestCertificate {
	t.Helper()
	c, err := testutil.GenerateSigningCert(nil, testutil.CertOptions{CommonName: cn})
	require.NoError(t, err)
	return c
}

func TestSession_SelectBeforeOpen(t *testing.T) {
	s := certstore.NewSession(newProvider(t), nil)

	cert, err := s.Select("")
	assert.ErrorIs(t, err, certstore.ErrNoSession)
	assert.Nil(t, cert)
	assert.Nil(t, s.Certificate())

	_, err = s.Certificates()
	assert.ErrorIs(t, err, certstore.ErrNoSession)
}

func TestSession_SelectFirstAvailable(t *testing.T) {
	first, second := newCert(t, "first"), newCert(t, "second")
	p := newProvider(t, first, second)

	s, err := certstore.Open(context.Background(), p, certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	cert, err := s.Select("")
	require.NoError(t, err)
	assert.Equal(t, first.Cert.Raw, cert.X509().Raw)
	assert.Equal(t, cert, s.Certificate())
	assert.Contains(t, cert.Subject(), "CN=first")
}

func TestSession_SelectSeparatorOnlyThumbprint(t *testing.T) {
	first, second := newCert(t, "first"), newCert(t, "second")
	s, err := certstore.Open(context.Background(), newProvider(t, first, second), certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	for _, tp := range []string{"   ", "\u200e", " : - \t\ufeff"} {
		cert, err := s.Select(tp)
		require.NoError(t, err, "thumbprint %q", tp)
		assert.Equal(t, first.Cert.Raw, cert.X509().Raw, "thumbprint %q", tp)
		assert.True(t, certstore.Criteria{Thumbprint: tp}.Matches(second.Cert), "thumbprint %q", tp)
	}
}

func TestSession_SelectByThumbprint(t *testing.T) {
	first, second := newCert(t, "first"), newCert(t, "second")
	s, err := certstore.Open(context.Background(), newProvider(t, first, second), certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	tp := certstore.Thumbprint(second.Cert)
	tests := []struct {
		name       string
		thumbprint string
	}{
		{"Exact", tp},
		{"LowerCase", toLower(tp)},
		{"Spaced", spaced(tp)},
		{"LeftToRightMark", "\u200e" + tp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert, err := s.Select(tt.thumbprint)
			require.NoError(t, err)
			assert.Equal(t, second.Cert.Raw, cert.X509().Raw)
			assert.Equal(t, tp, cert.Thumbprint())
		})
	}
}

func TestSession_SelectNotFound(t *testing.T) {
	c := newCert(t, "only")
	s, err := certstore.Open(context.Background(), newProvider(t, c), certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Select("")
	require.NoError(t, err)
	require.NotNil(t, s.Certificate())

	cert, err := s.Select("ABCDEF0123456789ABCDEF0123456789ABCDEF01")
	assert.ErrorIs(t, err, certstore.ErrNotFound)
	assert.Nil(t, cert)
	assert.Nil(t, s.Certificate(), "failed select must leave no certificate selected")
}

func TestSession_SelectEmptyStore(t *testing.T) {
	s, err := certstore.Open(context.Background(), newProvider(t), certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Select("")
	assert.ErrorIs(t, err, certstore.ErrNotFound)
}

func TestSession_OpenFailure(t *testing.T) {
	p := newProvider(t)
	p.FailOpen(errors.New("access denied"))

	s := certstore.NewSession(p, nil)
	err := s.Open(context.Background(), certstore.CurrentUser)
	assert.ErrorIs(t, err, certstore.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "access denied")
	assert.False(t, s.IsOpen())

	assert.NoError(t, s.Close(), "close after failed open")
	assert.NoError(t, s.Close(), "second close")

	_, err = certstore.Open(context.Background(), p, certstore.CurrentUser, nil)
	assert.ErrorIs(t, err, certstore.ErrStoreUnavailable)
	assert.Equal(t, 0, p.OpenHandles())
}

func TestSession_OpenMissingLocation(t *testing.T) {
	_, err := certstore.Open(context.Background(), newProvider(t), certstore.LocalMachine, nil)
	assert.ErrorIs(t, err, certstore.ErrStoreUnavailable)
}

func TestSession_OpenValidation(t *testing.T) {
	s := certstore.NewSession(nil, nil)
	assert.ErrorIs(t, s.Open(context.Background(), certstore.CurrentUser), certstore.ErrProviderRequired)

	s = certstore.NewSession(newProvider(t), nil)
	assert.ErrorIs(t, s.Open(context.Background(), certstore.Location("roaming")), certstore.ErrInvalidLocation)

	require.NoError(t, s.Open(context.Background(), certstore.CurrentUser))
	assert.ErrorIs(t, s.Open(context.Background(), certstore.CurrentUser), certstore.ErrSessionOpen)
	assert.Equal(t, certstore.CurrentUser, s.Location())

	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Open(context.Background(), certstore.CurrentUser), certstore.ErrSessionClosed)
}

func TestSession_CloseIdempotent(t *testing.T) {
	p := newProvider(t, newCert(t, "c"))
	s, err := certstore.Open(context.Background(), p, certstore.CurrentUser, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, p.OpenHandles())

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.Equal(t, 0, p.OpenHandles())

	// Closing a session that was never opened is also safe.
	assert.NoError(t, certstore.NewSession(p, nil).Close())
}

func TestCertificate_InvalidAfterClose(t *testing.T) {
	s, err := certstore.Open(context.Background(), newProvider(t, newCert(t, "c")), certstore.CurrentUser, nil)
	require.NoError(t, err)

	cert, err := s.Select("")
	require.NoError(t, err)
	assert.True(t, cert.Valid())

	signer, err := cert.Signer()
	require.NoError(t, err)
	assert.NotNil(t, signer)

	require.NoError(t, s.Close())
	assert.False(t, cert.Valid())
	_, err = cert.Signer()
	assert.ErrorIs(t, err, certstore.ErrHandleClosed)
	assert.Nil(t, s.Certificate())
}

func TestCertificate_NoPrivateKey(t *testing.T) {
	c := newCert(t, "nokey")
	p := memory.New()
	p.Add(certstore.CurrentUser, memory.NewIdentity(c.Cert, nil))

	s, err := certstore.Open(context.Background(), p, certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	cert, err := s.Select("")
	require.NoError(t, err)
	_, err = cert.Signer()
	assert.ErrorIs(t, err, certstore.ErrNoPrivateKey)

	infos, err := s.Certificates()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.False(t, infos[0].HasPrivateKey)
}

func TestCertificate_CheckValidity(t *testing.T) {
	expired, err := testutil.GenerateSigningCert(nil, testutil.CertOptions{
		CommonName: "expired",
		NotBefore:  time.Now().Add(-48 * time.Hour),
		NotAfter:   time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	s, err := certstore.Open(context.Background(), newProvider(t, expired), certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	cert, err := s.Select("")
	require.NoError(t, err)

	assert.ErrorIs(t, cert.CheckValidity(time.Now()), certstore.ErrCertExpired)
	assert.ErrorIs(t, cert.CheckValidity(time.Now().Add(-72*time.Hour)), certstore.ErrCertNotYetValid)
	assert.NoError(t, cert.CheckValidity(time.Now().Add(-36*time.Hour)))
}

func TestSession_Certificates(t *testing.T) {
	a, b := newCert(t, "a"), newCert(t, "b")
	s, err := certstore.Open(context.Background(), newProvider(t, a, b), certstore.CurrentUser, nil)
	require.NoError(t, err)
	defer s.Close()

	infos, err := s.Certificates()
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, certstore.Thumbprint(a.Cert), infos[0].Thumbprint)
	assert.Contains(t, infos[1].Subject, "CN=b")
	assert.True(t, infos[1].HasPrivateKey)
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func spaced(s string) string {
	var out []byte
	for i := 0; i < len(s); i += 2 {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, s[i:i+2]...)
	}
	return string(out)
}
