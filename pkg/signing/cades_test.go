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

package signing

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-sigauth/internal/testutil"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore/memory"
)

// selectCert opens a memory store holding id and returns the selected handle.
func selectCert(t *testing.T, id *memory.Identity) (*certstore.Session, *certstore.Certificate) {
	t.Helper()
	p := memory.New()
	p.Add(certstore.CurrentUser, id)

	sess, err := certstore.Open(context.Background(), p, certstore.CurrentUser, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	cert, err := sess.Select("")
	require.NoError(t, err)
	return sess, cert
}

func newHandle(t *testing.T, opts testutil.CertOptions) (*testutil.TestCertificate, *certstore.Certificate) {
	t.Helper()
	ca, err := testutil.GenerateTestCA()
	require.NoError(t, err)
	c, err := testutil.GenerateSigningCert(ca, opts)
	require.NoError(t, err)
	_, handle := selectCert(t, memory.NewIdentity(c.Cert, c.Key))
	return c, handle
}

func TestCAdES_SignVerifyRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		rsa      bool
		detached bool
	}{
		{"ECDSA_Detached", false, true},
		{"ECDSA_Attached", false, false},
		{"RSA_Detached", true, true},
		{"RSA_Attached", true, false},
	}

	svc := NewCAdES(nil)
	payload := []byte("d1")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, cert := newHandle(t, testutil.CertOptions{RSA: tt.rsa})

			sig, err := svc.Sign(context.Background(), cert, payload, tt.detached)
			require.NoError(t, err)
			require.NotEmpty(t, sig)

			assert.NoError(t, svc.Verify(sig, payload))

			detached, err := sig.Detached()
			require.NoError(t, err)
			assert.Equal(t, tt.detached, detached)

			signer, err := sig.Certificate()
			require.NoError(t, err)
			assert.Equal(t, c.Cert.Raw, signer.Raw)

			if tt.detached {
				err = svc.Verify(sig, nil)
				assert.True(t, IsInvalid(err), "detached signature needs original content")
			} else {
				assert.NoError(t, svc.Verify(sig, nil), "attached signature verifies against embedded content")
			}
		})
	}
}

func TestCAdES_VerifyWrongData(t *testing.T) {
	svc := NewCAdES(nil)
	_, cert := newHandle(t, testutil.CertOptions{})

	for _, detached := range []bool{true, false} {
		sig, err := svc.Sign(context.Background(), cert, []byte("challenge-1"), detached)
		require.NoError(t, err)

		err = svc.Verify(sig, []byte("challenge-2"))
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.True(t, IsInvalid(err))
	}
}

func TestCAdES_VerifyGarbage(t *testing.T) {
	svc := NewCAdES(nil)

	tests := []struct {
		name string
		sig  Signature
	}{
		{"Empty", nil},
		{"Garbage", Signature("not a signature")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, IsInvalid(svc.Verify(tt.sig, []byte("data"))))
		})
	}
}

func TestCAdES_SignErrors(t *testing.T) {
	svc := NewCAdES(nil)
	ctx := context.Background()

	t.Run("EmptyPayload", func(t *testing.T) {
		_, cert := newHandle(t, testutil.CertOptions{})
		_, err := svc.Sign(ctx, cert, []byte{}, true)
		assert.ErrorIs(t, err, ErrEngineFailure)
	})

	t.Run("NilCertificate", func(t *testing.T) {
		_, err := svc.Sign(ctx, nil, []byte("data"), true)
		assert.ErrorIs(t, err, ErrNoCertificate)
	})

	t.Run("ClosedHandle", func(t *testing.T) {
		c, err := testutil.GenerateSigningCert(nil, testutil.CertOptions{})
		require.NoError(t, err)
		sess, cert := selectCert(t, memory.NewIdentity(c.Cert, c.Key))
		require.NoError(t, sess.Close())

		_, err = svc.Sign(ctx, cert, []byte("data"), true)
		assert.ErrorIs(t, err, ErrNoCertificate)
	})

	t.Run("Expired", func(t *testing.T) {
		_, cert := newHandle(t, testutil.CertOptions{})
		future := NewCAdES(&Options{Now: func() time.Time { return time.Now().Add(72 * time.Hour) }})

		_, err := future.Sign(ctx, cert, []byte("data"), true)
		assert.ErrorIs(t, err, ErrNoCertificate)
		assert.ErrorIs(t, err, certstore.ErrCertExpired)
	})

	t.Run("NoPrivateKey", func(t *testing.T) {
		c, err := testutil.GenerateSigningCert(nil, testutil.CertOptions{})
		require.NoError(t, err)
		_, cert := selectCert(t, memory.NewIdentity(c.Cert, nil))

		_, err = svc.Sign(ctx, cert, []byte("data"), true)
		assert.ErrorIs(t, err, ErrEngineFailure)
		assert.ErrorIs(t, err, certstore.ErrNoPrivateKey)
	})

	t.Run("UnsupportedKey", func(t *testing.T) {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		require.NoError(t, err)
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(7),
			Subject:      pkix.Name{CommonName: "ed25519"},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(time.Hour),
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
		require.NoError(t, err)
		x, err := x509.ParseCertificate(der)
		require.NoError(t, err)
		_, cert := selectCert(t, memory.NewIdentity(x, priv))

		_, err = svc.Sign(ctx, cert, []byte("data"), true)
		assert.ErrorIs(t, err, ErrEngineFailure)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		_, cert := newHandle(t, testutil.CertOptions{})
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := svc.Sign(cctx, cert, []byte("data"), true)
		assert.ErrorIs(t, err, ErrEngineFailure)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCAdES_SignaturesAreFresh(t *testing.T) {
	svc := NewCAdES(nil)
	_, cert := newHandle(t, testutil.CertOptions{})

	a, err := svc.Sign(context.Background(), cert, []byte("u1"), true)
	require.NoError(t, err)
	b, err := svc.Sign(context.Background(), cert, []byte("u2"), true)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, IsInvalid(svc.Verify(a, []byte("u2"))))
}

func TestSignature_EncodeDecode(t *testing.T) {
	svc := NewCAdES(nil)
	_, cert := newHandle(t, testutil.CertOptions{})

	sig, err := svc.Sign(context.Background(), cert, []byte("d1"), true)
	require.NoError(t, err)

	wire := sig.Encode()
	decoded, err := DecodeSignature(wire)
	require.NoError(t, err)
	assert.Equal(t, sig, decoded)
	assert.Equal(t, wire, decoded.Encode())

	_, err = DecodeSignature("%%%")
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestCAdES_Level(t *testing.T) {
	assert.Equal(t, LevelCAdESBES, NewCAdES(nil).Level())
	var _ Service = NewCAdES(nil)
}
