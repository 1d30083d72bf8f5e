//go:build windows || (darwin && cgo)

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
	"crypto"
	"crypto/x509"
	"sync"

	"github.com/github/smimesign/certstore"

	sigstore "github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

// Open implements certstore.Provider.
func (p *Provider) Open(ctx context.Context, location sigstore.Location) (sigstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkLocation(location); err != nil {
		return nil, err
	}

	st, err := certstore.Open()
	if err != nil {
		return nil, err
	}
	natives, err := st.Identities()
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &store{native: st}
	for _, n := range natives {
		cert, err := n.Certificate()
		if err != nil || cert == nil {
			n.Close()
			continue
		}
		s.ids = append(s.ids, &identity{native: n, cert: cert})
	}
	return s, nil
}

type store struct {
	mu     sync.Mutex
	native certstore.Store
	ids    []*identity
	closed bool
}

func (s *store) Find(criteria sigstore.Criteria) ([]sigstore.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []sigstore.Identity
	for _, id := range s.ids {
		if criteria.Matches(id.cert) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.closed = true
	for _, id := range s.ids {
		id.native.Close()
	}
	s.ids = nil
	s.native.Close()
	return nil
}

type identity struct {
	native certstore.Identity
	cert   *x509.Certificate
}

func (i *identity) Certificate() *x509.Certificate {
	return i.cert
}

func (i *identity) Signer() (crypto.Signer, error) {
	signer, err := i.native.Signer()
	if err != nil {
		return nil, err
	}
	if signer == nil {
		return nil, sigstore.ErrNoPrivateKey
	}
	return signer, nil
}
