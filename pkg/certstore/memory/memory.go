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

// Package memory provides an in-memory implementation of certstore.Provider
// for tests. It is not selectable from configuration. Identities are added
// directly, FailOpen injects open failures, and OpenHandles lets tests assert
// that every store handle was released.
package memory

import (
	"context"
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
)

// ErrClosed is returned when a closed store handle is used.
var ErrClosed = errors.New("memory: store is closed")

// Provider is an in-memory certstore.Provider. Thread-safe.
type Provider struct {
	mu      sync.RWMutex
	stores  map[certstore.Location][]certstore.Identity
	open    int
	openErr error
}

// New creates an empty provider. A location has a store once an identity
// has been added to it or it has been created with AddStore.
func New() *Provider {
	return &Provider{
		stores: make(map[certstore.Location][]certstore.Identity),
	}
}

// Name implements certstore.Provider.
func (p *Provider) Name() string {
	return "memory"
}

// AddStore creates an empty store at location.
func (p *Provider) AddStore(location certstore.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stores[location]; !ok {
		p.stores[location] = nil
	}
}

// Add appends an identity to the store at location.
func (p *Provider) Add(location certstore.Location, id certstore.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stores[location] = append(p.stores[location], id)
}

// FailOpen makes every subsequent Open fail with err. Pass nil to reset.
func (p *Provider) FailOpen(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.openErr = err
}

// OpenHandles returns the number of store handles not yet closed.
func (p *Provider) OpenHandles() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open
}

// Open implements certstore.Provider.
func (p *Provider) Open(ctx context.Context, location certstore.Location) (certstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.openErr != nil {
		return nil, p.openErr
	}
	ids, ok := p.stores[location]
	if !ok {
		return nil, fmt.Errorf("memory: no store at %s", location)
	}
	p.open++
	return &store{
		provider: p,
		ids:      append([]certstore.Identity(nil), ids...),
	}, nil
}

type store struct {
	provider *Provider
	mu       sync.Mutex
	ids      []certstore.Identity
	closed   bool
}

func (s *store) Find(criteria certstore.Criteria) ([]certstore.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	var out []certstore.Identity
	for _, id := range s.ids {
		if criteria.Matches(id.Certificate()) {
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

	s.provider.mu.Lock()
	s.provider.open--
	s.provider.mu.Unlock()
	return nil
}

// Identity is a certificate paired with an optional in-memory signer.
type Identity struct {
	cert   *x509.Certificate
	signer crypto.Signer
}

// NewIdentity pairs cert with signer. A nil signer yields an identity
// without a private key.
func NewIdentity(cert *x509.Certificate, signer crypto.Signer) *Identity {
	return &Identity{cert: cert, signer: signer}
}

// Certificate implements certstore.Identity.
func (i *Identity) Certificate() *x509.Certificate {
	return i.cert
}

// Signer implements certstore.Identity.
func (i *Identity) Signer() (crypto.Signer, error) {
	if i.signer == nil {
		return nil, certstore.ErrNoPrivateKey
	}
	return i.signer, nil
}
