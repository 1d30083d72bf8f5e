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

// Package file provides a certstore.Provider backed by a directory of PEM
// files. Each location is a subdirectory of the root:
//
//	<root>/current_user/*.pem
//	<root>/local_machine/*.pem
//
// A file holds one certificate, optionally followed by its private key in
// PKCS#8, SEC 1 or PKCS#1 form. Encrypted PKCS#8 keys are decrypted with the
// store password when the key is first used.
package file

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/encoding"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
)

var (
	// ErrRootRequired is returned when no root directory is configured.
	ErrRootRequired = errors.New("file: root directory cannot be empty")

	// ErrKeyMismatch is returned when a private key does not belong to the
	// certificate stored beside it.
	ErrKeyMismatch = errors.New("file: private key does not match certificate")

	// ErrClosed is returned when a closed store handle is used.
	ErrClosed = errors.New("file: store is closed")
)

// extensions lists the file suffixes read from a store directory.
var extensions = map[string]bool{
	".pem": true,
	".crt": true,
	".cer": true,
}

// Options configures the provider.
type Options struct {
	// Password decrypts encrypted PKCS#8 keys.
	Password []byte

	// Logger receives warnings about unreadable entries.
	Logger *logging.Logger
}

// Provider opens PEM directory stores. Thread-safe.
type Provider struct {
	root     string
	password []byte
	logger   *logging.Logger
}

// New creates a provider rooted at dir. The directory is not accessed until
// a store is opened.
func New(dir string, opts *Options) (*Provider, error) {
	if dir == "" {
		return nil, ErrRootRequired
	}
	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Provider{
		root:     filepath.Clean(dir),
		password: opts.Password,
		logger:   logger,
	}, nil
}

// Name implements certstore.Provider.
func (p *Provider) Name() string {
	return "file"
}

// Root returns the store root directory.
func (p *Provider) Root() string {
	return p.root
}

// Open reads every certificate in the location subdirectory. Files that do
// not contain a certificate are skipped with a warning.
func (p *Provider) Open(ctx context.Context, location certstore.Location) (certstore.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(p.root, location.String())
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("file: failed to read store %q: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	ids := make([]certstore.Identity, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		id, err := p.load(path)
		if err != nil {
			p.logger.Warn("skipping store entry", "path", path, "error", err)
			continue
		}
		ids = append(ids, id)
	}

	return &store{ids: ids}, nil
}

func (p *Provider) load(path string) (*Identity, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	id := &Identity{password: p.password}
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		switch {
		case block.Type == encoding.PEMTypeCertificate && id.cert == nil:
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			id.cert = cert
		case encoding.IsPrivateKeyBlock(block.Type) && id.key == nil:
			id.key = block
		}
	}
	if id.cert == nil {
		return nil, fmt.Errorf("%w: no certificate in file", encoding.ErrInvalidPEMEncoding)
	}
	return id, nil
}

type store struct {
	mu     sync.Mutex
	ids    []certstore.Identity
	closed bool
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
	s.ids = nil
	return nil
}

// Identity is a certificate read from a PEM file.
type Identity struct {
	cert     *x509.Certificate
	key      *pem.Block
	password []byte

	once   sync.Once
	signer crypto.Signer
	err    error
}

// Certificate implements certstore.Identity.
func (i *Identity) Certificate() *x509.Certificate {
	return i.cert
}

// Signer implements certstore.Identity. The key is decoded on first use.
func (i *Identity) Signer() (crypto.Signer, error) {
	if i.key == nil {
		return nil, certstore.ErrNoPrivateKey
	}
	i.once.Do(func() {
		i.signer, i.err = i.decode()
	})
	return i.signer, i.err
}

func (i *Identity) decode() (crypto.Signer, error) {
	key, err := encoding.DecodePrivateKeyBlock(i.key, i.password)
	if err != nil {
		return nil, err
	}
	signer, ok := key.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a signer", encoding.ErrInvalidPrivateKey, key)
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok || !pub.Equal(i.cert.PublicKey) {
		return nil, ErrKeyMismatch
	}
	return signer, nil
}
