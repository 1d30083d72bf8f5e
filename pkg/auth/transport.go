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

package auth

import (
	"context"

	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

// Transport opens sessions with the authentication service.
type Transport interface {
	Open(ctx context.Context) (TransportSession, error)
}

// TransportSession performs the two network steps of the handshake.
// ExchangeToken reports failure as a nil token with an error.
type TransportSession interface {
	FetchChallenge(ctx context.Context) (*transport.Challenge, error)
	ExchangeToken(ctx context.Context, challengeID, signature string) (*transport.AuthToken, error)
	Close() error
}

// HTTPTransport adapts a transport.Client to Transport.
func HTTPTransport(c *transport.Client) Transport {
	return httpTransport{client: c}
}

type httpTransport struct {
	client *transport.Client
}

func (t httpTransport) Open(ctx context.Context) (TransportSession, error) {
	s, err := t.client.Open(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}
