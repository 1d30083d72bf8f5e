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

package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Challenge is a one-time challenge issued by the authentication service.
type Challenge struct {
	// ID identifies the challenge; it is sent back as the "code" field.
	ID string `json:"uuid"`

	// Data is the content to sign.
	Data string `json:"data"`
}

// Payload returns the bytes to sign.
func (c *Challenge) Payload() []byte {
	return []byte(c.Data)
}

// tokenRequest is the token exchange request body.
type tokenRequest struct {
	Code      string `json:"code"`
	Signature string `json:"signature"`
}

// errorResponse is the body of a non-2xx response.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// AuthToken is the token document returned by a successful exchange. Its
// structure is defined by the service; only its presence is meaningful to
// the protocol.
type AuthToken struct {
	raw    json.RawMessage
	fields map[string]any
}

// tokenFields lists the field names checked by AccessToken, in order.
var tokenFields = []string{"token", "access_token", "accessToken", "id_token"}

func parseAuthToken(body []byte) (*AuthToken, error) {
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("token response is not JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("token response has trailing data")
	}
	if fields == nil {
		return nil, fmt.Errorf("token response is not a JSON object")
	}
	return &AuthToken{
		raw:    append(json.RawMessage(nil), body...),
		fields: fields,
	}, nil
}

// NewAuthToken wraps an already-decoded token document.
func NewAuthToken(raw []byte) (*AuthToken, error) {
	return parseAuthToken(raw)
}

// Raw returns the token document as received.
func (t *AuthToken) Raw() json.RawMessage {
	return t.raw
}

// Field returns a top-level field of the token document.
func (t *AuthToken) Field(name string) (any, bool) {
	v, ok := t.fields[name]
	return v, ok
}

// AccessToken returns the bearer token string, looking at the common
// field names. It returns "" when none holds a string.
func (t *AuthToken) AccessToken() string {
	for _, name := range tokenFields {
		if s, ok := t.fields[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// ExpiresAt returns the expiry of the access token when it is a JWT with an
// "exp" claim. The JWT signature is not verified.
func (t *AuthToken) ExpiresAt() (time.Time, bool) {
	tok := t.AccessToken()
	if tok == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// MarshalJSON returns the token document unchanged.
func (t *AuthToken) MarshalJSON() ([]byte, error) {
	return t.raw, nil
}
