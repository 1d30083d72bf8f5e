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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sigauth/pkg/correlation"
	"github.com/jeremyhahn/go-sigauth/pkg/metrics"
	"github.com/jeremyhahn/go-sigauth/pkg/validation"
)

const (
	opFetchChallenge = "fetch challenge"
	opExchangeToken  = "exchange token"
)

// Session is an open HTTP session. It is safe for concurrent use; Close
// aborts nothing in flight but releases idle connections and rejects new
// requests.
type Session struct {
	client *Client
	http   *http.Client
	pool   *http.Transport

	mu     sync.Mutex
	closed bool
}

// FetchChallenge requests a new challenge.
func (s *Session) FetchChallenge(ctx context.Context) (*Challenge, error) {
	body, err := s.do(ctx, opFetchChallenge, metrics.OpFetchChallenge, http.MethodGet, s.client.challengeURL, nil)
	if err != nil {
		return nil, err
	}

	var doc struct {
		ID   *string `json:"uuid"`
		Data *string `json:"data"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &Error{Kind: KindBadResponse, Op: opFetchChallenge, Err: err}
	}
	if doc.ID == nil || *doc.ID == "" || doc.Data == nil {
		return nil, &Error{
			Kind: KindBadResponse,
			Op:   opFetchChallenge,
			Err:  errors.New(`challenge response requires "uuid" and "data"`),
		}
	}

	s.client.logger.Debug("challenge received", "challenge_id", *doc.ID)
	return &Challenge{ID: *doc.ID, Data: *doc.Data}, nil
}

// ExchangeToken submits the signed challenge and returns the issued token.
// On failure the token is nil and the error is a *Error describing why.
func (s *Session) ExchangeToken(ctx context.Context, challengeID, signature string) (*AuthToken, error) {
	body, err := s.do(ctx, opExchangeToken, metrics.OpExchangeToken, http.MethodPost, s.client.tokenURL,
		tokenRequest{Code: challengeID, Signature: signature})
	if err != nil {
		return nil, err
	}

	token, err := parseAuthToken(body)
	if err != nil {
		return nil, &Error{Kind: KindBadResponse, Op: opExchangeToken, Err: err}
	}
	s.client.logger.Debug("token received", "challenge_id", challengeID)
	return token, nil
}

// Close releases the session's connections. Idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pool != nil {
		s.pool.CloseIdleConnections()
	}
	s.client.logger.Debug("transport session closed")
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// do performs one request and returns the body of a 2xx response.
func (s *Session) do(ctx context.Context, op, metricOp, method, url string, body any) ([]byte, error) {
	if s.isClosed() {
		return nil, &Error{Kind: KindUnavailable, Op: op, Err: ErrSessionClosed}
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindUnavailable, Op: op, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(data)
	}

	if err := s.client.limiter.Wait(ctx); err != nil {
		return nil, classify(ctx, op, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.client.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, url, reqBody)
	if err != nil {
		return nil, &Error{Kind: KindUnavailable, Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.client.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := correlation.GetCorrelationID(ctx); id != "" {
		req.Header.Set(correlation.CorrelationIDHeader, id)
	}
	for k, v := range s.client.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	if err != nil {
		metrics.RecordHTTPRequest(method, 0, time.Since(start).Seconds())
		metrics.RecordError(metricOp, "http", "connection")
		te := classify(ctx, op, err)
		s.client.logger.Warn("request failed", "op", op, "url", url, "kind", te.Kind, "error", err)
		return nil, te
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.client.logger.Debug("failed to close response body", "error", closeErr)
		}
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	duration := time.Since(start).Seconds()
	metrics.RecordHTTPRequest(method, resp.StatusCode, duration)
	if err != nil {
		return nil, classify(ctx, op, fmt.Errorf("failed to read response body: %w", err))
	}
	if len(respBody) > maxBodySize {
		return nil, &Error{Kind: KindBadResponse, Op: op, Err: fmt.Errorf("response body exceeds %d bytes", maxBodySize)}
	}

	s.client.logger.Debug("http request",
		"op", op, "method", method, "url", url, "status", resp.StatusCode, "duration", duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.RecordError(metricOp, "http", "status")
		return nil, &Error{
			Kind:    KindHTTP,
			Op:      op,
			Status:  resp.StatusCode,
			Message: errorMessage(respBody),
		}
	}
	return respBody, nil
}

// errorMessage extracts the server message from an error body.
func errorMessage(body []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return validation.SanitizeForLog(errResp.Message)
		}
		if errResp.Error != "" {
			return validation.SanitizeForLog(errResp.Error)
		}
	}
	return "unknown error"
}

// classify maps a client error to a transport error. A deadline set by the
// session or the caller is a timeout; caller cancellation and connection
// failures are unavailability.
func classify(ctx context.Context, op string, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	case errors.Is(ctx.Err(), context.Canceled):
		return &Error{Kind: KindUnavailable, Op: op, Err: context.Canceled}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, Op: op, Err: err}
	default:
		return &Error{Kind: KindUnavailable, Op: op, Err: err}
	}
}
