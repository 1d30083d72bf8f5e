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

// Package auth runs the challenge-response handshake: fetch a challenge,
// sign it with a certificate from a store, and exchange the signature for a
// token. Every attempt owns one transport session and one store session and
// releases both before returning.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/correlation"
	"github.com/jeremyhahn/go-sigauth/pkg/encoding"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
	"github.com/jeremyhahn/go-sigauth/pkg/metrics"
	"github.com/jeremyhahn/go-sigauth/pkg/signing"
	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

// Config configures an Authenticator.
type Config struct {
	// Transport reaches the authentication service. Required.
	Transport Transport

	// Provider opens the certificate store. Required.
	Provider certstore.Provider

	// Signer produces signatures. Defaults to a CAdES service.
	Signer signing.Service

	// Logger receives handshake diagnostics.
	Logger *logging.Logger

	// Thumbprint selects the signing certificate. Empty selects the first
	// certificate in the store.
	Thumbprint string

	// Location is the store to open. Defaults to certstore.CurrentUser.
	Location certstore.Location

	// Detached omits the challenge from the signature.
	Detached bool

	// Verify is the self-check policy. Defaults to VerifyWarn.
	Verify VerifyPolicy

	// PayloadEncoding selects the signed bytes. Defaults to PayloadRaw.
	PayloadEncoding PayloadEncoding
}

// Authenticator performs handshakes. Runs may be concurrent; store access
// is serialized.
type Authenticator struct {
	transport  Transport
	provider   certstore.Provider
	signer     signing.Service
	logger     *logging.Logger
	thumbprint string
	location   certstore.Location
	detached   bool
	verify     VerifyPolicy
	encoding   PayloadEncoding

	storeMu sync.Mutex

	mu    sync.RWMutex
	state State
}

// New validates cfg and creates an Authenticator.
func New(cfg *Config) (*Authenticator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	if cfg.Transport == nil {
		return nil, fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("%w: certificate provider is required", ErrInvalidConfig)
	}

	verify, err := ParseVerifyPolicy(string(cfg.Verify))
	if err != nil {
		return nil, err
	}
	enc, err := ParsePayloadEncoding(string(cfg.PayloadEncoding))
	if err != nil {
		return nil, err
	}

	location := cfg.Location
	if location == "" {
		location = certstore.CurrentUser
	}
	if !location.IsValid() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, certstore.ErrInvalidLocation)
	}

	a := &Authenticator{
		transport:  cfg.Transport,
		provider:   cfg.Provider,
		signer:     cfg.Signer,
		logger:     cfg.Logger,
		thumbprint: cfg.Thumbprint,
		location:   location,
		detached:   cfg.Detached,
		verify:     verify,
		encoding:   enc,
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	if a.signer == nil {
		a.signer = signing.NewCAdES(&signing.Options{Logger: a.logger})
	}
	return a, nil
}

// State returns the state reached by the most recent run.
func (a *Authenticator) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Authenticator) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Run performs one handshake and returns the issued token. On failure the
// token is nil and the error is an *Error naming the failed stage.
func (a *Authenticator) Run(ctx context.Context) (*transport.AuthToken, error) {
	ctx, id := correlation.Ensure(ctx)
	logger := a.logger.With("correlation_id", id)

	start := time.Now()
	a.setState(StateInit)
	token, err := a.run(ctx, logger)
	metrics.RecordOperation(metrics.OpAuthenticate, a.provider.Name(), metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			metrics.RecordHandshake(string(ae.Stage))
		}
		return nil, err
	}
	metrics.RecordHandshake(metrics.StatusSuccess)
	logger.Info("authentication succeeded", "duration", time.Since(start))
	return token, nil
}

func (a *Authenticator) run(ctx context.Context, logger *logging.Logger) (*transport.AuthToken, error) {
	sess, err := a.transport.Open(ctx)
	if err != nil {
		return nil, a.fail(logger, StageChallenge, err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("failed to close transport session", "error", err)
		}
	}()

	challenge, err := sess.FetchChallenge(ctx)
	if err != nil {
		return nil, a.fail(logger, StageChallenge, err)
	}
	if challenge == nil {
		return nil, a.fail(logger, StageChallenge, errors.New("no challenge returned"))
	}
	a.setState(StateChallengeFetched)
	logger.Debug("challenge fetched", "challenge_id", challenge.ID)

	sig, err := a.sign(ctx, logger, challenge)
	if err != nil {
		return nil, a.fail(logger, StageSigning, err)
	}
	a.setState(StateSigned)

	token, err := sess.ExchangeToken(ctx, challenge.ID, sig.Encode())
	if err != nil {
		return nil, a.fail(logger, StageTokenExchange, err)
	}
	if token == nil {
		return nil, a.fail(logger, StageTokenExchange, ErrNoToken)
	}
	a.setState(StateTokenExchanged)
	return token, nil
}

// sign opens the store, selects the certificate and signs the challenge.
// The store is released before returning on every path.
func (a *Authenticator) sign(ctx context.Context, logger *logging.Logger, challenge *transport.Challenge) (signing.Signature, error) {
	a.storeMu.Lock()
	defer a.storeMu.Unlock()

	store, err := certstore.Open(ctx, a.provider, a.location, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close certificate store", "error", err)
		}
	}()

	cert, err := store.Select(a.thumbprint)
	if err != nil {
		return nil, err
	}

	payload := a.payload(challenge)
	sig, err := a.signer.Sign(ctx, cert, payload, a.detached)
	if err != nil {
		return nil, err
	}

	if a.verify == VerifySkip {
		return sig, nil
	}
	if err := a.signer.Verify(sig, payload); err != nil {
		if a.verify == VerifyEnforce {
			return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
		}
		logger.Warn("signature self-check failed, sending anyway", "error", err)
	}
	return sig, nil
}

// payload returns the bytes to sign for challenge.
func (a *Authenticator) payload(challenge *transport.Challenge) []byte {
	if a.encoding == PayloadBase64 {
		return []byte(encoding.EncodeBase64(challenge.Payload()))
	}
	return challenge.Payload()
}

func (a *Authenticator) fail(logger *logging.Logger, stage Stage, err error) error {
	a.setState(StateFailed)
	metrics.RecordError(metrics.OpAuthenticate, a.provider.Name(), string(stage))
	logger.Error("authentication failed", "stage", stage, "error", err)
	return &Error{Stage: stage, Err: err}
}
