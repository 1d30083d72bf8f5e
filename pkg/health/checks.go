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
	"fmt"
	"time"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

// DefaultExpiryWarning is how close to expiry a certificate is reported as
// degraded.
const DefaultExpiryWarning = 30 * 24 * time.Hour

// StoreOptions configures StoreCheck.
type StoreOptions struct {
	Location   certstore.Location
	Thumbprint string

	// ExpiryWarning defaults to DefaultExpiryWarning.
	ExpiryWarning time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// StoreCheck opens the certificate store and checks that the signing
// certificate is present, currently valid and has an accessible private
// key.
func StoreCheck(provider certstore.Provider, opts StoreOptions) CheckFunc {
	if opts.ExpiryWarning == 0 {
		opts.ExpiryWarning = DefaultExpiryWarning
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: "certificate"}

		session, err := certstore.Open(ctx, provider, opts.Location, nil)
		if err != nil {
			return unhealthy(result, "certificate store cannot be opened", err)
		}
		defer func() { _ = session.Close() }()

		cert, err := session.Select(opts.Thumbprint)
		if err != nil {
			return unhealthy(result, "no signing certificate selected", err)
		}
		if _, err := cert.Signer(); err != nil {
			return unhealthy(result, fmt.Sprintf("private key for %s is not accessible", cert.Subject()), err)
		}

		now := opts.Now()
		if err := cert.CheckValidity(now); err != nil {
			return unhealthy(result, fmt.Sprintf("certificate %s is not valid", cert.Subject()), err)
		}

		notAfter := cert.X509().NotAfter
		if remaining := notAfter.Sub(now); remaining < opts.ExpiryWarning {
			result.Status = StatusDegraded
			result.Message = fmt.Sprintf("certificate %s expires in %s", cert.Subject(), remaining.Round(time.Hour))
			return result
		}

		result.Status = StatusHealthy
		result.Message = fmt.Sprintf("%s (%s) valid until %s",
			cert.Subject(), cert.Thumbprint(), notAfter.UTC().Format(time.RFC3339))
		return result
	}
}

// ChallengeCheck fetches one challenge to confirm the authentication service
// is reachable and answers with a well-formed challenge.
func ChallengeCheck(client *transport.Client) CheckFunc {
	return func(ctx context.Context) CheckResult {
		result := CheckResult{Name: "challenge_endpoint"}

		err := transport.WithSession(ctx, client, func(s *transport.Session) error {
			_, err := s.FetchChallenge(ctx)
			return err
		})
		if err != nil {
			return unhealthy(result, "challenge endpoint failed", err)
		}

		result.Status = StatusHealthy
		result.Message = "challenge endpoint reachable"
		return result
	}
}

func unhealthy(result CheckResult, message string, err error) CheckResult {
	result.Status = StatusUnhealthy
	result.Message = message
	result.Error = err.Error()
	return result
}
