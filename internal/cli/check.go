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


package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sigauth/internal/config"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/health"
)

// ErrCheckFailed is returned by the check command when a prerequisite is
// unhealthy.
var ErrCheckFailed = errors.New("one or more checks failed")

func newCheckCommand(a *app) *cobra.Command {
	var (
		offline    bool
		expiryWarn time.Duration
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check the prerequisites of a login",
		Long: `Check that the signing certificate is present, valid and usable and
that the challenge endpoint answers. A certificate close to expiry is
reported as degraded without failing the command.

The endpoint check fetches one challenge, which the service discards
unused. Use --offline to check only the certificate store.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			validate := (*config.Config).Validate
			if offline {
				validate = (*config.Config).ValidateStore
			}
			cfg, logger, err := a.setup(cmd, validate)
			if err != nil {
				return err
			}

			provider, err := newProvider(&cfg.Certificate, logger)
			if err != nil {
				return err
			}
			location, err := certstore.ParseLocation(cfg.Certificate.Location)
			if err != nil {
				return err
			}

			checker := health.NewChecker(cfg.Auth.Timeout)
			checker.RegisterCheck("certificate", health.StoreCheck(provider, health.StoreOptions{
				Location:      location,
				Thumbprint:    cfg.Certificate.Thumbprint,
				ExpiryWarning: expiryWarn,
			}))
			if !offline {
				client, err := newClient(cfg, logger)
				if err != nil {
					return err
				}
				checker.RegisterCheck("challenge_endpoint", health.ChallengeCheck(client))
			}

			results := checker.Run(commandContext(cmd))
			status := health.AggregateStatus(results)
			if err := a.printer(cmd.OutOrStdout()).PrintHealth(status, results); err != nil {
				return err
			}
			if status == health.StatusUnhealthy {
				return ErrCheckFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "check only the certificate store")
	cmd.Flags().DurationVar(&expiryWarn, "expiry-warning", health.DefaultExpiryWarning, "report certificates expiring within this window as degraded")

	return cmd
}

func checkMark(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "OK"
	case health.StatusDegraded:
		return "WARN"
	default:
		return "FAIL"
	}
}

func formatResult(r health.CheckResult) string {
	line := fmt.Sprintf("[%s] %s: %s", checkMark(r.Status), r.Name, r.Message)
	if r.Error != "" {
		line += fmt.Sprintf(" (%s)", r.Error)
	}
	return line
}
