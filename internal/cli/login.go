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
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sigauth/internal/config"
	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

func newLoginCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print the access token",
		Long: `Run the challenge/response handshake and print the token issued by
the authentication service.

Text output prints only the access token. JSON output prints the complete
token response. Transient failures (service unreachable, timeouts) can be
retried with --retries; rejected signatures and certificate problems are
never retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLogin(cmd)
		},
	}

	cmd.Flags().Int("retries", 0, "retry transient failures up to this many times")
	cmd.Flags().Duration("retry-wait", time.Second, "initial wait between retries")
	cmd.Flags().Duration("retry-max-wait", 30*time.Second, "maximum wait between retries")
	_ = a.v.BindPFlag("retries", cmd.Flags().Lookup("retries"))
	_ = a.v.BindPFlag("retry-wait", cmd.Flags().Lookup("retry-wait"))
	_ = a.v.BindPFlag("retry-max-wait", cmd.Flags().Lookup("retry-max-wait"))

	return cmd
}

func (a *app) runLogin(cmd *cobra.Command) error {
	cfg, logger, err := a.setup(cmd, (*config.Config).Validate)
	if err != nil {
		return err
	}

	authn, err := newAuthenticator(cfg, logger)
	if err != nil {
		return err
	}

	policy := retryPolicy{
		Retries: a.v.GetInt("retries"),
		Wait:    a.v.GetDuration("retry-wait"),
		MaxWait: a.v.GetDuration("retry-max-wait"),
	}

	ctx := commandContext(cmd)
	start := time.Now()
	token, err := withRetry(ctx, policy, logger, func() (*transport.AuthToken, error) {
		return authn.Run(ctx)
	})
	if err != nil {
		return err
	}
	printVerbose(cmd, a.globals, "authenticated in %s", elapsed(time.Since(start)))

	return a.printer(cmd.OutOrStdout()).PrintToken(token)
}
