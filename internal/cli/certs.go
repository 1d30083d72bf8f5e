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
	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sigauth/internal/config"
	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
)

func newCertsCommand(a *app) *cobra.Command {
	certsCmd := &cobra.Command{
		Use:   "certs",
		Short: "Inspect the certificate store",
		Long:  `Commands for inspecting the certificates available for signing`,
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List certificates in the store",
		Long: `List every certificate in the configured store and location with its
thumbprint, validity and whether the private key is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup(cmd, (*config.Config).ValidateStore)
			if err != nil {
				return err
			}
			session, err := openSession(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			certs, err := session.Certificates()
			if err != nil {
				return err
			}
			return a.printer(cmd.OutOrStdout()).PrintCertificateList(certs)
		},
	}

	certsCmd.AddCommand(listCmd)
	return certsCmd
}

// openSession opens the configured certificate store. The caller closes
// the returned session.
func openSession(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger) (*certstore.Session, error) {
	provider, err := newProvider(&cfg.Certificate, logger)
	if err != nil {
		return nil, err
	}
	location, err := certstore.ParseLocation(cfg.Certificate.Location)
	if err != nil {
		return nil, err
	}
	return certstore.Open(commandContext(cmd), provider, location, logger)
}
