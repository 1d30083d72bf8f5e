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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sigauth/internal/config"
	"github.com/jeremyhahn/go-sigauth/pkg/signing"
)

func newSignCommand(a *app) *cobra.Command {
	var (
		outFile  string
		attached bool
	)

	cmd := &cobra.Command{
		Use:   "sign <file>",
		Short: "Sign a file with the selected certificate",
		Long: `Create a CAdES-BES signature over the contents of a file using the
certificate selected by --thumbprint (or the first certificate in the
store). The base64 encoded signature is printed or written to --out.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := a.setup(cmd, (*config.Config).ValidateStore)
			if err != nil {
				return err
			}

			// #nosec G304 - Input path is provided by the user
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read input file: %w", err)
			}

			session, err := openSession(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = session.Close() }()

			cert, err := session.Select(cfg.Certificate.Thumbprint)
			if err != nil {
				return err
			}

			detached := cfg.Auth.Detached && !attached
			svc := signing.NewCAdES(&signing.Options{Logger: logger})
			sig, err := svc.Sign(commandContext(cmd), cert, data, detached)
			if err != nil {
				return err
			}

			printer := a.printer(cmd.OutOrStdout())
			if outFile == "" {
				return printer.PrintSignature(sig.Encode(), cert.X509())
			}
			if err := os.WriteFile(outFile, []byte(sig.Encode()+"\n"), 0o600); err != nil {
				return fmt.Errorf("failed to write signature: %w", err)
			}
			return printer.PrintSuccess(fmt.Sprintf("Signature written to %s", outFile))
		},
	}

	cmd.Flags().StringVar(&outFile, "out", "", "write the signature to this file")
	cmd.Flags().BoolVar(&attached, "attached", false, "embed the file contents in the signature")

	return cmd
}
