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
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-sigauth/pkg/signing"
)

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <signature-file> [data-file]",
		Short: "Verify a signature",
		Long: `Verify a base64 encoded CAdES signature. A detached signature needs
the signed file as the second argument; an attached signature is checked
against its embedded content, or against the data file when one is given.

The signer certificate is taken from the signature; no certificate store
is opened.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// #nosec G304 - Signature path is provided by the user
			encoded, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read signature file: %w", err)
			}
			sig, err := signing.DecodeSignature(strings.TrimSpace(string(encoded)))
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 2 {
				// #nosec G304 - Data path is provided by the user
				data, err = os.ReadFile(args[1])
				if err != nil {
					return fmt.Errorf("failed to read data file: %w", err)
				}
			}

			svc := signing.NewCAdES(nil)
			if err := svc.Verify(sig, data); err != nil {
				return err
			}

			detached, _ := sig.Detached()
			signer, _ := sig.Certificate()
			return a.printer(cmd.OutOrStdout()).PrintVerification(signer, detached)
		},
	}
}
