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
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeremyhahn/go-sigauth/internal/config"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
	"github.com/jeremyhahn/go-sigauth/pkg/metrics"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	globals *Config
	cfg     *config.Config
	logger  *logging.Logger
}

// Execute runs the sigauth command line. Errors are printed to stderr in
// the selected output format and returned for the exit status.
func Execute(ctx context.Context) error {
	cmd, a := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = a.printer(cmd.ErrOrStderr()).PrintError(err) // Error printing to stderr is best-effort
	}
	return err
}

// newRootCommand builds the command tree. The returned app must be closed
// after the command has run.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{v: viper.New(), globals: NewConfig()}

	cmd := &cobra.Command{
		Use:   "sigauth",
		Short: "sigauth - certificate based authentication client",
		Long: `sigauth authenticates against a challenge/response service using an
X.509 certificate from a local certificate store.

The client fetches a one-time challenge, signs it as a CAdES-BES
signature with the selected certificate and exchanges the signature for
an access token.

Supported certificate stores:
  - file:     PEM files with PKCS#8 keys
  - pkcs11:   PKCS#11 hardware tokens
  - platform: Windows certificate store, macOS keychain`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globals, err := configFromViper(a.v)
			if err != nil {
				return err
			}
			a.globals = globals
			return nil
		},
	}

	// Persistent flags (available to all commands)
	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default is ./sigauth.yaml, $HOME/.sigauth/sigauth.yaml or /etc/sigauth/sigauth.yaml)")
	flags.StringP("output", "o", string(OutputFormatText), "output format (text, json, table)")
	flags.BoolP("verbose", "v", false, "verbose output")
	flags.String("challenge-url", "", "challenge endpoint URL")
	flags.String("token-url", "", "token endpoint URL")
	flags.Duration("timeout", config.DefaultTimeout, "per-request timeout")
	flags.String("ca-file", "", "additional trusted CA certificates (PEM)")
	flags.Bool("insecure-skip-verify", false, "skip TLS certificate verification (not recommended)")
	flags.String("thumbprint", "", "SHA-1 thumbprint of the signing certificate")
	flags.String("store", "", "certificate store (file, pkcs11, platform)")
	flags.String("location", "", "store location (current_user, local_machine)")
	flags.String("store-path", "", "directory of the file certificate store")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	_ = a.v.BindPFlags(flags)
	a.v.SetEnvPrefix("sigauth")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	cmd.AddCommand(newVersionCommand(a))
	cmd.AddCommand(newLoginCommand(a))
	cmd.AddCommand(newCertsCommand(a))
	cmd.AddCommand(newSignCommand(a))
	cmd.AddCommand(newVerifyCommand(a))
	cmd.AddCommand(newCheckCommand(a))

	return cmd, a
}

// config loads the configuration once per invocation and applies flag
// overrides. Validation is left to the command.
func (a *app) config(cmd *cobra.Command) (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	cfg, err := config.Read(a.globals.ResolveConfigFile())
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(cmd.Flags(), a.v, cfg)
	if cfg.Metrics.Enabled {
		metrics.Enable()
	} else {
		metrics.Disable()
	}
	a.cfg = cfg
	return cfg, nil
}

// log returns the invocation logger, writing to the command's stderr.
func (a *app) log(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	level := cfg.Logging.Level
	if a.globals.Verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:      level,
		Format:     cfg.Logging.Format,
		Output:     cmd.ErrOrStderr(),
		ErrorLog:   cfg.Logging.ErrorLog,
		ReportPath: cfg.Logging.ReportPath,
	})
	if err != nil {
		return nil, err
	}
	a.logger = logger
	return logger, nil
}

// setup loads the configuration, validates it with validate and builds the
// logger.
func (a *app) setup(cmd *cobra.Command, validate func(*config.Config) error) (*config.Config, *logging.Logger, error) {
	cfg, err := a.config(cmd)
	if err != nil {
		return nil, nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, nil, err
	}
	logger, err := a.log(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}
	printVerbose(cmd, a.globals, "using configuration:\n%s", cfg)
	return cfg, logger, nil
}

// close writes the metrics textfile and flushes the logger.
func (a *app) close() error {
	var errs []error
	if a.cfg != nil && a.cfg.Metrics.Enabled && a.cfg.Metrics.Textfile != "" {
		errs = append(errs, metrics.WriteTextfile(expandHome(a.cfg.Metrics.Textfile)))
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
		a.logger = nil
	}
	return errors.Join(errs...)
}

func (a *app) printer(w io.Writer) *Printer {
	return NewPrinter(a.globals.OutputFormat, w)
}

// printVerbose prints a message if verbose mode is enabled
func printVerbose(cmd *cobra.Command, globals *Config, format string, args ...interface{}) {
	if globals.Verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "[VERBOSE] "+format+"\n", args...)
	}
}

// commandContext returns the command context, falling back to Background
// when the command runs without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// elapsed formats a duration for text output.
func elapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
