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
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/health"
	"github.com/jeremyhahn/go-sigauth/pkg/transport"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintToken prints the token returned by the authentication service. Text
// output is the access token alone, so it can be captured by scripts.
func (p *Printer) PrintToken(token *transport.AuthToken) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(token)
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "Access Token: %s\n", token.AccessToken())
		if exp, ok := token.ExpiresAt(); ok {
			fmt.Fprintf(p.writer, "Expires At:   %s\n", exp.UTC().Format(time.RFC3339))
		}
		return nil
	case OutputFormatText:
		access := token.AccessToken()
		if access == "" {
			fmt.Fprintln(p.writer, string(token.Raw()))
			return nil
		}
		fmt.Fprintln(p.writer, access)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCertificateList prints the contents of a certificate store
func (p *Printer) PrintCertificateList(certs []certstore.CertificateInfo) error {
	switch p.format {
	case OutputFormatJSON:
		certList := make([]map[string]interface{}, len(certs))
		for i, c := range certs {
			certList[i] = certificateFields(c)
		}
		return p.printJSON(map[string]interface{}{
			"certificates": certList,
		})
	case OutputFormatTable:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No certificates found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-40s %-40s %-20s %-3s\n", "THUMBPRINT", "SUBJECT", "NOT AFTER", "KEY")
		fmt.Fprintln(p.writer, strings.Repeat("-", 106))
		for _, c := range certs {
			fmt.Fprintf(p.writer, "%-40s %-40s %-20s %-3s\n",
				c.Thumbprint, truncate(c.Subject, 40), c.NotAfter.UTC().Format("2006-01-02 15:04:05"), yesNo(c.HasPrivateKey))
		}
		return nil
	case OutputFormatText:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No certificates found")
			return nil
		}
		fmt.Fprintln(p.writer, "Certificates:")
		for _, c := range certs {
			fmt.Fprintf(p.writer, "  - %s\n", c.Subject)
			fmt.Fprintf(p.writer, "    Issuer:      %s\n", c.Issuer)
			fmt.Fprintf(p.writer, "    Serial:      %s\n", c.SerialNumber)
			fmt.Fprintf(p.writer, "    Thumbprint:  %s\n", c.Thumbprint)
			fmt.Fprintf(p.writer, "    Valid:       %s to %s\n",
				c.NotBefore.UTC().Format(time.RFC3339), c.NotAfter.UTC().Format(time.RFC3339))
			fmt.Fprintf(p.writer, "    Private Key: %s\n", yesNo(c.HasPrivateKey))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSignature prints a signature (base64 encoded)
func (p *Printer) PrintSignature(signature string, signer *x509.Certificate) error {
	switch p.format {
	case OutputFormatJSON:
		result := map[string]interface{}{
			"signature": signature,
		}
		if signer != nil {
			result["signer"] = signer.Subject.String()
			result["thumbprint"] = certstore.Thumbprint(signer)
		}
		return p.printJSON(result)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, signature)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintVerification prints the outcome of a successful verification
func (p *Printer) PrintVerification(signer *x509.Certificate, detached bool) error {
	switch p.format {
	case OutputFormatJSON:
		result := map[string]interface{}{
			"valid":    true,
			"detached": detached,
		}
		if signer != nil {
			result["signer"] = signer.Subject.String()
			result["thumbprint"] = certstore.Thumbprint(signer)
		}
		return p.printJSON(result)
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, "Signature is valid")
		if signer != nil {
			fmt.Fprintf(p.writer, "  Signer:     %s\n", signer.Subject.String())
			fmt.Fprintf(p.writer, "  Thumbprint: %s\n", certstore.Thumbprint(signer))
		}
		fmt.Fprintf(p.writer, "  Detached:   %t\n", detached)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintHealth prints the results of the prerequisite checks
func (p *Printer) PrintHealth(status health.Status, results []health.CheckResult) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": status,
			"checks": results,
		})
	case OutputFormatTable:
		fmt.Fprintf(p.writer, "%-20s %-10s %-10s %s\n", "CHECK", "STATUS", "LATENCY", "MESSAGE")
		fmt.Fprintln(p.writer, strings.Repeat("-", 72))
		for _, r := range results {
			fmt.Fprintf(p.writer, "%-20s %-10s %-10s %s\n", r.Name, r.Status, elapsed(r.Latency), r.Message)
		}
		fmt.Fprintf(p.writer, "\nOverall: %s\n", status)
		return nil
	case OutputFormatText:
		for _, r := range results {
			fmt.Fprintln(p.writer, formatResult(r))
		}
		fmt.Fprintf(p.writer, "Overall: %s\n", status)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	default:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	}
}

func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func certificateFields(c certstore.CertificateInfo) map[string]interface{} {
	return map[string]interface{}{
		"subject":         c.Subject,
		"issuer":          c.Issuer,
		"serial_number":   c.SerialNumber,
		"thumbprint":      c.Thumbprint,
		"not_before":      c.NotBefore.UTC().Format(time.RFC3339),
		"not_after":       c.NotAfter.UTC().Format(time.RFC3339),
		"has_private_key": c.HasPrivateKey,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
