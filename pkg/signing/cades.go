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

package signing

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"time"

	"github.com/smallstep/pkcs7"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/logging"
	"github.com/jeremyhahn/go-sigauth/pkg/metrics"
)

// backend labels signing metrics.
const backend = "cades"

// oidSigningCertificateV2 is id-aa-signingCertificateV2 (RFC 5035).
var oidSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}

// signingCertificateV2 ::= SEQUENCE { certs SEQUENCE OF ESSCertIDv2, ... }
type signingCertificateV2 struct {
	Certs []essCertIDv2
}

// essCertIDv2 omits hashAlgorithm, which then defaults to SHA-256.
type essCertIDv2 struct {
	HashAlgorithm pkix.AlgorithmIdentifier `asn1:"optional"`
	CertHash      []byte
}

// Options configures the CAdES service.
type Options struct {
	// Logger receives signing diagnostics.
	Logger *logging.Logger

	// Now overrides the clock used for certificate validity checks.
	Now func() time.Time
}

// CAdES is a Service producing CAdES-BES signatures with SHA-256.
type CAdES struct {
	logger *logging.Logger
	now    func() time.Time
}

// NewCAdES creates a CAdES signing service.
func NewCAdES(opts *Options) *CAdES {
	if opts == nil {
		opts = &Options{}
	}
	c := &CAdES{
		logger: opts.Logger,
		now:    opts.Now,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Level returns the signature profile produced by Sign.
func (c *CAdES) Level() Level {
	return LevelCAdESBES
}

// Sign implements Service.
func (c *CAdES) Sign(ctx context.Context, cert *certstore.Certificate, data []byte, detached bool) (Signature, error) {
	start := time.Now()
	sig, err := c.sign(ctx, cert, data, detached)
	metrics.RecordOperation(metrics.OpSign, backend, metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		metrics.RecordError(metrics.OpSign, backend, errorType(err))
		c.logger.Error("signing failed", "error", err)
		return nil, err
	}
	c.logger.Debug("payload signed",
		"level", LevelCAdESBES, "detached", detached, "size", len(sig))
	return sig, nil
}

func (c *CAdES) sign(ctx context.Context, cert *certstore.Certificate, data []byte, detached bool) (Signature, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
	if !cert.Valid() {
		return nil, ErrNoCertificate
	}
	if err := cert.CheckValidity(c.now()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoCertificate, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrEngineFailure)
	}

	signer, err := cert.Signer()
	if err != nil {
		if errors.Is(err, certstore.ErrHandleClosed) {
			return nil, fmt.Errorf("%w: %w", ErrNoCertificate, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
	if err := checkKey(signer); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}

	x509Cert := cert.X509()
	attr, err := signingCertificateAttribute(x509Cert)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}

	sd, err := pkcs7.NewSignedData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(x509Cert, signer, pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{attr},
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
	if detached {
		sd.Detach()
	}

	der, err := sd.Finish()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEngineFailure, err)
	}
	return Signature(der), nil
}

// Verify implements Service.
func (c *CAdES) Verify(sig Signature, original []byte) error {
	start := time.Now()
	err := c.verify(sig, original)
	metrics.RecordOperation(metrics.OpVerify, backend, metrics.Status(err), time.Since(start).Seconds())
	if err != nil {
		metrics.RecordError(metrics.OpVerify, backend, errorType(err))
		c.logger.Debug("signature verification failed", "error", err)
	}
	return err
}

func (c *CAdES) verify(sig Signature, original []byte) error {
	p7, err := parse(sig)
	if err != nil {
		return err
	}

	switch {
	case len(original) > 0 && len(p7.Content) == 0:
		p7.Content = original
	case len(original) > 0:
		if !bytes.Equal(p7.Content, original) {
			return fmt.Errorf("%w: embedded content does not match", ErrInvalidSignature)
		}
	case len(p7.Content) == 0:
		return fmt.Errorf("%w: detached signature requires the original content", ErrInvalidSignature)
	}

	if err := p7.Verify(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	signerCert := p7.GetOnlySigner()
	if signerCert == nil {
		return fmt.Errorf("%w: expected exactly one signer", ErrInvalidSignature)
	}

	var sc signingCertificateV2
	if err := p7.UnmarshalSignedAttribute(oidSigningCertificateV2, &sc); err != nil {
		return fmt.Errorf("%w: missing signing-certificate-v2 attribute: %w", ErrInvalidSignature, err)
	}
	if len(sc.Certs) == 0 {
		return fmt.Errorf("%w: empty signing-certificate-v2 attribute", ErrInvalidSignature)
	}
	sum := sha256.Sum256(signerCert.Raw)
	if !bytes.Equal(sc.Certs[0].CertHash, sum[:]) {
		return fmt.Errorf("%w: signing certificate does not match signer", ErrInvalidSignature)
	}
	return nil
}

func parse(sig Signature) (*pkcs7.PKCS7, error) {
	if len(sig) == 0 {
		return nil, fmt.Errorf("%w: empty signature", ErrInvalidSignature)
	}
	p7, err := pkcs7.Parse(sig)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return p7, nil
}

func signingCertificateAttribute(cert *x509.Certificate) (pkcs7.Attribute, error) {
	sum := sha256.Sum256(cert.Raw)
	value := signingCertificateV2{
		Certs: []essCertIDv2{{CertHash: sum[:]}},
	}
	if _, err := asn1.Marshal(value); err != nil {
		return pkcs7.Attribute{}, fmt.Errorf("failed to encode signing-certificate-v2: %w", err)
	}
	return pkcs7.Attribute{Type: oidSigningCertificateV2, Value: value}, nil
}

// checkKey rejects key types the CMS engine cannot sign with.
func checkKey(signer crypto.Signer) error {
	switch key := signer.Public().(type) {
	case *rsa.PublicKey, *ecdsa.PublicKey:
		return nil
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedAlgorithm, key)
	}
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNoCertificate):
		return "no_certificate"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	default:
		return "engine_failure"
	}
}
