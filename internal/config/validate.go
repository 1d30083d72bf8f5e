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

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jeremyhahn/go-sigauth/pkg/certstore"
	"github.com/jeremyhahn/go-sigauth/pkg/validation"
)

// newValidator creates a validator with the sigauth custom tags.
func newValidator() *validator.Validate {
	validate := validator.New()

	_ = validate.RegisterValidation("http_endpoint", validateHTTPEndpoint)
	_ = validate.RegisterValidation("file_exists", validateFileExists)
	_ = validate.RegisterValidation("store_location", validateStoreLocation)
	_ = validate.RegisterValidation("thumbprint", validateThumbprint)

	return validate
}

// Validate checks the configuration and returns an error describing every
// invalid field.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return validationError(err)
	}
	return c.validateStore()
}

// ValidateStore checks only the certificate and logging sections. Commands
// that never contact the authentication service use it in place of
// Validate.
func (c *Config) ValidateStore() error {
	validate := newValidator()
	for _, section := range []any{&c.Certificate, &c.Logging} {
		if err := validate.Struct(section); err != nil {
			return validationError(err)
		}
	}
	return c.validateStore()
}

func (c *Config) validateStore() error {
	switch c.Certificate.Store {
	case "file":
		if c.Certificate.File.Path == "" {
			return fmt.Errorf("%w: certificate.file.path is required for the file store", ErrInvalidConfig)
		}
	case "pkcs11":
		if c.Certificate.PKCS11.Library == "" {
			return fmt.Errorf("%w: certificate.pkcs11.library is required for the pkcs11 store", ErrInvalidConfig)
		}
		if c.Certificate.PKCS11.Token == "" {
			return fmt.Errorf("%w: certificate.pkcs11.token is required for the pkcs11 store", ErrInvalidConfig)
		}
	}
	return nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fieldMessage(fe))
		}
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "http_endpoint":
		return fmt.Sprintf("%s must be an absolute http(s) URL, got %q", field, fe.Value())
	case "file_exists":
		return fmt.Sprintf("%s: file %q does not exist", field, fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation (value %v)", field, fe.Tag(), fe.Value())
	}
}

func validateHTTPEndpoint(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if raw == "" {
		return true // Empty values handled by 'required' tag
	}
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func validateFileExists(fl validator.FieldLevel) bool {
	path := fl.Field().String()
	if path == "" {
		return true
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func validateStoreLocation(fl validator.FieldLevel) bool {
	_, err := certstore.ParseLocation(fl.Field().String())
	return err == nil
}

// validateThumbprint accepts a SHA-1 thumbprint in any of the forms
// certificate viewers display.
func validateThumbprint(fl validator.FieldLevel) bool {
	return validation.ValidateThumbprint(fl.Field().String()) == nil
}
