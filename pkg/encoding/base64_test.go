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

package encoding

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeBase64(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ASCII", []byte("Gopher"), "R29waGVy"},
		{"Digits", []byte("123"), "MTIz"},
		{"Cyrillic", []byte("Привет, Мир! @#$%^&*()"), base64.StdEncoding.EncodeToString([]byte("Привет, Мир! @#$%^&*()"))},
		{"Binary", []byte{0x00, 0xff, 0x10}, "AP8Q"},
		{"Empty", []byte{}, ""},
		{"Nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EncodeBase64(tt.in))
		})
	}
}

func TestDecodeBase64(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		got, err := DecodeBase64("R29waGVy")
		require.NoError(t, err)
		assert.Equal(t, []byte("Gopher"), got)
	})

	t.Run("WrappedLines", func(t *testing.T) {
		got, err := DecodeBase64("R29w\r\naGVy\n")
		require.NoError(t, err)
		assert.Equal(t, []byte("Gopher"), got)
	})

	t.Run("Empty", func(t *testing.T) {
		got, err := DecodeBase64("")
		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := DecodeBase64("not base64!")
		assert.ErrorIs(t, err, ErrInvalidBase64)
	})
}

func TestBase64RoundTrip(t *testing.T) {
	inputs := [][]byte{
		[]byte("d1"),
		[]byte("challenge-data-to-sign"),
		[]byte("Привет"),
		{0x00, 0x01, 0x02, 0xfe, 0xff},
		make([]byte, 1024),
	}

	for _, in := range inputs {
		encoded := EncodeBase64(in)

		decoded, err := DecodeBase64(encoded)
		require.NoError(t, err)
		assert.Equal(t, in, decoded, "decode must invert encode")

		assert.Equal(t, encoded, EncodeBase64(decoded), "encoding step must be idempotent")
		assert.NotEqual(t, string(in), encoded, "encode must not alias the input")
	}
}
