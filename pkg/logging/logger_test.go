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

package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Defaults", Config{}, false},
		{"DebugText", Config{Level: "debug", Format: "text"}, false},
		{"WarnJSON", Config{Level: "WARN", Format: "json"}, false},
		{"BadLevel", Config{Level: "trace"}, true},
		{"BadFormat", Config{Format: "xml"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.cfg.Output = &buf
			l, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, l.Close())
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)

	l.Info("hidden")
	l.Debug("hidden too")
	l.Warn("shown", "stage", "sign")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "stage=sign")
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Format: "json", Output: &buf})
	require.NoError(t, err)

	l.With("correlation_id", "abc").Info("hello")
	assert.Contains(t, buf.String(), `"correlation_id":"abc"`)
}

func TestErrorLogAndReport(t *testing.T) {
	dir := t.TempDir()
	errLog := filepath.Join(dir, "errors.log")
	report := filepath.Join(dir, "reports", "error_report.txt")

	l, err := New(Config{Output: &bytes.Buffer{}, ErrorLog: errLog, ReportPath: report})
	require.NoError(t, err)

	l.Info("not persisted")
	l.Error("token exchange failed", "status", 401)
	l.With("stage", "sign").Errorf("signing failed: %s", "no key")

	require.NoError(t, l.Close())
	require.NoError(t, l.Close(), "close must be idempotent")

	logData, err := os.ReadFile(errLog)
	require.NoError(t, err)
	assert.Contains(t, string(logData), "token exchange failed status=401")
	assert.Contains(t, string(logData), "signing failed: no key")
	assert.NotContains(t, string(logData), "not persisted")

	reportData, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Contains(t, string(reportData), reportTitle)
	assert.Contains(t, string(reportData), reportSeparator)
	assert.Contains(t, string(reportData), "token exchange failed")
}

func TestErrorLogStaysOffStderr(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stderr := os.Stderr
	os.Stderr = w
	t.Cleanup(func() { os.Stderr = stderr })

	var buf bytes.Buffer
	errLog := filepath.Join(t.TempDir(), "errors.log")
	l, err := New(Config{Format: "json", Output: &buf, ErrorLog: errLog})
	require.NoError(t, err)

	l.Error("authentication failed", "stage", "signing")
	require.NoError(t, l.Close())

	os.Stderr = stderr
	require.NoError(t, w.Close())
	leaked, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, string(leaked))

	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), `"msg":"authentication failed"`)

	logData, err := os.ReadFile(errLog)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(logData), "ERROR: "), string(logData))
	assert.Contains(t, string(logData), "logger_test.go:")
	assert.Contains(t, string(logData), "authentication failed stage=signing")
}

func TestErrorLogKeepsBoundAttributes(t *testing.T) {
	errLog := filepath.Join(t.TempDir(), "errors.log")
	l, err := New(Config{Output: &bytes.Buffer{}, ErrorLog: errLog})
	require.NoError(t, err)

	attempt := l.With("correlation_id", "CID-123")
	attempt.With("stage", "signing").Error("authentication failed", "status", 401)
	attempt.Errorf("token exchange failed: %s", "rejected")
	l.Error("unrelated failure")
	require.NoError(t, l.Close())

	logData, err := os.ReadFile(errLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "authentication failed correlation_id=CID-123 stage=signing status=401")
	assert.Contains(t, lines[1], "token exchange failed: rejected correlation_id=CID-123")
	assert.NotContains(t, lines[2], "correlation_id")
}

func TestReportSkippedWithoutErrors(t *testing.T) {
	dir := t.TempDir()
	report := filepath.Join(dir, "error_report.txt")

	l, err := New(Config{Output: &bytes.Buffer{}, ErrorLog: filepath.Join(dir, "errors.log"), ReportPath: report})
	require.NoError(t, err)
	l.Info("all good")
	require.NoError(t, l.Close())

	_, err = os.Stat(report)
	assert.True(t, os.IsNotExist(err))
}

func TestExportReport(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "errors.log")
	require.NoError(t, os.WriteFile(logPath, []byte("E boom\n"), 0o600))

	dest := filepath.Join(dir, "report.txt")
	now := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, exportReport(logPath, dest, now))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, reportTitle+"\nDate: 2025-03-01 10:30:00\n"+reportSeparator+"\n\nE boom\n", string(data))

	assert.Error(t, exportReport(filepath.Join(dir, "missing.log"), dest, now))
}

func TestMaybeError(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Output: &buf})
	require.NoError(t, err)

	l.MaybeError(nil)
	assert.Empty(t, buf.String())
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	assert.NoError(t, l.Close())
}
