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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	glog "github.com/google/logger"
)

const (
	reportTitle     = "=== APPLICATION ERROR REPORT ==="
	reportDateFmt   = "2006-01-02 15:04:05"
	reportSeparator = "=================================================="
)

// errorSink persists error records through google/logger and exports the
// collected log as a report on close.
type errorSink struct {
	mu         sync.Mutex
	once       sync.Once
	path       string
	reportPath string
	file       *os.File
	log        *glog.Logger
	count      int
	closeErr   error
}

var (
	glogInfoTag  = []byte("INFO : ")
	glogErrorTag = []byte("ERROR: ")
)

// fileWriter hides the Close method of the underlying file so the error
// log lifecycle stays with errorSink. Records reach it through the
// google/logger info level, which unlike the error level never writes to
// os.Stderr, so the tag is restored to ERROR here.
type fileWriter struct {
	w io.Writer
}

func (f fileWriter) Write(p []byte) (int, error) {
	if rest, ok := bytes.CutPrefix(p, glogInfoTag); ok {
		line := make([]byte, 0, len(glogErrorTag)+len(rest))
		line = append(append(line, glogErrorTag...), rest...)
		if _, err := f.w.Write(line); err != nil {
			return 0, err
		}
		return len(p), nil
	}
	return f.w.Write(p)
}

func openErrorSink(path, reportPath string) (*errorSink, error) {
	path = expandHome(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("logging: failed to create error log directory: %w", err)
		}
	}
	// #nosec G304 - error log path comes from operator configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("logging: failed to open error log: %w", err)
	}
	return &errorSink{
		path:       path,
		reportPath: expandHome(reportPath),
		file:       f,
		log:        glog.Init("sigauth", false, false, fileWriter{w: f}),
	}, nil
}

// record persists one error record. depth is the number of frames between
// record and the code that logged the error.
func (s *errorSink) record(depth int, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return
	}
	s.count++
	s.log.InfoDepth(depth+1, formatRecord(msg, args))
}

func (s *errorSink) close() error {
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.log.Close()
		s.log = nil
		if err := s.file.Close(); err != nil {
			s.closeErr = fmt.Errorf("logging: failed to close error log: %w", err)
			return
		}
		if s.reportPath == "" {
			return
		}
		s.closeErr = exportReport(s.path, s.reportPath, time.Now())
	})
	return s.closeErr
}

// exportReport copies the error log into a human readable report at dest.
// Nothing is written when the error log is empty.
func exportReport(logPath, dest string, now time.Time) error {
	// #nosec G304 - paths come from operator configuration
	content, err := os.ReadFile(logPath)
	if err != nil {
		return fmt.Errorf("logging: failed to read error log: %w", err)
	}
	if len(bytes.TrimSpace(content)) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString(reportTitle + "\n")
	fmt.Fprintf(&buf, "Date: %s\n", now.Format(reportDateFmt))
	buf.WriteString(reportSeparator + "\n\n")
	buf.Write(content)

	if dir := filepath.Dir(dest); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("logging: failed to create report directory: %w", err)
		}
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("logging: failed to write error report: %w", err)
	}
	return nil
}

// formatRecord renders msg and slog-style key/value args on one line.
func formatRecord(msg string, args []any) string {
	if len(args) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	r := slog.NewRecord(time.Time{}, slog.LevelError, "", 0)
	r.Add(args...)
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
		return true
	})
	return b.String()
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
