package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesToConfiguredPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fabric.log")

	l, err := New(Config{Path: path, Level: "info"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello", "component", "iqm")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected log file to exist: %v", err)
	}
}

func TestNewDefaultsToInfoOnInvalidLevel(t *testing.T) {
	l, err := New(Config{Level: "not-a-level"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if l.logger.GetLevel().String() != "info" {
		t.Fatalf("level = %s, want info", l.logger.GetLevel())
	}
}

func TestWithComponentTagsSubsequentLines(t *testing.T) {
	l, err := New(Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	tagged := l.WithComponent("authority")
	if tagged == l {
		t.Fatalf("WithComponent should return a distinct Logger")
	}
	var buf bytes.Buffer
	tagged.logger = tagged.logger.Output(&buf)
	tagged.Info("hello")
	if !strings.Contains(buf.String(), `"component":"authority"`) {
		t.Fatalf("log line %q lacks component=authority", buf.String())
	}
}

func TestGetFallsBackToStdoutWhenUninitialized(t *testing.T) {
	globalLogger = nil
	if Get() == nil {
		t.Fatalf("Get() returned nil")
	}
}
