package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
)

// failingWriter is a helper for testing error propagation.

type failingWriter struct{}

func (fw *failingWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func TestStagedMode(t *testing.T) {
	if err := Init("DEBUG", "text", "", true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("Initial log")

	var pane bytes.Buffer
	if err := SetOutput(&pane); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}

	if !strings.Contains(pane.String(), "Initial log") {
		t.Errorf("Expected staged log to be flushed to target, but it wasn't. Got: %s", pane.String())
	}

	slog.Info("Live log")

	if !strings.Contains(pane.String(), "Live log") {
		t.Errorf("Expected live log to be written to target, but it wasn't. Got: %s", pane.String())
	}

	BufferOutput()

	slog.Info("Staged log")

	if strings.Contains(pane.String(), "Staged log") {
		t.Errorf("Expected log to be staged, but it was written to target. Got: %s", pane.String())
	}

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFileLogging(t *testing.T) {
	tempFile, err := os.CreateTemp("", "test.log")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	defer os.Remove(tempFile.Name())

	if err := Init("INFO", "json", tempFile.Name(), false); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("board log", "key", "value")

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(tempFile.Name())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if !strings.Contains(string(content), `"msg":"board log"`) || !strings.Contains(string(content), `"key":"value"`) {
		t.Errorf("Expected log to be written to file in JSON format, but it wasn't. Got: %s", string(content))
	}
}

func TestSetLevel(t *testing.T) {
	if err := Init("INFO", "text", "", true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	var pane bytes.Buffer
	if err := SetOutput(&pane); err != nil {
		t.Fatalf("SetOutput failed: %v", err)
	}

	slog.Debug("hidden")
	if strings.Contains(pane.String(), "hidden") {
		t.Errorf("Debug log should have been suppressed at INFO level. Got: %s", pane.String())
	}

	SetLevel("DEBUG")
	slog.Debug("visible")
	if !strings.Contains(pane.String(), "visible") {
		t.Errorf("Debug log should be visible after SetLevel(DEBUG). Got: %s", pane.String())
	}

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSetOutputFailure(t *testing.T) {
	if err := Init("INFO", "text", "", true); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	slog.Info("staged before failure")

	if err := SetOutput(&failingWriter{}); err == nil {
		t.Error("Expected SetOutput to return the flush error, got nil")
	}

	if err := Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}
