package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInit(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")

	err := Init(Config{
		Debug: false,
		Dir:   logDir,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	if _, err := os.Stat(logDir); os.IsNotExist(err) {
		t.Errorf("Log directory was not created: %s", logDir)
	}

	if Logger == nil {
		t.Error("Logger is nil after initialization")
	}

	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}

func TestInitWritesToFile(t *testing.T) {
	logDir := t.TempDir()

	if err := Init(Config{Dir: logDir}); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}

	Warn("deadline skipped", "goal", "g-1", "reason", "invalid timezone")

	data, err := os.ReadFile(filepath.Join(logDir, "podcheck.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "deadline skipped") {
		t.Errorf("log file does not contain message, got %q", string(data))
	}
	if !strings.Contains(string(data), "goal=g-1") {
		t.Errorf("log file does not contain keyvals, got %q", string(data))
	}
}

func TestInitDebugMode(t *testing.T) {
	err := Init(Config{
		Debug: true,
		Dir:   filepath.Join(t.TempDir(), "logs"),
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger in debug mode: %v", err)
	}

	if Logger == nil {
		t.Error("Logger is nil after initialization")
	}

	Debug("Test debug message in debug mode")
	Info("Test info message in debug mode")
}

func TestLogFunctionsWithoutInit(t *testing.T) {
	Logger = nil

	// These should not panic when Logger is nil
	Debug("Test debug message")
	Info("Test info message")
	Warn("Test warning message")
	Error("Test error message")
}
