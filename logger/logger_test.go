package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(zapcore.InfoLevel, "json", &buf)
	log.Debug("hidden")
	log.Info("model trained", zap.String("model", "energy_usage"))
	log.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above debug level, got %q", buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["message"] != "model trained" || entry["model"] != "energy_usage" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestNewRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	log, err := New(Options{Level: "debug", Format: "console", OutputPath: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	log.Info("hello file")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Fatalf("log file missing entry: %q", data)
	}
}
