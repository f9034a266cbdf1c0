package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink("info", "json", zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("NewWithSink failed: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("rule applied", zap.String("rule_id", "r1"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %q", len(lines), buf.String())
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "rule applied" || entry["rule_id"] != "r1" || entry["level"] != "info" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewWithSink_Text(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithSink("debug", "text", zapcore.AddSync(&buf))
	if err != nil {
		t.Fatalf("NewWithSink failed: %v", err)
	}

	logger.Debug("loading rules", zap.String("user_id", "u1"))
	_ = logger.Sync()

	out := buf.String()
	if !strings.Contains(out, "DEBUG") || !strings.Contains(out, "loading rules") {
		t.Errorf("unexpected console output: %q", out)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
