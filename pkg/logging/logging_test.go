package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestValidate(t *testing.T) {
	for _, lvl := range []string{"", "debug", "INFO", " warn ", "warning", "error"} {
		if err := Validate(lvl); err != nil {
			t.Errorf("Validate(%q) = %v", lvl, err)
		}
	}
	if err := Validate("verbose"); err == nil {
		t.Error("Validate(verbose) should fail")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug") != slog.LevelDebug {
		t.Error("debug")
	}
	if ParseLevel("bogus") != slog.LevelInfo {
		t.Error("unknown levels fall back to info")
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "json", Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("dropped")
	logger.Warn("kept", "tick", 3)

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec); err != nil {
		t.Fatalf("expected exactly one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "kept" {
		t.Fatalf("msg = %v", rec["msg"])
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ROULETTE_LOG_LEVEL", "debug")
	t.Setenv("ROULETTE_LOG_FORMAT", "json")
	opts := FromEnv("ROULETTE", nil)
	if opts.Level != "debug" || opts.Format != "json" {
		t.Fatalf("FromEnv = %+v", opts)
	}
}
