package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewWritesServiceField(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{Service: "bookqa", Level: "info"}).Info("index_rebuilt", "chunks", 5)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["service"] != "bookqa" || entry["msg"] != "index_rebuilt" || entry["chunks"] != float64(5) {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, Options{Service: "bookqa", Format: "TEXT"}).Warn("retry_attempt", "attempt", 2)

	line := buf.String()
	if !strings.Contains(line, "msg=retry_attempt") || !strings.Contains(line, "service=bookqa") {
		t.Fatalf("unexpected text line %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: "WARNING"})
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info must be filtered at warn level")
	}
	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Fatalf("warn must be written")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" Error ": slog.LevelError,
		"warn":    slog.LevelWarn,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
