package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_WritesTextAndJSON(t *testing.T) {
	var text, js bytes.Buffer
	logger := New(&text, &js, slog.LevelInfo)

	logger.With("component", "test").Info("slot finished", "slot", "2")
	logger.Debug("hidden")

	if !strings.Contains(text.String(), "slot finished") || !strings.Contains(text.String(), "component=test") {
		t.Errorf("text output = %q, want message and attrs", text.String())
	}
	if strings.Contains(text.String(), "hidden") {
		t.Error("debug record written at info level")
	}

	var rec map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(js.Bytes()), &rec); err != nil {
		t.Fatalf("json output is not one JSON object: %v (%q)", err, js.String())
	}
	if rec["msg"] != "slot finished" || rec["slot"] != "2" || rec["component"] != "test" {
		t.Errorf("json record = %v", rec)
	}
}

func TestNew_GroupsPropagate(t *testing.T) {
	var text, js bytes.Buffer
	New(&text, &js, slog.LevelInfo).WithGroup("req").Info("done", "id", 7)

	if !strings.Contains(text.String(), "req.id=7") {
		t.Errorf("text output = %q, want grouped attr", text.String())
	}
	if !strings.Contains(js.String(), `"req":{"id":7}`) {
		t.Errorf("json output = %q, want grouped attr", js.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetup_LogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chorus.log")
	logger, f, err := Setup(slog.LevelInfo, path)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	logger.Info("hello file")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"msg":"hello file"`) {
		t.Errorf("log file = %q, want JSON record", data)
	}
}
