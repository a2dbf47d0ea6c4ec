package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nucleus/provision-core/internal/config"
	"github.com/nucleus/provision-core/internal/logging"
)

func TestNew_JSONToStdoutAndFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "provision.log")
	var stdout bytes.Buffer

	logger, closer := logging.New(config.LogConfig{Level: "debug", JSON: true, File: path}, &stdout)
	logger.Debug("probe finished", "host", "db.example.com")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &entry); err != nil {
		t.Fatalf("stdout is not JSON: %v: %s", err, stdout.String())
	}
	if entry["msg"] != "probe finished" || entry["host"] != "db.example.com" {
		t.Fatalf("entry = %v", entry)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "probe finished") {
		t.Fatalf("log file missing entry: %s", data)
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var stdout bytes.Buffer
	logger, _ := logging.New(config.LogConfig{Level: "warn"}, &stdout)
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(stdout.String(), "hidden") || !strings.Contains(stdout.String(), "shown") {
		t.Fatalf("output = %q", stdout.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
