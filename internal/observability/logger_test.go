package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Zereker/socket/v2/internal/config"
)

func TestSetupLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")
	logger, err := SetupLogger(config.LogConfig{
		Level:   "debug",
		Format:  "json",
		Outputs: []string{path},
	})
	if err != nil {
		t.Fatalf("SetupLogger failed: %v", err)
	}

	logger.Debug("session established", zap.String("id", "abc"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"session established"`) || !strings.Contains(string(data), `"id":"abc"`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestSetupLogger_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	logger, err := SetupLogger(config.LogConfig{
		Level:    "info",
		Outputs:  []string{path},
		Rotation: config.RotationConfig{Enable: true, MaxSizeMB: 1},
	})
	if err != nil {
		t.Fatalf("SetupLogger failed: %v", err)
	}

	logger.Info("rotated output")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "rotated output") {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestSetupLogger_Level(t *testing.T) {
	logger, err := SetupLogger(config.LogConfig{Level: "warn", Outputs: []string{"stderr"}})
	if err != nil {
		t.Fatalf("SetupLogger failed: %v", err)
	}
	if logger.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info enabled at warn level")
	}
	if !logger.Core().Enabled(zapcore.WarnLevel) {
		t.Error("warn disabled at warn level")
	}

	logger, err = SetupLogger(config.LogConfig{Level: "verbose"})
	if err != nil {
		t.Fatalf("SetupLogger failed: %v", err)
	}
	if !logger.Core().Enabled(zapcore.InfoLevel) || logger.Core().Enabled(zapcore.DebugLevel) {
		t.Error("unknown level should fall back to info")
	}
}

func TestLogger_Adapter(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := Logger(zap.New(core))

	logger.Debug("debug message", "id", "s1")
	logger.Info("info message", "addr", "127.0.0.1:1")
	logger.Warn("warn message")
	logger.Error("error message", "error", "boom")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	levels := []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel}
	for i, e := range entries {
		if e.Level != levels[i] {
			t.Errorf("entry %d level = %v, want %v", i, e.Level, levels[i])
		}
	}
	if got := entries[0].ContextMap()["id"]; got != "s1" {
		t.Errorf("id field = %v, want s1", got)
	}
	if got := logs.FilterMessage("info message").Len(); got != 1 {
		t.Errorf("info entries = %d, want 1", got)
	}
}
