package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	def := Default()
	if cfg.Listen != def.Listen {
		t.Errorf("Listen = %q, want %q", cfg.Listen, def.Listen)
	}
	if cfg.Framing.MaxBodySize != 2046 {
		t.Errorf("MaxBodySize = %d, want 2046", cfg.Framing.MaxBodySize)
	}
	if cfg.Framing.ByteOrder != LittleEndian {
		t.Errorf("ByteOrder = %q, want little", cfg.Framing.ByteOrder)
	}
	if cfg.Shutdown != 5*time.Second {
		t.Errorf("Shutdown = %v, want 5s", cfg.Shutdown)
	}
	if len(cfg.Log.Outputs) != 1 || cfg.Log.Outputs[0] != "stdout" {
		t.Errorf("Log.Outputs = %v", cfg.Log.Outputs)
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "server.toml", `
listen = "0.0.0.0:9000"
metrics_listen = "127.0.0.1:9100"
shutdown_timeout = "2s"

[framing]
max_body_size = 512
byte_order = "big"
idle_timeout = "30s"

[log]
level = "debug"
format = "json"
outputs = ["stderr"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != "0.0.0.0:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.MetricsListen != "127.0.0.1:9100" {
		t.Errorf("MetricsListen = %q", cfg.MetricsListen)
	}
	if cfg.Shutdown != 2*time.Second {
		t.Errorf("Shutdown = %v, want 2s", cfg.Shutdown)
	}
	if cfg.Framing.MaxBodySize != 512 {
		t.Errorf("MaxBodySize = %d, want 512", cfg.Framing.MaxBodySize)
	}
	if cfg.Framing.ByteOrder != BigEndian {
		t.Errorf("ByteOrder = %q, want big", cfg.Framing.ByteOrder)
	}
	if cfg.Framing.IdleTimeout != 30*time.Second {
		t.Errorf("IdleTimeout = %v, want 30s", cfg.Framing.IdleTimeout)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Framing.ReadBufferSize != 2048 {
		t.Errorf("ReadBufferSize = %d, want 2048", cfg.Framing.ReadBufferSize)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("SOCKET_LISTEN", "127.0.0.1:7000")
	t.Setenv("SOCKET_FRAMING_BYTE_ORDER", "BIG")
	t.Setenv("SOCKET_LOG_LEVEL", "warn")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen != "127.0.0.1:7000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.Framing.ByteOrder != BigEndian {
		t.Errorf("ByteOrder = %q, want big", cfg.Framing.ByteOrder)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"byte order", "[framing]\nbyte_order = \"middle\"\n"},
		{"max size zero", "[framing]\nmax_body_size = 0\n"},
		{"max size too large", "[framing]\nmax_body_size = 70000\n"},
		{"empty listen", "listen = \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, "bad.toml", tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestByteOrder_Order(t *testing.T) {
	tests := []struct {
		in   ByteOrder
		want binary.ByteOrder
	}{
		{"", binary.LittleEndian},
		{"little", binary.LittleEndian},
		{"LE", binary.LittleEndian},
		{"big", binary.BigEndian},
		{" be ", binary.BigEndian},
	}
	for _, tt := range tests {
		got, err := tt.in.Order()
		if err != nil {
			t.Errorf("Order(%q) failed: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Order(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ByteOrder("network").Order(); err == nil {
		t.Error("expected error for unknown byte order")
	}
}

func TestWriteTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("WriteTemplate failed: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Errorf("WriteTemplate with overwrite failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load of template failed: %v", err)
	}
	def := Default()
	if cfg.Listen != def.Listen || cfg.Framing != def.Framing || cfg.Shutdown != def.Shutdown {
		t.Errorf("template config = %+v, want %+v", cfg, def)
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := Default()
	opts, err := cfg.SessionOptions()
	if err != nil {
		t.Fatalf("SessionOptions failed: %v", err)
	}
	if len(opts) != 4 {
		t.Errorf("got %d options, want 4", len(opts))
	}

	cfg.Framing.ByteOrder = "sideways"
	if _, err := cfg.SessionOptions(); err == nil {
		t.Error("expected error for invalid byte order")
	}
}
