package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestEmptyConfigDefaults(t *testing.T) {
	cfg := &Config{}

	if got := cfg.GetSerialPort(); got != DefaultSerialPort {
		t.Errorf("GetSerialPort() = %q", got)
	}
	if got := cfg.GetBaudRate(); got != 115200 {
		t.Errorf("GetBaudRate() = %d, want 115200", got)
	}
	if got := cfg.GetPollInterval(); got != time.Second {
		t.Errorf("GetPollInterval() = %v, want 1s", got)
	}
	if got := cfg.GetReadTimeout(); got != time.Second {
		t.Errorf("GetReadTimeout() = %v, want 1s", got)
	}
	if got := cfg.GetSettleDelay(); got != 2*time.Second {
		t.Errorf("GetSettleDelay() = %v, want 2s", got)
	}
	if got := cfg.GetOutputDirectory(); got != "." {
		t.Errorf("GetOutputDirectory() = %q", got)
	}
	if got := cfg.GetListen(); got != ":8080" {
		t.Errorf("GetListen() = %q", got)
	}
	if got := cfg.GetDBPath(); got != "" {
		t.Errorf("GetDBPath() = %q, want empty", got)
	}
	if !cfg.GetSavePNG() {
		t.Error("GetSavePNG() = false, want true")
	}
	if cfg.GetDev() {
		t.Error("GetDev() = true, want false")
	}
	if cfg.GetDataBits() != 0 || cfg.GetStopBits() != 0 || cfg.GetParity() != "" {
		t.Error("framing fields should be unset by default")
	}
}

func TestLoadConfig_Full(t *testing.T) {
	path := writeConfig(t, "session.json", `{
		"serial_port": "/dev/cu.usbserial-0001",
		"baud_rate": 9600,
		"parity": "E",
		"poll_interval_ms": 250,
		"read_timeout": "500ms",
		"settle_delay": "0s",
		"output_directory": "/tmp/dht",
		"listen": "",
		"db_path": "samples.db",
		"save_png": false,
		"dev": true
	}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.GetSerialPort() != "/dev/cu.usbserial-0001" {
		t.Errorf("serial port = %q", cfg.GetSerialPort())
	}
	if cfg.GetBaudRate() != 9600 {
		t.Errorf("baud rate = %d", cfg.GetBaudRate())
	}
	if cfg.GetParity() != "E" {
		t.Errorf("parity = %q", cfg.GetParity())
	}
	if cfg.GetPollInterval() != 250*time.Millisecond {
		t.Errorf("poll interval = %v", cfg.GetPollInterval())
	}
	if cfg.GetReadTimeout() != 500*time.Millisecond {
		t.Errorf("read timeout = %v", cfg.GetReadTimeout())
	}
	if cfg.GetSettleDelay() != 0 {
		t.Errorf("settle delay = %v", cfg.GetSettleDelay())
	}
	if cfg.GetOutputDirectory() != "/tmp/dht" {
		t.Errorf("output directory = %q", cfg.GetOutputDirectory())
	}
	if cfg.GetListen() != "" {
		t.Errorf("listen = %q, want empty", cfg.GetListen())
	}
	if cfg.GetDBPath() != "samples.db" {
		t.Errorf("db path = %q", cfg.GetDBPath())
	}
	if cfg.GetSavePNG() {
		t.Error("save_png = true, want false")
	}
	if !cfg.GetDev() {
		t.Error("dev = false, want true")
	}
}

func TestLoadConfig_Partial(t *testing.T) {
	path := writeConfig(t, "partial.json", `{"baud_rate": 57600}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.GetBaudRate() != 57600 {
		t.Errorf("baud rate = %d", cfg.GetBaudRate())
	}
	if cfg.GetPollInterval() != time.Second {
		t.Errorf("poll interval should default, got %v", cfg.GetPollInterval())
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "session.yaml", `{}`, ".json extension"},
		{"bad json", "bad.json", `{"baud_rate": `, "failed to parse"},
		{"zero baud", "baud.json", `{"baud_rate": 0}`, "baud_rate must be positive"},
		{"negative interval", "poll.json", `{"poll_interval_ms": -5}`, "poll_interval_ms must be positive"},
		{"bad timeout", "timeout.json", `{"read_timeout": "soon"}`, "invalid read_timeout"},
		{"zero timeout", "timeout0.json", `{"read_timeout": "0s"}`, "read_timeout must be positive"},
		{"negative settle", "settle.json", `{"settle_delay": "-1s"}`, "settle_delay must be non-negative"},
		{"blank port", "port.json", `{"serial_port": "  "}`, "serial_port must not be empty"},
		{"blank dir", "dir.json", `{"output_directory": ""}`, "output_directory must not be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Errorf("expected stat error, got %v", err)
	}
}
