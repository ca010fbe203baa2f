package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/gommon/log"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STREAM_URL", "")
	t.Setenv("SCREENCAST_SOURCE", "")
	t.Setenv("SCREENCAST_LOG_LEVEL", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":3030" || cfg.Source != SourceScreen || cfg.Capacity != 16 || cfg.Quality != 75 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.PollInterval != 16*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.PollInterval)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SCREENCAST_SOURCE", "")

	path := filepath.Join(t.TempDir(), "screencast.yaml")
	content := `
addr: ":9000"
source: pattern
poll_interval: 8ms
capacity: 4
pattern:
  width: 320
  height: 240
relay:
  url: rtmp://localhost/live/key
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Addr != ":9000" || cfg.Source != SourcePattern || cfg.Capacity != 4 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.PollInterval != 8*time.Millisecond {
		t.Errorf("poll interval = %s", cfg.PollInterval)
	}
	if cfg.Pattern.Width != 320 || cfg.Pattern.Height != 240 {
		t.Errorf("pattern = %+v", cfg.Pattern)
	}
	if cfg.Quality != 75 || cfg.Relay.FPS != 30 {
		t.Errorf("defaults lost for unset keys: %+v", cfg)
	}
	if cfg.Relay.URL != "rtmp://localhost/live/key" {
		t.Errorf("relay url = %q", cfg.Relay.URL)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                 "8081",
		"STREAM_URL":           "rtmp://example/live",
		"SCREENCAST_SOURCE":    "shm",
		"SCREENCAST_LOG_LEVEL": "debug",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	if cfg.Addr != ":8081" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.Relay.URL != "rtmp://example/live" || cfg.Source != SourceShm || cfg.LogLevel != "debug" {
		t.Errorf("env not applied: %+v", cfg)
	}

	env["PORT"] = "127.0.0.1:9"
	cfg.applyEnv(func(k string) string { return env[k] })
	if cfg.Addr != "127.0.0.1:9" {
		t.Errorf("addr = %q", cfg.Addr)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown source", func(c *Config) { c.Source = "camera" }, "unknown source"},
		{"zero capacity", func(c *Config) { c.Capacity = 0 }, "capacity"},
		{"quality too high", func(c *Config) { c.Quality = 101 }, "quality"},
		{"bad pattern", func(c *Config) { c.Source = SourcePattern; c.Pattern.Width = 0 }, "pattern size"},
		{"bad level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
		{"no poll interval", func(c *Config) { c.PollInterval = 0 }, "poll_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]log.Lvl{"debug": log.DEBUG, "INFO": log.INFO, "warn": log.WARN, "error": log.ERROR, "off": log.OFF}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
}
