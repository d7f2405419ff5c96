package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `auction:
  window_seconds: 120
  penalty_minutes: 500
routing:
  pool_size: 4
ors:
  api_key: "secret"
  profile: "cycling-regular"
store:
  backend: "sqlite"
  path: "/tmp/dispatch.db"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  topic_prefix: "foodbridge"
  qos: 1
metrics:
  prometheus:
    enabled: true
    addr: ":9102"
  influx:
    enabled: true
    url: "http://localhost:8086"
    token: "tok"
    org: "org"
    bucket: "dispatch"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"window_seconds", cfg.Auction.WindowSeconds, 120},
		{"penalty_minutes", cfg.Auction.PenaltyMinutes, 500.0},
		{"pool_size", cfg.Routing.PoolSize, 4},
		{"ors.base_url", cfg.ORS.BaseURL, "https://api.openrouteservice.org"},
		{"ors.api_key", cfg.ORS.APIKey, "secret"},
		{"ors.profile", cfg.ORS.Profile, "cycling-regular"},
		{"store.backend", cfg.Store.Backend, "sqlite"},
		{"store.path", cfg.Store.Path, "/tmp/dispatch.db"},
		{"mqtt.broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "foodbridge"},
		{"mqtt.qos", cfg.MQTT.QoS, byte(1)},
		{"prometheus.addr", cfg.Metrics.Prometheus.Addr, ":9102"},
		{"influx.bucket", cfg.Metrics.Influx.Bucket, "dispatch"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `ors:
  api_key: "secret"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Auction.WindowSeconds != 60 {
		t.Errorf("window default: %d", cfg.Auction.WindowSeconds)
	}
	if cfg.Auction.PenaltyMinutes != 999 {
		t.Errorf("penalty default: %v", cfg.Auction.PenaltyMinutes)
	}
	if cfg.Store.Backend != "memory" {
		t.Errorf("store default: %s", cfg.Store.Backend)
	}
	if cfg.MQTT.TopicPrefix != "dispatch" {
		t.Errorf("prefix default: %s", cfg.MQTT.TopicPrefix)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `ors:
  api_key: "secret"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FB_AUCTION__WINDOW_SECONDS", "300")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Auction.WindowSeconds != 300 {
		t.Errorf("env override ignored: %d", cfg.Auction.WindowSeconds)
	}
}

func TestLoadRejectsMissingAPIKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("store:\n  backend: memory\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected format error")
	}
}
