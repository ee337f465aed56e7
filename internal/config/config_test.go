package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	if cfg.HTTPAddr != ":8099" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.DBPath != "/data/zyxel_ap.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.HABaseURL != "http://supervisor/core" {
		t.Errorf("HABaseURL = %q", cfg.HABaseURL)
	}
	if cfg.ConfigRefreshInterval != 60*time.Second {
		t.Errorf("ConfigRefreshInterval = %v", cfg.ConfigRefreshInterval)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.MQTT.Enabled() {
		t.Error("mqtt should be disabled without a broker")
	}
	if cfg.MQTT.DiscoveryPrefix != "homeassistant" {
		t.Errorf("DiscoveryPrefix = %q", cfg.MQTT.DiscoveryPrefix)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CONFIG_REFRESH_INTERVAL", "30s")
	t.Setenv("MQTT_BROKER", "mqtt://core-mosquitto:1883")
	t.Setenv("MQTT_PUBLISH_INTERVAL_SEC", "15")

	cfg := Load()
	if cfg.HTTPAddr != ":9000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if cfg.ConfigRefreshInterval != 30*time.Second {
		t.Errorf("ConfigRefreshInterval = %v", cfg.ConfigRefreshInterval)
	}
	if !cfg.MQTT.Enabled() {
		t.Error("mqtt should be enabled")
	}
	if cfg.MQTT.PublishIntervalSec != 15 {
		t.Errorf("PublishIntervalSec = %d", cfg.MQTT.PublishIntervalSec)
	}
}

func TestParseFallbacks(t *testing.T) {
	t.Setenv("CONFIG_REFRESH_INTERVAL", "not-a-duration")
	t.Setenv("MQTT_PUBLISH_INTERVAL_SEC", "-5")
	t.Setenv("LOG_LEVEL", "verbose")

	cfg := Load()
	if cfg.ConfigRefreshInterval != 60*time.Second {
		t.Errorf("ConfigRefreshInterval = %v", cfg.ConfigRefreshInterval)
	}
	if cfg.MQTT.PublishIntervalSec != 30 {
		t.Errorf("PublishIntervalSec = %d", cfg.MQTT.PublishIntervalSec)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}
