package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPAddr              = ":8099"
	defaultDBPath                = "/data/zyxel_ap.db"
	defaultDataDir               = "/data"
	defaultHABaseURL             = "http://supervisor/core"
	defaultConfigRefreshInterval = 60 * time.Second
	defaultDiscoveryPrefix       = "homeassistant"
	defaultDeviceName            = "zyxel-ap"
	defaultPublishIntervalSec    = 30
)

// Config stores runtime settings loaded from environment variables.
// The AP credentials are not here; they come from the Home Assistant
// integration via configsync.
type Config struct {
	HTTPAddr              string
	DBPath                string
	DataDir               string
	HABaseURL             string
	SupervisorToken       string
	ConfigRefreshInterval time.Duration
	LogLevel              slog.Level
	MQTT                  MQTTConfig
}

// MQTTConfig drives the optional MQTT discovery publisher. An empty
// broker URL disables it.
type MQTTConfig struct {
	Broker             string
	Username           string
	Password           string
	DeviceName         string
	DiscoveryPrefix    string
	PublishIntervalSec int
}

// Enabled reports whether a broker has been configured.
func (c MQTTConfig) Enabled() bool {
	return strings.TrimSpace(c.Broker) != ""
}

// Load builds Config from environment variables using stable defaults.
func Load() Config {
	return Config{
		HTTPAddr:              getenv("HTTP_ADDR", defaultHTTPAddr),
		DBPath:                getenv("DB_PATH", defaultDBPath),
		DataDir:               getenv("DATA_DIR", defaultDataDir),
		HABaseURL:             getenv("HA_BASE_URL", defaultHABaseURL),
		SupervisorToken:       os.Getenv("SUPERVISOR_TOKEN"),
		ConfigRefreshInterval: parseDuration("CONFIG_REFRESH_INTERVAL", defaultConfigRefreshInterval),
		LogLevel:              parseLogLevel(getenv("LOG_LEVEL", "info")),
		MQTT: MQTTConfig{
			Broker:             getenv("MQTT_BROKER", ""),
			Username:           getenv("MQTT_USERNAME", ""),
			Password:           os.Getenv("MQTT_PASSWORD"),
			DeviceName:         getenv("MQTT_DEVICE_NAME", defaultDeviceName),
			DiscoveryPrefix:    getenv("MQTT_DISCOVERY_PREFIX", defaultDiscoveryPrefix),
			PublishIntervalSec: parseInt("MQTT_PUBLISH_INTERVAL_SEC", defaultPublishIntervalSec),
		},
	}
}

// DBDir returns the target directory for DBPath.
func (c Config) DBDir() string {
	return filepath.Dir(c.DBPath)
}

func getenv(key string, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
