package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the daemon configuration.
type Config struct {
	Host string
	Port string

	// Control API the speaker state is polled from.
	SonosAPIHost   string
	SonosAPIPort   string
	SonosRoom      string
	SonosTimeoutMs int

	PollIntervalMs     int
	PushPollIntervalMs int
	PushTimeoutSec     int
	PollMaxBackoffMs   int

	DemasterEnabled    bool
	DemasterOffline    bool
	DemasterAPIURL     string
	DemasterRatePerSec float64

	// StationsFile is an optional YAML file of extra stream stations.
	StationsFile string
	Stations     map[string]string

	HistoryEnabled       bool
	SQLiteDBPath         string
	HistoryRetentionDays int
	HistoryPruneSchedule string

	ShowDetails           bool
	ShowDetailsTimeoutSec int

	// AdminJWTSecret protects the operator routes. Empty leaves them open.
	AdminJWTSecret string
}

// Load reads configuration from environment variables with defaults.
func Load() (Config, error) {
	cfg := Config{
		Host:                  envString("HOST", "0.0.0.0"),
		Port:                  envString("PORT", "8080"),
		SonosAPIHost:          envString("SONOS_API_HOST", "localhost"),
		SonosAPIPort:          envString("SONOS_API_PORT", "5005"),
		SonosRoom:             strings.TrimSpace(envString("SONOS_ROOM", "")),
		SonosTimeoutMs:        envInt("SONOS_TIMEOUT_MS", 5000),
		PollIntervalMs:        envInt("POLL_INTERVAL_MS", 1000),
		PushPollIntervalMs:    envInt("PUSH_POLL_INTERVAL_MS", 60000),
		PushTimeoutSec:        envInt("PUSH_TIMEOUT_SEC", 130),
		PollMaxBackoffMs:      envInt("POLL_MAX_BACKOFF_MS", 30000),
		DemasterEnabled:       envBool("DEMASTER_ENABLED", true),
		DemasterOffline:       envBool("DEMASTER_OFFLINE", false),
		DemasterAPIURL:        envString("DEMASTER_API_URL", ""),
		DemasterRatePerSec:    envFloat("DEMASTER_RATE_PER_SEC", 2),
		StationsFile:          envString("STATIONS_FILE", ""),
		HistoryEnabled:        envBool("HISTORY_ENABLED", true),
		SQLiteDBPath:          envString("SQLITE_DB_PATH", "./data/sonos-display.db"),
		HistoryRetentionDays:  envInt("HISTORY_RETENTION_DAYS", 30),
		HistoryPruneSchedule:  envString("HISTORY_PRUNE_SCHEDULE", "@daily"),
		ShowDetails:           envBool("SHOW_DETAILS", false),
		ShowDetailsTimeoutSec: envInt("SHOW_DETAILS_TIMEOUT_SEC", 0),
		AdminJWTSecret:        envString("ADMIN_JWT_SECRET", ""),
	}

	if cfg.SonosRoom == "" {
		return Config{}, fmt.Errorf("SONOS_ROOM is required")
	}
	if cfg.PollIntervalMs <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL_MS must be positive")
	}
	if cfg.PushPollIntervalMs < cfg.PollIntervalMs {
		return Config{}, fmt.Errorf("PUSH_POLL_INTERVAL_MS must not be below POLL_INTERVAL_MS")
	}
	if cfg.PushTimeoutSec <= 0 {
		return Config{}, fmt.Errorf("PUSH_TIMEOUT_SEC must be positive")
	}
	if cfg.ShowDetailsTimeoutSec < 0 {
		return Config{}, fmt.Errorf("SHOW_DETAILS_TIMEOUT_SEC must not be negative")
	}
	if cfg.AdminJWTSecret != "" && len(strings.TrimSpace(cfg.AdminJWTSecret)) < 32 {
		return Config{}, fmt.Errorf("ADMIN_JWT_SECRET must be at least 32 characters")
	}

	if cfg.StationsFile != "" {
		stations, err := LoadStations(cfg.StationsFile)
		if err != nil {
			return Config{}, err
		}
		cfg.Stations = stations
	}

	return cfg, nil
}

// PollInterval is the poll cadence while push updates are quiet.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// PushPollInterval is the safety-net poll cadence while push is active.
func (c Config) PushPollInterval() time.Duration {
	return time.Duration(c.PushPollIntervalMs) * time.Millisecond
}

// PushTimeout is how long a push update keeps polls suppressed.
func (c Config) PushTimeout() time.Duration {
	return time.Duration(c.PushTimeoutSec) * time.Second
}

// PollMaxBackoff caps the poll interval after repeated failures.
func (c Config) PollMaxBackoff() time.Duration {
	return time.Duration(c.PollMaxBackoffMs) * time.Millisecond
}

// SonosTimeout bounds each control API request.
func (c Config) SonosTimeout() time.Duration {
	return time.Duration(c.SonosTimeoutMs) * time.Millisecond
}

// ShowDetailsTimeout is the default revert delay for detail mode.
func (c Config) ShowDetailsTimeout() time.Duration {
	return time.Duration(c.ShowDetailsTimeoutSec) * time.Second
}

// stationsFile is the on-disk layout of STATIONS_FILE:
//
//	stations:
//	  bbc_radio_two.m3u8: BBC Radio 2
type stationsFile struct {
	Stations map[string]string `yaml:"stations"`
}

// LoadStations reads extra stream-to-station mappings from a YAML file.
func LoadStations(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stations file: %w", err)
	}
	var file stationsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse stations file %s: %w", path, err)
	}
	if file.Stations == nil {
		return map[string]string{}, nil
	}
	return file.Stations, nil
}

func envString(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func envFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return strings.EqualFold(val, "true")
}
