package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all application configuration for both binaries
type Config struct {
	Sport    string // Competition key, e.g. "nba"
	Timezone string // Reference zone for all date math

	Tracker  TrackerConfig
	Provider ProviderConfig
	Redis    RedisConfig
	Stream   StreamConfig
	Presence PresenceConfig
	FactLog  FactLogConfig
	Server   ServerConfig
}

// TrackerConfig drives the live-tracker daemon
type TrackerConfig struct {
	DataDir          string
	SchedulerTick    time.Duration // Idle discovery cadence
	LivePollInterval time.Duration // Per-event cadence once active
	PregameLead      time.Duration // Observation window opens this far before tip-off
	TeamID           int           // 0 tracks every game in the competition
}

// ProviderConfig configures the balldontlie API client
type ProviderConfig struct {
	APIKey            string
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	URL      string
	Password string
}

// StreamConfig names the Redis streams and the API-side consumer group
type StreamConfig struct {
	SnapshotStream string
	FactStream     string
	ConsumerGroup  string
	ConsumerID     string
	MaxLen         int64 // Approximate stream trim length
}

// PresenceConfig tunes the viewer activation gate
type PresenceConfig struct {
	TTL          time.Duration // Heartbeat expiry, 60-90s band
	FactDedupTTL time.Duration // Delivery guard window
}

// FactLogConfig configures the Postgres fact audit trail
type FactLogConfig struct {
	DSN string // Empty disables the audit writer
}

// ServerConfig holds stats-api server configuration
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	sport := getEnv("SPORT", "nba")

	return &Config{
		Sport:    sport,
		Timezone: getEnv("TIMEZONE", "America/Denver"),
		Tracker: TrackerConfig{
			DataDir:          getEnv("DATA_DIR", "./data"),
			SchedulerTick:    getEnvDuration("SCHEDULER_TICK_SECONDS", 60),
			LivePollInterval: getEnvDuration("LIVE_POLL_SECONDS", 30),
			PregameLead:      time.Duration(getEnvInt("PREGAME_LEAD_MINUTES", 30)) * time.Minute,
			TeamID:           getEnvInt("TRACKED_TEAM_ID", 0),
		},
		Provider: ProviderConfig{
			APIKey:            os.Getenv("BALLDONTLIE_API_KEY"),
			BaseURL:           getEnv("BALLDONTLIE_BASE_URL", "https://api.balldontlie.io"),
			RequestsPerSecond: getEnvFloat("BALLDONTLIE_RPS", 5.0),
			Burst:             getEnvInt("BALLDONTLIE_BURST", 3),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Stream: StreamConfig{
			SnapshotStream: fmt.Sprintf("telemetry.snapshots.%s", sport),
			FactStream:     fmt.Sprintf("telemetry.facts.%s", sport),
			ConsumerGroup:  getEnv("STREAM_CONSUMER_GROUP", "ws-fanout"),
			ConsumerID:     getEnv("STREAM_CONSUMER_ID", "stats-api-1"),
			MaxLen:         int64(getEnvInt("STREAM_MAX_LEN", 10000)),
		},
		Presence: PresenceConfig{
			TTL:          getEnvDuration("PRESENCE_TTL_SECONDS", 75),
			FactDedupTTL: time.Duration(getEnvInt("FACT_DEDUP_TTL_MINUTES", 360)) * time.Minute,
		},
		FactLog: FactLogConfig{
			DSN: os.Getenv("FACTLOG_DSN"),
		},
		Server: ServerConfig{
			Addr:        getEnv("SERVER_ADDR", ":8080"),
			CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		},
	}
}

// Location resolves the configured reference time zone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		fmt.Sscanf(value, "%d", &intValue)
		return intValue
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var floatValue float64
		fmt.Sscanf(value, "%f", &floatValue)
		return floatValue
	}
	return defaultValue
}

func getEnvDuration(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
