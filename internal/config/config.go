package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string
	LogLevel  string

	// External collaborators; empty disables the integration
	GeocoderURL   string
	NotifyWebhook string

	// Detection tunables
	SpeedWindow       time.Duration
	SampleInterval    time.Duration
	DrivingThreshold  float64 // m/s
	ReconnectGrace    time.Duration
	ValidationTimeout time.Duration
	SnapshotTTL       time.Duration
}

// Load reads configuration from the environment, with an optional .env
// file for local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:      envString("PORT", ":8080"),
		DBPath:    envString("DB_PATH", "./data/parking.db"),
		JWTSecret: envString("JWT_SECRET", "change-me-in-production"),
		LogLevel:  envString("LOG_LEVEL", "info"),

		GeocoderURL:   envString("GEOCODER_URL", ""),
		NotifyWebhook: envString("NOTIFY_WEBHOOK", ""),

		SpeedWindow:       envDuration("SPEED_WINDOW", 600*time.Second),
		SampleInterval:    envDuration("SAMPLE_INTERVAL", 5*time.Second),
		DrivingThreshold:  envFloat("DRIVING_THRESHOLD_MPS", 6.7056),
		ReconnectGrace:    envDuration("RECONNECT_GRACE", 30*time.Second),
		ValidationTimeout: envDuration("VALIDATION_TIMEOUT", 20*time.Second),
		SnapshotTTL:       envDuration("SNAPSHOT_TTL", 2*time.Hour),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
