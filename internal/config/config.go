package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	Worker    WorkerConfig
	DB        DatabaseConfig
	Logging   LoggingConfig
	RateLimit RateLimitConfig
	Triage    TriageConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type DatabaseConfig struct {
	Path string
}

type LoggingConfig struct {
	Level string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type TriageConfig struct {
	// Timezone is the IANA zone whose wall clock drives time sensitivity.
	Timezone         string
	DonorRadiusKm    float64
	SafeZoneRadiusKm float64
	// FamilyRadiusKm bounds the responder family check run on intake.
	FamilyRadiusKm float64
	// GazetteerPath optionally replaces the built-in place table.
	GazetteerPath string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		DB: DatabaseConfig{
			Path: getEnv("DB_PATH", "./data/relief-triage.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		RateLimit: RateLimitConfig{
			RPS:   getEnvFloat("RATE_LIMIT_RPS", 10),
			Burst: getEnvInt("RATE_LIMIT_BURST", 20),
		},
		Triage: TriageConfig{
			Timezone:         getEnv("TRIAGE_TIMEZONE", "Asia/Kolkata"),
			DonorRadiusKm:    getEnvFloat("DONOR_RADIUS_KM", 15),
			SafeZoneRadiusKm: getEnvFloat("SAFE_ZONE_RADIUS_KM", 20),
			FamilyRadiusKm:   getEnvFloat("FAMILY_SAFETY_RADIUS_KM", 10),
			GazetteerPath:    getEnv("GAZETTEER_PATH", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Worker.Count < 1 {
		return fmt.Errorf("worker count must be at least 1")
	}
	if c.Worker.BufferSize < 0 {
		return fmt.Errorf("invalid worker buffer size: %d", c.Worker.BufferSize)
	}

	if c.RateLimit.RPS <= 0 || c.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit must allow at least one request")
	}

	if c.Triage.DonorRadiusKm <= 0 {
		return fmt.Errorf("donor radius must be positive")
	}
	if c.Triage.SafeZoneRadiusKm <= 0 {
		return fmt.Errorf("safe zone radius must be positive")
	}
	if c.Triage.FamilyRadiusKm <= 0 {
		return fmt.Errorf("family safety radius must be positive")
	}

	return nil
}

// istOffset is used when the host has no zoneinfo for the configured zone.
const istOffset = 5*3600 + 30*60

// Location resolves the triage timezone, falling back to a fixed UTC+5:30
// zone so scoring never fails on a host without tzdata.
func (t TriageConfig) Location() *time.Location {
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.FixedZone("IST", istOffset)
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}
