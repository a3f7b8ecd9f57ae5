package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Issuer     string        // Optional: issuer claim for session tokens (default: clinic)
	SessionTTL time.Duration // Optional: lifetime of a session token (default: 8h)

	DatabaseDriver string // Optional: sqlite or postgres (default: sqlite)
	DatabaseFile   string // Optional: path to SQLite database file (default: ./clinic.db)
	DatabaseURL    string // Required with postgres: connection string
	PepperFile     string // Optional: path to file containing pepper for password hashing (default: ./pepper)

	Bootstrap         bool   // Optional: create a super_admin on startup when none is active (default: true)
	BootstrapUsername string // Optional: initial super_admin username (default: superadmin)
	BootstrapPassword string // Optional: initial super_admin password, generated and logged once when empty
	BootstrapEmail    string // Optional: initial super_admin email (default: <username>@localhost)

	BackupDir     string         // Optional: directory of database snapshots (default: ./backups)
	SweepSchedule string         // Optional: cron schedule of the completion sweep (default: @every 15m)
	Location      *time.Location // Optional: office time zone from CLINIC_TIMEZONE (default: local)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

// LoadConfig reads the environment, after merging a .env file from the
// working directory if there is one. Real environment variables win.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := Config{
		Issuer:     getEnvOrDefault("CLINIC_ISSUER", "clinic"),
		SessionTTL: getEnvDurationOrDefault("CLINIC_SESSION_TTL", 8*time.Hour),

		DatabaseDriver: getEnvOrDefault("CLINIC_DATABASE_DRIVER", "sqlite"),
		DatabaseFile:   getEnvOrDefault("CLINIC_DATABASE_FILE", "clinic.db"),
		DatabaseURL:    os.Getenv("CLINIC_DATABASE_URL"),
		PepperFile:     getEnvOrDefault("CLINIC_PEPPER_FILE", "pepper"),

		Bootstrap:         getEnvBoolOrDefault("CLINIC_BOOTSTRAP", true),
		BootstrapUsername: os.Getenv("CLINIC_BOOTSTRAP_USERNAME"),
		BootstrapPassword: os.Getenv("CLINIC_BOOTSTRAP_PASSWORD"),
		BootstrapEmail:    os.Getenv("CLINIC_BOOTSTRAP_EMAIL"),

		BackupDir:     getEnvOrDefault("CLINIC_BACKUP_DIR", "backups"),
		SweepSchedule: os.Getenv("CLINIC_SWEEP_SCHEDULE"),
		Location:      time.Local,

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	// An unknown zone keeps the local one; New logs the fallback.
	if tz := os.Getenv("CLINIC_TIMEZONE"); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			cfg.Location = loc
		}
	}

	return cfg
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
