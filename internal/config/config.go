package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for databases (defaults to "./data")
	Port     int
	DevMode  bool
	LogLevel string

	// Recurring sweep job
	SweepEnabled  bool
	SweepSchedule string // cron spec with seconds field

	// Backup and database maintenance jobs
	BackupEnabled       bool
	BackupDir           string // defaults to <DataDir>/backups
	BackupSchedule      string
	MaintenanceSchedule string

	// Allocation defaults applied when a request omits them
	HistoricalResponsibilityYear int
	MaxConvergenceSpeed          float64
	MaxGiniAdjustment            float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "")
	if dataDir == "" {
		if _, err := os.Stat("../data"); err == nil {
			dataDir = "../data"
		} else {
			dataDir = "./data"
		}
	}

	cfg := &Config{
		DataDir:  dataDir,
		Port:     getEnvAsInt("PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SweepEnabled:  getEnvAsBool("SWEEP_ENABLED", true),
		SweepSchedule: getEnv("SWEEP_SCHEDULE", "0 0 3 * * *"), // 3 AM daily

		BackupEnabled:       getEnvAsBool("BACKUP_ENABLED", true),
		BackupDir:           getEnv("BACKUP_DIR", filepath.Join(dataDir, "backups")),
		BackupSchedule:      getEnv("BACKUP_SCHEDULE", "0 0 2 * * *"),      // 2 AM daily
		MaintenanceSchedule: getEnv("MAINTENANCE_SCHEDULE", "0 0 4 * * 0"), // 4 AM Sunday

		HistoricalResponsibilityYear: getEnvAsInt("HISTORICAL_RESPONSIBILITY_YEAR", 1990),
		MaxConvergenceSpeed:          getEnvAsFloat("MAX_CONVERGENCE_SPEED", 0.9),
		MaxGiniAdjustment:            getEnvAsFloat("MAX_GINI_ADJUSTMENT", 0.8),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// DatabasePath returns the path to a named database file under DataDir
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxConvergenceSpeed <= 0 || c.MaxConvergenceSpeed > 1 {
		return fmt.Errorf("max convergence speed must be in (0, 1], got %g", c.MaxConvergenceSpeed)
	}
	if c.MaxGiniAdjustment < 0 || c.MaxGiniAdjustment > 1 {
		return fmt.Errorf("max gini adjustment must be in [0, 1], got %g", c.MaxGiniAdjustment)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
