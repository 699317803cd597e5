package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config holds all application configuration
type Config struct {
	// Server
	Port int
	Env  string

	// Logging: debug, info, warn, error
	LogLevel string

	// Start-tasks file read when no path is given. Empty means the file
	// next to the executable.
	StartTasks string

	// Routine file holding the task_routine toggles
	RoutineFile string

	// Maximum concurrent extractions for multi-file scans
	Concurrency int

	// Directory searched for .phasescan.yaml by the server
	ProjectDir string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		Env:         getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		StartTasks:  getEnv("PHASESCAN_START_TASKS", ""),
		RoutineFile: getEnv("PHASESCAN_ROUTINE_FILE", "phasescan.routine.yaml"),
		Concurrency: getEnvInt("PHASESCAN_CONCURRENCY", 4),
		ProjectDir:  getEnv("PHASESCAN_PROJECT_DIR", "."),
	}

	return cfg, nil
}

// Validate checks if the configuration is usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("PHASESCAN_CONCURRENCY must not be negative, got %d", c.Concurrency)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}

	return nil
}

// Level returns the configured log level, falling back to info
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// IsProduction reports whether console logging should be disabled
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ApplyProject overlays values from a project file. Environment values win
// over the project file when both are set.
func (c *Config) ApplyProject(p *ProjectConfig) {
	if p == nil {
		return
	}
	if c.StartTasks == "" {
		c.StartTasks = p.StartTasks
	}
	if os.Getenv("PHASESCAN_ROUTINE_FILE") == "" && p.RoutineFile != "" {
		c.RoutineFile = p.RoutineFile
	}
	if os.Getenv("PHASESCAN_CONCURRENCY") == "" && p.Concurrency != 0 {
		c.Concurrency = p.Concurrency
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
