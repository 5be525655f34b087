package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"goattrib/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Limits   LimitsConfig
	Model    ModelConfig
	LogLevel string
}

// DatabaseConfig holds database connection settings. An empty URL disables
// fit-run history.
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port        string
	GinMode     string
	CORSOrigins []string
}

// LimitsConfig bounds memory and CPU per request
type LimitsConfig struct {
	MaxRows             int
	MaxUploadBytes      int64
	MaxBootstrapSamples int
	// SessionIdleTTL evicts sessions unused for this long; 0 keeps them forever
	SessionIdleTTL time.Duration
}

// ModelConfig holds fitting defaults
type ModelConfig struct {
	BootstrapWorkers int
	BootstrapSeed    int64
	VIFThreshold     float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Server:   *loadServerConfig(),
		Limits:   *loadLimitsConfig(),
		Model:    *loadModelConfig(),
		LogLevel: getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

// Default returns the configuration used when no environment is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			GinMode:     "release",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Limits: LimitsConfig{
			MaxRows:             100000,
			MaxUploadBytes:      10 << 20,
			MaxBootstrapSamples: 5000,
			SessionIdleTTL:      24 * time.Hour,
		},
		Model: ModelConfig{
			BootstrapWorkers: runtime.GOMAXPROCS(0),
			BootstrapSeed:    42,
			VIFThreshold:     10,
		},
		LogLevel: "INFO",
	}
}

func loadServerConfig() *ServerConfig {
	def := Default().Server
	return &ServerConfig{
		Port:        getEnvOrDefault("PORT", def.Port),
		GinMode:     getEnvOrDefault("GIN_MODE", def.GinMode),
		CORSOrigins: getEnvListOrDefault("CORS_ORIGINS", def.CORSOrigins),
	}
}

func loadLimitsConfig() *LimitsConfig {
	def := Default().Limits
	return &LimitsConfig{
		MaxRows:             getEnvIntOrDefault("MAX_ROWS", def.MaxRows),
		MaxUploadBytes:      int64(getEnvIntOrDefault("MAX_UPLOAD_MB", int(def.MaxUploadBytes>>20))) << 20,
		MaxBootstrapSamples: getEnvIntOrDefault("MAX_BOOTSTRAP_SAMPLES", def.MaxBootstrapSamples),
		SessionIdleTTL:      time.Duration(getEnvIntOrDefault("SESSION_TTL_MINUTES", int(def.SessionIdleTTL/time.Minute))) * time.Minute,
	}
}

func loadModelConfig() *ModelConfig {
	def := Default().Model
	return &ModelConfig{
		BootstrapWorkers: getEnvIntOrDefault("BOOTSTRAP_WORKERS", def.BootstrapWorkers),
		BootstrapSeed:    int64(getEnvIntOrDefault("BOOTSTRAP_SEED", int(def.BootstrapSeed))),
		VIFThreshold:     getEnvFloatOrDefault("VIF_THRESHOLD", def.VIFThreshold),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT is required")
	}
	if config.Limits.MaxRows < 10 {
		return errors.ConfigInvalid("MAX_ROWS must be at least 10")
	}
	if config.Limits.MaxUploadBytes <= 0 {
		return errors.ConfigInvalid("MAX_UPLOAD_MB must be positive")
	}
	if config.Limits.MaxBootstrapSamples < 0 {
		return errors.ConfigInvalid("MAX_BOOTSTRAP_SAMPLES cannot be negative")
	}
	if config.Limits.SessionIdleTTL < 0 {
		return errors.ConfigInvalid("SESSION_TTL_MINUTES cannot be negative")
	}
	if config.Model.BootstrapWorkers < 1 {
		return errors.ConfigInvalid("BOOTSTRAP_WORKERS must be at least 1")
	}
	if config.Model.VIFThreshold <= 1 {
		return errors.ConfigInvalid("VIF_THRESHOLD must be greater than 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
