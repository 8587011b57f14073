package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/speech-flow/internal/flow"
)

// Config holds all configuration for the speech flow service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Flow control configuration
	StallThresholdMs     int      `envconfig:"STALL_THRESHOLD_MS" default:"700"`                    // Silence in ms before a stall fires
	FillerPhrases        []string `envconfig:"FILLER_PHRASES" default:"um,let me think,hmm"`        // Ordered filler rotation
	EnableFillers        bool     `envconfig:"ENABLE_FILLERS" default:"true"`                       // Whether stalls may emit fillers
	MaxFillersPerSession int      `envconfig:"MAX_FILLERS_PER_SESSION" default:"3"`                 // Cap on fillers per session
	BufferCapacity       int      `envconfig:"BUFFER_CAPACITY" default:"10"`                        // Trailing window of retained units

	// Text cleanup configuration
	EnableTextCleanup bool `envconfig:"ENABLE_TEXT_CLEANUP" default:"true"` // Clean inbound units before flow control

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration values are usable
func (c *Config) Validate() error {
	if c.StallThresholdMs <= 0 {
		return fmt.Errorf("STALL_THRESHOLD_MS must be positive, got %d", c.StallThresholdMs)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("BUFFER_CAPACITY must be positive, got %d", c.BufferCapacity)
	}
	if c.MaxFillersPerSession < 0 {
		return fmt.Errorf("MAX_FILLERS_PER_SESSION must not be negative, got %d", c.MaxFillersPerSession)
	}
	if c.EnableFillers && len(c.FillerPhrases) == 0 {
		return fmt.Errorf("FILLER_PHRASES must not be empty when fillers are enabled")
	}
	return nil
}

// FlowConfig maps the service configuration to an orchestrator configuration
func (c *Config) FlowConfig() *flow.Config {
	return &flow.Config{
		StallThreshold:       time.Duration(c.StallThresholdMs) * time.Millisecond,
		FillerPhrases:        c.FillerPhrases,
		EnableFillers:        c.EnableFillers,
		MaxFillersPerSession: c.MaxFillersPerSession,
		BufferCapacity:       c.BufferCapacity,
	}
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
