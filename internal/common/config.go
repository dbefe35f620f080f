package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all validator configuration
type Config struct {
	Templates TemplatesConfig
	QR        QRConfig
	Compare   CompareConfig
	Enrich    EnrichConfig
}

// TemplatesConfig holds template-store configuration
type TemplatesConfig struct {
	Dir string
}

// QRConfig holds QR extraction configuration
type QRConfig struct {
	Scales   []float64
	MaxPages int
}

// CompareConfig holds comparator configuration
type CompareConfig struct {
	// AmountTolerance is the absolute difference (in currency units) still
	// treated as a match between QR and text amounts.
	AmountTolerance float64
}

// EnrichConfig holds receipt-lookup enrichment configuration
type EnrichConfig struct {
	Timeout  time.Duration
	Disabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Templates: TemplatesConfig{
			Dir: getEnv("VALIDATOR_TEMPLATES_DIR", ""),
		},
		QR: QRConfig{
			Scales:   getEnvAsFloats("VALIDATOR_QR_SCALES", nil),
			MaxPages: getEnvAsInt("VALIDATOR_QR_MAX_PAGES", 0),
		},
		Compare: CompareConfig{
			AmountTolerance: getEnvAsFloat64("VALIDATOR_AMOUNT_TOLERANCE", 1.0),
		},
		Enrich: EnrichConfig{
			Timeout:  getEnvAsDuration("VALIDATOR_ENRICH_TIMEOUT", 8*time.Second),
			Disabled: getEnvAsBool("VALIDATOR_ENRICH_DISABLED", false),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsFloats parses a comma-separated list of floats, e.g. "1.4,1.8,2.2".
func getEnvAsFloats(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Templates.Dir == "" {
		return NewAppError("CONFIG_ERROR", "VALIDATOR_TEMPLATES_DIR is required", ErrInvalidInput)
	}
	if c.Compare.AmountTolerance < 0 {
		return NewAppError("CONFIG_ERROR", "VALIDATOR_AMOUNT_TOLERANCE must be >= 0", ErrInvalidInput)
	}
	for _, s := range c.QR.Scales {
		if s <= 0 {
			return NewAppError("CONFIG_ERROR", "VALIDATOR_QR_SCALES entries must be > 0", ErrInvalidInput)
		}
	}
	return nil
}
