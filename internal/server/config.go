// config.go - Startup configuration loading and validation.
//
// Everything is read from the environment and validated once at boot so the
// process fails fast with an aggregated message instead of dying mid-request.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents one invalid setting.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator accumulates validation errors across settings.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateRequired validates that a required environment variable is set.
func (v *ConfigValidator) ValidateRequired(key string) string {
	value := os.Getenv(key)
	if value == "" {
		v.AddError(key, "required environment variable not set")
	}
	return value
}

// ValidatePositiveInt parses a positive integer, returning def when unset.
func (v *ConfigValidator) ValidatePositiveInt(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		v.AddError(key, "must be a valid integer")
		return def
	}
	if n <= 0 {
		v.AddError(key, "must be a positive integer")
		return def
	}
	return n
}

// ValidateDuration parses a time.Duration, returning def when unset.
func (v *ConfigValidator) ValidateDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g. 24h, 30m)")
		return def
	}
	if d <= 0 {
		v.AddError(key, "must be a positive duration")
		return def
	}
	return d
}

// AppConfig is everything main needs to assemble the process.
type AppConfig struct {
	Addr string

	DatabaseURL string

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	Bucket      string

	MaxUploadBytes int64
	TTL            time.Duration
	MaxDownloads   int

	RateLimit float64
	RateBurst int
}

// LoadAppConfig reads and validates the full configuration surface.
func LoadAppConfig() (AppConfig, error) {
	v := NewConfigValidator()

	cfg := AppConfig{
		Addr:        getenvDefault("HEXDROP_ADDR", ":8080"),
		DatabaseURL: v.ValidateRequired("DATABASE_URL"),
		S3Endpoint:  v.ValidateRequired("HEXDROP_S3_ENDPOINT"),
		S3AccessKey: v.ValidateRequired("HEXDROP_S3_ACCESS_KEY"),
		S3SecretKey: v.ValidateRequired("HEXDROP_S3_SECRET_KEY"),
		Bucket:      v.ValidateRequired("HEXDROP_BUCKET"),

		MaxUploadBytes: v.ValidatePositiveInt("HEXDROP_MAX_UPLOAD_BYTES", 2<<30),
		TTL:            v.ValidateDuration("HEXDROP_TTL", 24*time.Hour),
		MaxDownloads:   int(v.ValidatePositiveInt("HEXDROP_MAX_DOWNLOADS", 1)),

		RateLimit: float64(v.ValidatePositiveInt("HEXDROP_RATE_LIMIT", 5)),
		RateBurst: int(v.ValidatePositiveInt("HEXDROP_RATE_BURST", 10)),
	}

	if v.HasErrors() {
		return AppConfig{}, fmt.Errorf("%s", v.ErrorString())
	}
	return cfg, nil
}

// getenvDefault reads an environment variable with a fallback.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
