// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// JWT Authentication
	JWTSecret string `koanf:"jwt_secret"`

	// Question storage. Empty DatabaseURL selects the in-memory repository.
	DatabaseURL string `koanf:"database_url"`

	// Leaderboard backend. Empty RedisAddr selects the in-memory store.
	RedisAddr           string `koanf:"redis_addr"`
	RedisLeaderboardKey string `koanf:"redis_leaderboard_key"`

	// Embedding oracle
	EmbeddingURL string `koanf:"embedding_url"`

	// Reference-record cache
	CacheTTLSeconds int  `koanf:"cache_ttl_seconds"`
	CacheCapacity   int  `koanf:"cache_capacity"`
	WarmCache       bool `koanf:"warm_cache"`

	// Nearby-players window on the user rank endpoint
	NeighborsAbove int `koanf:"neighbors_above"`
	NeighborsBelow int `koanf:"neighbors_below"`

	// Score reporting from evaluations to the leaderboard
	ReportScores bool `koanf:"report_scores"`

	// CORS allowlist, comma-separated origins. Empty disables CORS.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	OTLPEndpoint        string  `koanf:"otlp_endpoint"`
}

// TracingInsecure reports whether the OTLP connection may skip TLS.
// Only production environments require TLS.
func (c *Config) TracingInsecure() bool {
	return c.Env != "production"
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret     = errors.New("JWT_SECRET is required")
	ErrMissingEmbeddingURL  = errors.New("EMBEDDING_URL is required")
	ErrInvalidPort          = errors.New("PORT must be a valid integer")
	ErrInvalidCacheTTL      = errors.New("CACHE_TTL_SECONDS must be positive")
	ErrInvalidCacheCapacity = errors.New("CACHE_CAPACITY must be positive")
	ErrInvalidNeighbors     = errors.New("NEIGHBORS_ABOVE and NEIGHBORS_BELOW must not be negative")
	ErrMissingOTLPEndpoint  = errors.New("OTLP_ENDPOINT is required when tracing is enabled")
	ErrInvalidSamplingRate  = errors.New("TRACING_SAMPLING_RATE must be between 0 and 1")
	ErrInvalidExporter      = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
)

// Default values for non-secret configuration.
const (
	DefaultPort                = 8080
	DefaultEnv                 = "development"
	DefaultRedisLeaderboardKey = "tonequest:leaderboard"
	DefaultCacheTTLSeconds     = 300
	DefaultCacheCapacity       = 1024
	DefaultNeighborsAbove      = 25
	DefaultNeighborsBelow      = 24
	DefaultWarmCache           = true
	DefaultReportScores        = true
	DefaultTracingExporter     = "otlp-http"
	DefaultSamplingRate        = 1.0
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// YAML file first, at lower precedence than env vars.
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefault("PORT", k.Int("port"), DefaultPort, ErrInvalidPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	cacheTTL, err := getEnvIntOrDefault("CACHE_TTL_SECONDS", k.Int("cache_ttl_seconds"), DefaultCacheTTLSeconds, ErrInvalidCacheTTL)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	cacheCapacity, err := getEnvIntOrDefault("CACHE_CAPACITY", k.Int("cache_capacity"), DefaultCacheCapacity, ErrInvalidCacheCapacity)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	neighborsAbove, err := getEnvIntOrDefault("NEIGHBORS_ABOVE", k.Int("neighbors_above"), DefaultNeighborsAbove, ErrInvalidNeighbors)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	neighborsBelow, err := getEnvIntOrDefault("NEIGHBORS_BELOW", k.Int("neighbors_below"), DefaultNeighborsBelow, ErrInvalidNeighbors)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	samplingRate, err := getEnvFloatOrDefault("TRACING_SAMPLING_RATE", k.Float64("tracing_sampling_rate"), DefaultSamplingRate, ErrInvalidSamplingRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefault("ENV", k.String("env"), DefaultEnv),
		JWTSecret:           getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:           getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisLeaderboardKey: getEnvOrDefault("REDIS_LEADERBOARD_KEY", k.String("redis_leaderboard_key"), DefaultRedisLeaderboardKey),
		EmbeddingURL:        getEnvOrKoanf("EMBEDDING_URL", k, "embedding_url"),
		CacheTTLSeconds:     cacheTTL,
		CacheCapacity:       cacheCapacity,
		WarmCache:           getEnvBoolOrDefault("WARM_CACHE", k, "warm_cache", DefaultWarmCache),
		NeighborsAbove:      neighborsAbove,
		NeighborsBelow:      neighborsBelow,
		ReportScores:        getEnvBoolOrDefault("REPORT_SCORES", k, "report_scores", DefaultReportScores),
		CORSAllowedOrigins:  getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
		TracingEnabled:      getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingSamplingRate: samplingRate,
		OTLPEndpoint:        getEnvOrKoanf("OTLP_ENDPOINT", k, "otlp_endpoint"),
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns sentinel wrapped in a parse error if the environment variable is set but not an integer.
// A zero value in the YAML file falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int, sentinel error) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s=%q is not an integer: %w", envKey, val, sentinel)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns sentinel wrapped in a parse error if the environment variable is set but not a number.
// A zero value in the YAML file falls back to the default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64, sentinel error) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s=%q is not a number: %w", envKey, val, sentinel)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault returns the environment variable as bool if set, otherwise the koanf value, or default.
// Accepts true/1/yes/on and false/0/no/off; anything else keeps the prior value.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) bool {
	result := defaultVal
	if k.Exists(koanfKey) {
		result = k.Bool(koanfKey)
	}
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			result = true
		case "false", "0", "no", "off":
			result = false
		}
	}
	return result
}

// getEnvListOrKoanf returns the environment variable split on commas if set,
// otherwise the koanf string slice.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		parts := strings.Split(val, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.EmbeddingURL == "" {
		errs = append(errs, ErrMissingEmbeddingURL)
	}
	if c.CacheTTLSeconds <= 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}
	if c.CacheCapacity <= 0 {
		errs = append(errs, ErrInvalidCacheCapacity)
	}
	if c.NeighborsAbove < 0 || c.NeighborsBelow < 0 {
		errs = append(errs, ErrInvalidNeighbors)
	}
	if c.TracingEnabled {
		if c.OTLPEndpoint == "" {
			errs = append(errs, ErrMissingOTLPEndpoint)
		}
		if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
			errs = append(errs, ErrInvalidExporter)
		}
	}
	if c.TracingSamplingRate < 0 || c.TracingSamplingRate > 1 {
		errs = append(errs, ErrInvalidSamplingRate)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  fmt.Sprintf("%d", c.Port),
		"env":                   c.Env,
		"jwt_secret":            maskSecret(c.JWTSecret),
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_addr":            orNotSet(c.RedisAddr),
		"redis_leaderboard_key": c.RedisLeaderboardKey,
		"embedding_url":         orNotSet(c.EmbeddingURL),
		"cache_ttl_seconds":     fmt.Sprintf("%d", c.CacheTTLSeconds),
		"cache_capacity":        fmt.Sprintf("%d", c.CacheCapacity),
		"warm_cache":            fmt.Sprintf("%t", c.WarmCache),
		"neighbors_above":       fmt.Sprintf("%d", c.NeighborsAbove),
		"neighbors_below":       fmt.Sprintf("%d", c.NeighborsBelow),
		"report_scores":         fmt.Sprintf("%t", c.ReportScores),
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
		"tracing_enabled":       fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_sampling_rate": strconv.FormatFloat(c.TracingSamplingRate, 'f', -1, 64),
		"otlp_endpoint":         orNotSet(c.OTLPEndpoint),
	}
}

func orNotSet(s string) string {
	if s == "" {
		return "<not set>"
	}
	return s
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
