// Package config loads and validates the application configuration from
// environment variables.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

const DefaultHubeauBaseURL = "https://hubeau.eaufrance.fr/api/v1/qualite_eau_potable"

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	HubeauBaseURL  string
	HubeauTimeout  time.Duration
	HubeauRate     float64 // Outbound requests per second
	HubeauPageSize int

	PostalMappingFile string
	CacheDir          string
	CacheTTL          time.Duration // Age under which a cached response is served without refetch
	CacheRetention    time.Duration // Age after which cached responses are purged
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		LogLevel:          strings.ToLower(getEnvWithDefault("LOG_LEVEL", "info")),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB

		HubeauBaseURL:  strings.TrimRight(getEnvWithDefault("HUBEAU_BASE_URL", DefaultHubeauBaseURL), "/"),
		HubeauTimeout:  getDurationEnvWithDefault("HUBEAU_TIMEOUT", 30*time.Second),
		HubeauRate:     getFloatEnvWithDefault("HUBEAU_RATE", 5),
		HubeauPageSize: getIntEnvWithDefault("HUBEAU_PAGE_SIZE", 1000),

		PostalMappingFile: getEnvWithDefault("POSTAL_MAPPING_FILE", "postal_to_insee.json"),
		CacheDir:          getEnvWithDefault("CACHE_DIR", filepath.Join("data", "resultats")),
		CacheTTL:          getDurationEnvWithDefault("CACHE_TTL", 12*time.Hour),
		CacheRetention:    getDurationEnvWithDefault("CACHE_RETENTION", 30*24*time.Hour),
	}

	env, err := ParseEnvironment(getEnvWithDefault("ENV", string(EnvDevelopment)))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}
	cfg.Env = env

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ParseEnvironment accepts the short names and their long aliases.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	case "":
		return EnvDevelopment, fmt.Errorf("ENV cannot be empty")
	}
	return EnvDevelopment, fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", s)
}

func (e Environment) String() string {
	return string(e)
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// ListenAddr is the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, c.Port)
}

func validateConfig(cfg *Config) error {
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}
	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}
	if err := validateBaseURL(cfg.HubeauBaseURL); err != nil {
		return fmt.Errorf("invalid HUBEAU_BASE_URL: %w", err)
	}
	if err := validateTimeout(cfg.HubeauTimeout); err != nil {
		return fmt.Errorf("invalid HUBEAU_TIMEOUT: %w", err)
	}
	if err := validateRate(cfg.HubeauRate); err != nil {
		return fmt.Errorf("invalid HUBEAU_RATE: %w", err)
	}
	if err := validatePageSize(cfg.HubeauPageSize); err != nil {
		return fmt.Errorf("invalid HUBEAU_PAGE_SIZE: %w", err)
	}
	if err := validateMappingFile(cfg.PostalMappingFile); err != nil {
		return fmt.Errorf("invalid POSTAL_MAPPING_FILE: %w", err)
	}
	if cfg.CacheDir == "" {
		return fmt.Errorf("invalid CACHE_DIR: cannot be empty")
	}
	if err := validateCacheDurations(cfg.CacheTTL, cfg.CacheRetention); err != nil {
		return fmt.Errorf("invalid CACHE_TTL/CACHE_RETENTION: %w", err)
	}

	return nil
}

func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	if !ip.IsLoopback() && !ip.IsPrivate() && !ip.IsUnspecified() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

func validateLogLevel(logLevel string) error {
	switch logLevel {
	case "debug", "info", "warn", "error":
		return nil
	case "":
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}
	return fmt.Errorf("LOG_LEVEL must be one of: [debug info warn error], got: %s", logLevel)
}

func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 {
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 {
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

func validateMaxLogFileSize(size int64) error {
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("HUBEAU_BASE_URL must be a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("HUBEAU_BASE_URL must use http or https, got: %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("HUBEAU_BASE_URL must have a host")
	}
	return nil
}

func validateTimeout(d time.Duration) error {
	if d < time.Second || d > 5*time.Minute {
		return fmt.Errorf("HUBEAU_TIMEOUT must be between 1s and 5m, got: %s", d)
	}
	return nil
}

func validateRate(rate float64) error {
	if rate <= 0 || rate > 50 {
		return fmt.Errorf("HUBEAU_RATE must be in (0, 50] requests per second, got: %g", rate)
	}
	return nil
}

// Hub'Eau rejects pages larger than 20000 rows.
func validatePageSize(size int) error {
	if size < 1 || size > 20000 {
		return fmt.Errorf("HUBEAU_PAGE_SIZE must be between 1 and 20000, got: %d", size)
	}
	return nil
}

func validateMappingFile(path string) error {
	if path == "" {
		return fmt.Errorf("POSTAL_MAPPING_FILE cannot be empty")
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".csv":
		return nil
	}
	return fmt.Errorf("POSTAL_MAPPING_FILE must be a .json or .csv file, got: %s", path)
}

func validateCacheDurations(ttl, retention time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive, got: %s", ttl)
	}
	if retention < ttl {
		return fmt.Errorf("CACHE_RETENTION (%s) must not be shorter than CACHE_TTL (%s)", retention, ttl)
	}
	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getFloatEnvWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault accepts Go durations ("90s", "12h").
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"HUBEAU_BASE_URL",
		"HUBEAU_TIMEOUT",
		"HUBEAU_RATE",
		"HUBEAU_PAGE_SIZE",
		"POSTAL_MAPPING_FILE",
		"CACHE_DIR",
		"CACHE_TTL",
		"CACHE_RETENTION",
	}
}
