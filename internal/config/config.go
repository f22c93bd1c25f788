package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"accounting-engine/internal/logger"
)

// Config is read from the environment. cmd/ mains call godotenv.Load first so a
// local .env file can supply the values.
type Config struct {
	DatabaseURL   string
	DBMaxConns    int32
	DBLockTimeout time.Duration

	ServerPort     string
	AllowedOrigins string

	// RedisAddr enables the partner balance read cache when set.
	RedisAddr       string
	BalanceCacheTTL time.Duration

	LogLevel  string
	LogFormat string
	LogOutput string
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", ""),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		LogOutput:      getEnv("LOG_OUTPUT", "stdout"),
	}

	var err error
	if cfg.DBLockTimeout, err = getDuration("DB_LOCK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.BalanceCacheTTL, err = getDuration("BALANCE_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}
	maxConns, err := strconv.Atoi(getEnv("DB_MAX_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	cfg.DBMaxConns = int32(maxConns)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("SERVER_PORT must be numeric, got %q", c.ServerPort)
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1")
	}
	if c.DBLockTimeout < 0 {
		return fmt.Errorf("DB_LOCK_TIMEOUT cannot be negative")
	}
	return nil
}

// LoggerConfig returns the logger configuration derived from c
func (c *Config) LoggerConfig() logger.LogConfig {
	cfg := logger.DefaultConfig()
	cfg.Level = c.LogLevel
	cfg.Format = c.LogFormat
	cfg.Output = c.LogOutput
	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
