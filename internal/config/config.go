package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var (
	ErrInvalidPort   = errors.New("invalid port")
	ErrInvalidNumber = errors.New("invalid numeric setting")
)

// Config holds process settings, all read from the environment.
type Config struct {
	Port           string
	LogLevel       string
	LogFormat      string
	AllowedOrigins []string

	RedisAddr    string // empty disables the document event feed
	RedisChannel string

	ClientQueueSize int
	WSReadLimit     int64

	StatsSchedule string // cron spec; empty disables the stats job

	ConnectRateRPS   float64 // 0 disables upgrade rate limiting
	ConnectRateBurst int

	SeedFile string
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "3001"),
		LogLevel:       getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:      getEnvOrDefault("LOG_FORMAT", "json"),
		AllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
		RedisAddr:      strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisChannel:   getEnvOrDefault("REDIS_CHANNEL", "collab:documents"),
		StatsSchedule:  getEnvOrDefault("STATS_SCHEDULE", "@every 5m"),
		SeedFile:       strings.TrimSpace(os.Getenv("SEED_FILE")),
	}
	if v, ok := os.LookupEnv("STATS_SCHEDULE"); ok && strings.TrimSpace(v) == "" {
		cfg.StatsSchedule = ""
	}

	var err error
	if cfg.ClientQueueSize, err = getEnvInt("CLIENT_QUEUE_SIZE", 256); err != nil {
		return nil, err
	}
	readLimit, err := getEnvInt("WS_READ_LIMIT", 1<<20)
	if err != nil {
		return nil, err
	}
	cfg.WSReadLimit = int64(readLimit)
	if cfg.ConnectRateRPS, err = getEnvFloat("CONNECT_RATE_RPS", 0); err != nil {
		return nil, err
	}
	if cfg.ConnectRateBurst, err = getEnvInt("CONNECT_RATE_BURST", 10); err != nil {
		return nil, err
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + c.Port }

func validateConfig(cfg *Config) error {
	p, err := strconv.Atoi(cfg.Port)
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("%w: %q", ErrInvalidPort, cfg.Port)
	}
	if cfg.ClientQueueSize < 1 {
		return fmt.Errorf("%w: CLIENT_QUEUE_SIZE must be positive", ErrInvalidNumber)
	}
	if cfg.WSReadLimit < 1 {
		return fmt.Errorf("%w: WS_READ_LIMIT must be positive", ErrInvalidNumber)
	}
	if cfg.ConnectRateRPS < 0 || cfg.ConnectRateBurst < 1 {
		return fmt.Errorf("%w: connect rate settings out of range", ErrInvalidNumber)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, key, val)
	}
	return i, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidNumber, key, val)
	}
	return f, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
