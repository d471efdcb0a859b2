package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the health assistant gateway.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	DatabaseURL   string
	RedisAddr     string
	RedisUsername string
	RedisPassword string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	AIClientMode    string
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	AIMaxTokens     int
	AIHistoryPairs  int
	UpstreamTimeout time.Duration

	RateLimit  int
	RateWindow time.Duration
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "shifa"),
		DatabaseURL:      stringsTrimSpace("DATABASE_URL"),
		RedisAddr:        stringsTrimSpace("REDIS_ADDR"),
		RedisUsername:    stringsTrimSpace("REDIS_USERNAME"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		JWTSecret:        stringsTrimSpace("JWT_SECRET_KEY"),
		AIClientMode:     envOrDefault("AI_CLIENT_MODE", "auto"),
		GeminiAPIKey:     stringsTrimSpace("GEMINI_API_KEY"),
		GeminiBaseURL:    envOrDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),
		GeminiModel:      envOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		AIMaxTokens:      1000,
		AIHistoryPairs:   3,
		UpstreamTimeout:  30 * time.Second,
		RateLimit:        60,
		RateWindow:       15 * time.Minute,
		ShutdownTimeout:  15 * time.Second,
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("AI_UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.RateWindow, err = durationFromEnv("AI_RATE_WINDOW", cfg.RateWindow)
	if err != nil {
		return Config{}, err
	}
	cfg.AccessTokenTTL, err = durationFromEnv("JWT_ACCESS_TTL", cfg.AccessTokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.RefreshTokenTTL, err = durationFromEnv("JWT_REFRESH_TTL", cfg.RefreshTokenTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AIMaxTokens, err = intFromEnv("AI_MAX_TOKENS", cfg.AIMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.AIHistoryPairs, err = intFromEnv("AI_HISTORY_PAIRS", cfg.AIHistoryPairs)
	if err != nil {
		return Config{}, err
	}
	cfg.RateLimit, err = intFromEnv("AI_RATE_LIMIT", cfg.RateLimit)
	if err != nil {
		return Config{}, err
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if cfg.RateLimit <= 0 {
		return Config{}, fmt.Errorf("AI_RATE_LIMIT must be positive")
	}
	if cfg.RateWindow < time.Second {
		return Config{}, fmt.Errorf("AI_RATE_WINDOW must be at least 1s")
	}
	if cfg.AIMaxTokens <= 0 {
		return Config{}, fmt.Errorf("AI_MAX_TOKENS must be positive")
	}
	if cfg.AIHistoryPairs < 0 {
		return Config{}, fmt.Errorf("AI_HISTORY_PAIRS must be >= 0")
	}
	if cfg.UpstreamTimeout < time.Second {
		return Config{}, fmt.Errorf("AI_UPSTREAM_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}
