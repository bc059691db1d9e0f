package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type BotConfig struct {
	DiscordToken    string
	DatabaseURL     string
	DefaultPrefix   string
	TradeSweepEvery string
	InterestCron    string
	UseMemoryStore  bool
}

type WebConfig struct {
	Addr                string
	DatabaseURL         string
	DiscordClientID     string
	DiscordClientSecret string
	OAuthRedirectURL    string
	JWTSecret           string
	SessionTTL          time.Duration
}

type CTLConfig struct {
	DatabaseURL string
}

// loadDotenv pulls in a .env file when present; a missing file is not
// an error.
func loadDotenv() {
	_ = godotenv.Load()
}

func LoadBotFromEnv() (BotConfig, error) {
	loadDotenv()
	cfg := BotConfig{
		DiscordToken:    strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DefaultPrefix:   envDefault("BRONX_DEFAULT_PREFIX", "."),
		TradeSweepEvery: envDefault("BRONX_TRADE_SWEEP_CRON", "@every 1m"),
		InterestCron:    envDefault("BRONX_INTEREST_CRON", "0 0 * * *"),
		UseMemoryStore:  envBoolDefault("BRONX_MEMORY_STORE", false),
	}
	if cfg.DiscordToken == "" {
		return cfg, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" && !cfg.UseMemoryStore {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadWebFromEnv() (WebConfig, error) {
	loadDotenv()
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("BRONX_WEB_ADDR", ":8080")
	}

	cfg := WebConfig{
		Addr:                addr,
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DiscordClientID:     strings.TrimSpace(os.Getenv("DISCORD_CLIENT_ID")),
		DiscordClientSecret: strings.TrimSpace(os.Getenv("DISCORD_CLIENT_SECRET")),
		OAuthRedirectURL:    strings.TrimRight(strings.TrimSpace(os.Getenv("BRONX_OAUTH_REDIRECT_URL")), "/"),
		JWTSecret:           strings.TrimSpace(os.Getenv("BRONX_JWT_SECRET")),
		SessionTTL:          envDurationDefault("BRONX_SESSION_TTL", 24*time.Hour),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.DiscordClientID == "" || cfg.DiscordClientSecret == "" {
		return cfg, fmt.Errorf("DISCORD_CLIENT_ID and DISCORD_CLIENT_SECRET are required")
	}
	if cfg.OAuthRedirectURL == "" {
		return cfg, fmt.Errorf("BRONX_OAUTH_REDIRECT_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("BRONX_JWT_SECRET is required")
	}
	return cfg, nil
}

func LoadCTLFromEnv() (CTLConfig, error) {
	loadDotenv()
	cfg := CTLConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
