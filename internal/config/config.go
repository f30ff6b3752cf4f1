package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for the web app and its bot.
type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	SessionSecret  string
	SessionTTL     time.Duration
	SecureCookies  bool
	TelegramToken  string
	DigestTime     string
	DigestInterval time.Duration
	LogLevel       string
	LogFile        string
}

// Load reads configuration from the given .env files (missing ones are
// skipped) and then from environment variables, with sane defaults.
// Variables already set in the environment win over .env values.
func Load(envFiles ...string) (Config, error) {
	for _, file := range envFiles {
		if file == "" {
			continue
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	cfg := Config{
		HTTPAddr:       strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		SessionSecret:  strings.TrimSpace(os.Getenv("SESSION_SECRET")),
		SessionTTL:     parseHours(strings.TrimSpace(os.Getenv("SESSION_TTL_HOURS"))),
		SecureCookies:  parseBool(os.Getenv("SECURE_COOKIES")),
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DigestTime:     strings.TrimSpace(os.Getenv("DIGEST_TIME")),
		DigestInterval: parseHours(strings.TrimSpace(os.Getenv("DIGEST_INTERVAL_HOURS"))),
		LogLevel:       strings.TrimSpace(os.Getenv("LOG_LEVEL")),
		LogFile:        strings.TrimSpace(os.Getenv("LOG_FILE")),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8000"
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "workdesk.db?_foreign_keys=on"
	}

	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 14 * 24 * time.Hour
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.DigestTime != "" {
		if err := validateClock(cfg.DigestTime); err != nil {
			return cfg, fmt.Errorf("DIGEST_TIME: %w", err)
		}
	}

	return cfg, nil
}

func parseHours(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseBool(raw string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && v
}

func validateClock(value string) error {
	if _, err := time.Parse("15:04", value); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM", value)
	}
	return nil
}
