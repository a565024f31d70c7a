package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment keys for secrets that should stay out of the config file.
const (
	EnvTelegramToken  = "MEETBOT_TELEGRAM_TOKEN"
	EnvCalDAVPassword = "MEETBOT_CALDAV_PASSWORD"
	EnvIMAPPassword   = "MEETBOT_IMAP_PASSWORD"
)

// applyEnv overlays secrets from the environment onto cfg. A .env file
// next to the working directory is honored but never overrides real
// environment variables.
func applyEnv(cfg *Config) {
	_ = godotenv.Load()

	if v := os.Getenv(EnvTelegramToken); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv(EnvCalDAVPassword); v != "" {
		cfg.Source.CalDAV.Password = v
	}
	if v := os.Getenv(EnvIMAPPassword); v != "" {
		cfg.Source.IMAP.Password = v
	}
}
