package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Secrets are never written to the settings file; they come from the
// environment, optionally seeded from a .env file.
type Secrets struct {
	BotToken     string
	MirrorAPIKey string
}

// LoadSecrets loads secrets from the environment. envFile is optional;
// when set, it is loaded first (without overriding existing variables).
func LoadSecrets(envFile string) (*Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		// Best effort: a .env next to the binary is common in deployments
		_ = godotenv.Load()
	}

	s := &Secrets{
		BotToken:     os.Getenv("CLIPFETCH_BOT_TOKEN"),
		MirrorAPIKey: os.Getenv("CLIPFETCH_MIRROR_KEY"),
	}
	if s.BotToken == "" {
		return nil, fmt.Errorf("CLIPFETCH_BOT_TOKEN is not set")
	}
	return s, nil
}
