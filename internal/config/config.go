package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"client-profile-service/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Default returns the configuration used when no file or override sets a value
func Default() *models.Config {
	return &models.Config{
		Server: models.ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: models.StoreConfig{
			Driver: "sqlite",
			DSN:    "profiles.db",
		},
		LLM: models.LLMConfig{
			Provider: "openai",
			Model:    "gpt-4",
			Timeout:  60 * time.Second,
		},
		Email: models.EmailConfig{
			RefreshTime: time.Minute,
			MailBox:     "INBOX",
			Lookback:    24 * time.Hour,
		},
		Logging: models.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the configuration from the specified YAML file on top of the defaults,
// then applies .env and environment overrides. A missing file is not an error.
func Load(filepath string) (*models.Config, error) {
	cfg := Default()

	configFile, err := os.ReadFile(filepath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(configFile, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", filepath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", filepath, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	applyEnv(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *models.Config) {
	overrides := []struct {
		key    string
		target *string
	}{
		{"OPENAI_API_KEY", &cfg.LLM.APIKey},
		{"OPENAI_BASE_URL", &cfg.LLM.BaseURL},
		{"LLM_MODEL", &cfg.LLM.Model},
		{"STORE_DRIVER", &cfg.Store.Driver},
		{"DATABASE_URL", &cfg.Store.DSN},
		{"LISTEN_ADDR", &cfg.Server.Addr},
		{"LOG_LEVEL", &cfg.Logging.Level},
		{"IMAP_PASSWORD", &cfg.Email.Password},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the configuration for values the service cannot run with
func Validate(cfg *models.Config) error {
	switch cfg.Store.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported store driver %q (use sqlite or postgres)", cfg.Store.Driver)
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if cfg.LLM.Provider != "openai" {
		return fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
	if cfg.Pipeline.ClassifyMaxChars < 0 {
		return fmt.Errorf("pipeline.classifyMaxChars must not be negative")
	}
	if cfg.Email.Enabled {
		if cfg.Email.Imap == "" || cfg.Email.Login == "" {
			return fmt.Errorf("email.imap and email.login are required when email.enabled is set")
		}
		if cfg.Email.RefreshTime <= 0 {
			return fmt.Errorf("email.refreshTime must be positive")
		}
	}
	return nil
}
