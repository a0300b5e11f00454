package app

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIBaseURL        string `yaml:"api_base_url"`
	AccessToken       string `yaml:"access_token"`
	UserID            string `yaml:"user_id"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
}

func DefaultConfig() Config {
	return Config{
		APIBaseURL:        "http://localhost:8000",
		RequestTimeoutSec: 60,
	}
}

// LoadConfig reads the YAML config at path, layering a local .env file and
// DOCDASH_* environment variables on top. A missing file yields defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	// Best-effort: a .env in the working directory is a dev convenience.
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv("DOCDASH_API_URL"); v != "" {
		cfg.APIBaseURL = v
	}
	if v := os.Getenv("DOCDASH_TOKEN"); v != "" {
		cfg.AccessToken = v
	}
	if v := os.Getenv("DOCDASH_USER_ID"); v != "" {
		cfg.UserID = v
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "http://localhost:8000"
	}
	if cfg.RequestTimeoutSec <= 0 {
		cfg.RequestTimeoutSec = 60
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if path == "" {
		return errors.New("no path provided for config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func DefaultConfigPath() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "docdash", "config.yml")
}
