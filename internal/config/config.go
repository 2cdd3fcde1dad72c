package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Chat     ChatConfig     `yaml:"chat"`
	Redis    RedisConfig    `yaml:"redis"`
	PayPal   PayPalConfig   `yaml:"paypal"`
	Language LanguageConfig `yaml:"language"`
	Limits   LimitsConfig   `yaml:"limits"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

type AuthConfig struct {
	// Product tier an org must hold, exactly, for tenant-key access.
	// Tiers are names, not an ordered ladder.
	RequiredTier string `yaml:"required_tier"`
}

type ChatConfig struct {
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the generation timeout with a sane floor.
func (c ChatConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 20 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type PayPalConfig struct {
	BaseURL   string `yaml:"base_url"`
	WebhookID string `yaml:"webhook_id"`
}

type LanguageConfig struct {
	// Optional path to a pack file overriding the embedded defaults.
	PacksPath string `yaml:"packs_path"`
}

type LimitsConfig struct {
	MaxCallsPerMinute int `yaml:"max_calls_per_minute"`
	BurstSize         int `yaml:"burst_size"`
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "development"
	}
	if cfg.Auth.RequiredTier == "" {
		cfg.Auth.RequiredTier = "standard"
	}
	if cfg.Chat.Model == "" {
		cfg.Chat.Model = "gemini-2.0-flash"
	}
	if cfg.PayPal.BaseURL == "" {
		cfg.PayPal.BaseURL = "https://api-m.sandbox.paypal.com"
	}
}
