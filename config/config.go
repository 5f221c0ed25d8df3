package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"arena/provider"
)

// Config is the arena.yaml layout.
type Config struct {
	Version    int `yaml:"version"`
	Tournament struct {
		Participants    []string `yaml:"participants"`
		GamesPerPairing int      `yaml:"games_per_pairing"`
	} `yaml:"tournament"`
	Match struct {
		MaxTurns               int `yaml:"max_turns"`
		TimeoutSeconds         int `yaml:"timeout_seconds"`
		DecisionTimeoutSeconds int `yaml:"decision_timeout_seconds"`
	} `yaml:"match"`
	Rating struct {
		LedgerPath    string  `yaml:"ledger_path"`
		KFactor       float64 `yaml:"k_factor"`
		InitialRating float64 `yaml:"initial_rating"`
	} `yaml:"rating"`
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		Temperature float64 `yaml:"temperature"`
	} `yaml:"llm"`
	Dashboard struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"dashboard"`
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported config version: %d", cfg.Version)
	}

	return &cfg, nil
}

// Default returns a usable configuration without a config file.
func Default() *Config {
	return &Config{Version: 1}
}

// GamesPerPairing returns the number of matches per pairing, defaulting to 1.
func (c *Config) GamesPerPairing() int {
	if c.Tournament.GamesPerPairing < 1 {
		return 1
	}
	return c.Tournament.GamesPerPairing
}

// MaxTurns returns the per-match turn cap, defaulting to 200.
func (c *Config) MaxTurns() int {
	if c.Match.MaxTurns < 1 {
		return 200
	}
	return c.Match.MaxTurns
}

// MatchTimeout returns the per-match wall-clock budget, defaulting to 5 minutes.
func (c *Config) MatchTimeout() time.Duration {
	if c.Match.TimeoutSeconds < 1 {
		return 300 * time.Second
	}
	return time.Duration(c.Match.TimeoutSeconds) * time.Second
}

// DecisionTimeout returns the per-decision budget, defaulting to 30 seconds.
func (c *Config) DecisionTimeout() time.Duration {
	if c.Match.DecisionTimeoutSeconds < 1 {
		return 30 * time.Second
	}
	return time.Duration(c.Match.DecisionTimeoutSeconds) * time.Second
}

// LedgerPath returns the rating ledger location, defaulting to elo_ledger.json
// in the working directory.
func (c *Config) LedgerPath() string {
	if c.Rating.LedgerPath == "" {
		return "elo_ledger.json"
	}
	return c.Rating.LedgerPath
}

// KFactor returns the Elo K factor, defaulting to 32.
func (c *Config) KFactor() float64 {
	if c.Rating.KFactor == 0 {
		return 32
	}
	return c.Rating.KFactor
}

// InitialRating returns the starting rating, defaulting to 1500.
func (c *Config) InitialRating() float64 {
	if c.Rating.InitialRating == 0 {
		return 1500
	}
	return c.Rating.InitialRating
}

// DashboardAddr returns the dashboard listen address, defaulting to :8888.
func (c *Config) DashboardAddr() string {
	if c.Dashboard.Addr == "" {
		return ":8888"
	}
	return c.Dashboard.Addr
}

// ModelConfig assembles the shared model-provider settings, pulling the API
// key from the OPENROUTER_API_KEY environment variable.
func (c *Config) ModelConfig() provider.ModelConfig {
	return provider.ModelConfig{
		BaseURL:     c.LLM.BaseURL,
		APIKey:      os.Getenv("OPENROUTER_API_KEY"),
		Temperature: c.LLM.Temperature,
	}
}

// Validate checks that model-backed participants have an API key available.
// Scripted-only tournaments need no credentials.
func (c *Config) Validate(participants []string) error {
	modelCfg := c.ModelConfig()
	for _, p := range participants {
		if !provider.IsScripted(p) && modelCfg.APIKey == "" {
			return fmt.Errorf("participant %q needs a model API key, set OPENROUTER_API_KEY", p)
		}
	}
	return nil
}
