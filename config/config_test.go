package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arena.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("full config", func(t *testing.T) {
		path := writeConfig(t, `
version: 1
tournament:
  participants: ["random", "greedy", "openai/gpt-4o"]
  games_per_pairing: 4
match:
  max_turns: 150
  timeout_seconds: 120
  decision_timeout_seconds: 20
rating:
  ledger_path: /tmp/ratings.json
  k_factor: 24
  initial_rating: 1200
llm:
  base_url: https://example.test/v1
  temperature: 0.2
dashboard:
  enabled: true
  addr: ":9999"
`)

		cfg, err := Load(path)

		require.NoError(t, err)
		require.Equal(t, []string{"random", "greedy", "openai/gpt-4o"}, cfg.Tournament.Participants)
		require.Equal(t, 4, cfg.GamesPerPairing())
		require.Equal(t, 150, cfg.MaxTurns())
		require.Equal(t, 120*time.Second, cfg.MatchTimeout())
		require.Equal(t, 20*time.Second, cfg.DecisionTimeout())
		require.Equal(t, "/tmp/ratings.json", cfg.LedgerPath())
		require.Equal(t, 24.0, cfg.KFactor())
		require.Equal(t, 1200.0, cfg.InitialRating())
		require.Equal(t, "https://example.test/v1", cfg.LLM.BaseURL)
		require.True(t, cfg.Dashboard.Enabled)
		require.Equal(t, ":9999", cfg.DashboardAddr())
	})

	t.Run("unsupported version", func(t *testing.T) {
		path := writeConfig(t, "version: 2\n")

		_, err := Load(path)

		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "version: [broken\n")

		_, err := Load(path)

		require.Error(t, err)
	})
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	require.Equal(t, 1, cfg.GamesPerPairing())
	require.Equal(t, 200, cfg.MaxTurns())
	require.Equal(t, 300*time.Second, cfg.MatchTimeout())
	require.Equal(t, 30*time.Second, cfg.DecisionTimeout())
	require.Equal(t, "elo_ledger.json", cfg.LedgerPath())
	require.Equal(t, 32.0, cfg.KFactor())
	require.Equal(t, 1500.0, cfg.InitialRating())
	require.Equal(t, ":8888", cfg.DashboardAddr())
}

func TestValidate(t *testing.T) {
	t.Run("scripted participants need no API key", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "")

		require.NoError(t, Default().Validate([]string{"random", "greedy", "random:9"}))
	})

	t.Run("model participants need an API key", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "")

		err := Default().Validate([]string{"random", "openai/gpt-4o"})

		require.Error(t, err)
		require.Contains(t, err.Error(), "openai/gpt-4o")
	})

	t.Run("key from the environment satisfies model participants", func(t *testing.T) {
		t.Setenv("OPENROUTER_API_KEY", "sk-test")

		require.NoError(t, Default().Validate([]string{"openai/gpt-4o"}))
	})
}

func TestModelConfig(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "sk-env")

	cfg := Default()
	cfg.LLM.BaseURL = "https://example.test/v1"
	cfg.LLM.Temperature = 0.3

	mc := cfg.ModelConfig()

	require.Equal(t, "sk-env", mc.APIKey)
	require.Equal(t, "https://example.test/v1", mc.BaseURL)
	require.Equal(t, 0.3, mc.Temperature)
}
