package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("NUTRIPLAN_JWT_SECRET", "secret")
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("OPENAI_MAX_RETRIES")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		require.Equal(t, "data/nutriplan.db", cfg.DatabasePath)
		require.Equal(t, "gpt-4o-mini", cfg.OpenAIModel)
		require.Equal(t, 20*time.Second, cfg.OpenAITimeout)
		require.Equal(t, 3, cfg.OpenAIMaxAttempts)
		require.Equal(t, 6, cfg.MaxPlanItems)
		require.Equal(t, 40, cfg.PromptItemsLimit)
		require.Equal(t, 300, cfg.MenuFilterLimit)
		require.False(t, cfg.ProviderConfigured())
	})

	t.Run("MissingJWTSecret", func(t *testing.T) {
		os.Unsetenv("NUTRIPLAN_JWT_SECRET")

		_, err := NewFromEnv()
		require.Error(t, err)
		require.Equal(t, "NUTRIPLAN_JWT_SECRET environment variable not set", err.Error())
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("NUTRIPLAN_JWT_SECRET", "secret")
		t.Setenv("OPENAI_API_KEY", "sk-test")
		t.Setenv("OPENAI_TIMEOUT", "5")
		t.Setenv("OPENAI_MAX_RETRIES", "1")
		t.Setenv("NUTRIPLAN_MAX_PLAN_ITEMS", "4")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		require.Equal(t, 5*time.Second, cfg.OpenAITimeout)
		require.Equal(t, 1, cfg.OpenAIMaxAttempts)
		require.Equal(t, 4, cfg.MaxPlanItems)
		require.True(t, cfg.ProviderConfigured())
	})

	t.Run("InvalidNumbersFallBack", func(t *testing.T) {
		t.Setenv("NUTRIPLAN_JWT_SECRET", "secret")
		t.Setenv("OPENAI_MAX_RETRIES", "not-a-number")
		t.Setenv("OPENAI_TIMEOUT", "-2")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		require.Equal(t, 3, cfg.OpenAIMaxAttempts)
		require.Equal(t, 20*time.Second, cfg.OpenAITimeout)
	})

	t.Run("GeminiSelection", func(t *testing.T) {
		t.Setenv("NUTRIPLAN_JWT_SECRET", "secret")
		t.Setenv("LLM_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "gm-test")
		os.Unsetenv("OPENAI_API_KEY")

		cfg, err := NewFromEnv()
		require.NoError(t, err)
		require.True(t, cfg.ProviderConfigured())
	})
}
