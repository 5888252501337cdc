package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the configuration for the application.
type Config struct {
	DatabasePath string
	HTTPPort     string
	JWTSecret    string

	// LLM provider selection: "openai" or "gemini".
	LLMProvider string

	// OpenAI-compatible provider settings.
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAITimeout     time.Duration
	OpenAIMaxAttempts int
	OpenAIRetryDelay  time.Duration

	GeminiAPIKey string

	// Planner limits.
	MaxPlanItems     int
	PromptItemsLimit int
	MenuFilterLimit  int

	// Catalog ETL.
	USDASourceURL string
	SeedsPath     string

	// Telegram config (optional for the API server, required for the bot).
	TelegramBotToken   string
	TelegramWebhookURL string
	AdminTelegramID    int64
}

// NewFromEnv creates a new Config object from environment variables.
// A .env file in the working directory is loaded first when present.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("NUTRIPLAN_JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("NUTRIPLAN_JWT_SECRET environment variable not set")
	}

	cfg := &Config{
		DatabasePath: getEnv("NUTRIPLAN_DB_PATH", "data/nutriplan.db"),
		HTTPPort:     getEnv("PORT", "8080"),
		JWTSecret:    jwtSecret,

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),

		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.2),
		OpenAITimeout:     getEnvSeconds("OPENAI_TIMEOUT", 20*time.Second),
		OpenAIMaxAttempts: maxInt(1, getEnvInt("OPENAI_MAX_RETRIES", 3)),
		OpenAIRetryDelay:  getEnvSeconds("OPENAI_RETRY_DELAY", 2*time.Second),

		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),

		MaxPlanItems:     maxInt(1, getEnvInt("NUTRIPLAN_MAX_PLAN_ITEMS", 6)),
		PromptItemsLimit: maxInt(1, getEnvInt("NUTRIPLAN_PROMPT_ITEMS_LIMIT", 40)),
		MenuFilterLimit:  maxInt(1, getEnvInt("NUTRIPLAN_MENU_FILTER_LIMIT", 300)),

		USDASourceURL: os.Getenv("USDA_SOURCE_URL"),
		SeedsPath:     getEnv("NUTRIPLAN_SEEDS_PATH", "seeds"),

		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: os.Getenv("TELEGRAM_WEBHOOK_URL"),
	}

	if v := os.Getenv("ADMIN_TELEGRAM_ID"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.AdminTelegramID)
	}

	return cfg, nil
}

// ProviderConfigured reports whether the selected LLM provider has credentials.
func (c *Config) ProviderConfigured() bool {
	switch c.LLMProvider {
	case "gemini":
		return c.GeminiAPIKey != ""
	default:
		return c.OpenAIAPIKey != ""
	}
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvSeconds(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		return defaultValue
	}
	return time.Duration(f * float64(time.Second))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
