// Package config loads typed application configuration from environment
// variables (optionally via .env) with defaults and validation.
package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"app_env": "development",
	"port":    "8080",
	"domain":  "http://localhost:8080",

	"log_level":  "info",
	"log_format": "json",

	"gen_model":   "gemini-2.0-flash",
	"embed_model": "embedding-001",
	"embed_dim":   1536,

	"groq_model":     "llama-3.3-70b-versatile",
	"mistral_model":  "mistral-small-latest",
	"deepseek_model": "deepseek-chat",

	"context_limit":        20,
	"prompt_context_limit": 8,
	"summarize_after":      30,
	"memory_top_k":         3,
	"summarize_interval_h": 24,
}

// Config is the central application configuration. Every value can be set via
// environment variable with the same name upper-cased (e.g. DATABASE_URL).
type Config struct {
	AppEnv string `mapstructure:"app_env" validate:"required,oneof=development staging production"`
	Port   string `mapstructure:"port" validate:"required"`
	Domain string `mapstructure:"domain" validate:"required,url"`

	DatabaseURL string `mapstructure:"database_url" validate:"required"`
	JWTSecret   string `mapstructure:"jwt_secret" validate:"required"`

	LogLevel  string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=json text"`

	// Provider credentials. Any subset may be configured; the pool selects
	// the first available in priority order.
	GeminiAPIKey   string `mapstructure:"gemini_api_key"`
	GeminiKeyPool  string `mapstructure:"gemini_key_pool"` // comma-separated
	GroqAPIKey     string `mapstructure:"groq_api_key"`
	MistralAPIKey  string `mapstructure:"mistral_api_key"`
	DeepSeekAPIKey string `mapstructure:"deepseek_api_key"`

	GenModel      string `mapstructure:"gen_model" validate:"required"`
	EmbedModel    string `mapstructure:"embed_model" validate:"required"`
	EmbedDim      int    `mapstructure:"embed_dim" validate:"required,min=64"`
	GroqModel     string `mapstructure:"groq_model"`
	MistralModel  string `mapstructure:"mistral_model"`
	DeepSeekModel string `mapstructure:"deepseek_model"`

	TavilyAPIKey string `mapstructure:"tavily_api_key"`

	TelegramBotToken   string `mapstructure:"telegram_bot_token"`
	TelegramAllowedIDs string `mapstructure:"telegram_allowed_ids"` // comma-separated

	WhatsAppPhoneID       string `mapstructure:"whatsapp_phone_id"`
	WhatsAppAPIToken      string `mapstructure:"whatsapp_api_token"`
	WhatsAppVerifyToken   string `mapstructure:"whatsapp_verify_token"`
	WhatsAppAllowedPhones string `mapstructure:"whatsapp_allowed_phones"` // comma-separated

	ContextLimit       int `mapstructure:"context_limit" validate:"min=1"`
	PromptContextLimit int `mapstructure:"prompt_context_limit" validate:"min=1"`
	SummarizeAfter     int `mapstructure:"summarize_after" validate:"min=2"`
	MemoryTopK         int `mapstructure:"memory_top_k" validate:"min=1"`
	SummarizeIntervalH int `mapstructure:"summarize_interval_h" validate:"min=1"`
}

// Load reads .env (if present), applies defaults and environment overrides,
// and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.AutomaticEnv()

	// AutomaticEnv alone does not surface env-only keys through Unmarshal,
	// so bind every known key explicitly.
	for _, key := range []string{
		"app_env", "port", "domain", "database_url", "jwt_secret",
		"log_level", "log_format",
		"gemini_api_key", "gemini_key_pool", "groq_api_key", "mistral_api_key", "deepseek_api_key",
		"gen_model", "embed_model", "embed_dim", "groq_model", "mistral_model", "deepseek_model",
		"tavily_api_key",
		"telegram_bot_token", "telegram_allowed_ids",
		"whatsapp_phone_id", "whatsapp_api_token", "whatsapp_verify_token", "whatsapp_allowed_phones",
		"context_limit", "prompt_context_limit", "summarize_after", "memory_top_k", "summarize_interval_h",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// GeminiKeys returns the key rotation pool, falling back to the single key.
func (c *Config) GeminiKeys() []string {
	keys := splitList(c.GeminiKeyPool)
	if len(keys) == 0 && c.GeminiAPIKey != "" {
		keys = []string{c.GeminiAPIKey}
	}
	return keys
}

// TelegramWhitelist returns the allowed Telegram user ids, empty meaning all.
func (c *Config) TelegramWhitelist() []string {
	return splitList(c.TelegramAllowedIDs)
}

// WhatsAppWhitelist returns the allowed WhatsApp phones, empty meaning all.
func (c *Config) WhatsAppWhitelist() []string {
	return splitList(c.WhatsAppAllowedPhones)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
