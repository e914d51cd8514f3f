// Package app wires configuration, persistence, providers, services and the
// HTTP server into a runnable application.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/multiversa/cortex/internal/config"
	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/core/channel"
	db "github.com/multiversa/cortex/internal/core/database"
	"github.com/multiversa/cortex/internal/core/llm"
	"github.com/multiversa/cortex/internal/core/research"
	"github.com/multiversa/cortex/internal/services"
)

type App struct {
	DBClient   core.DbClient
	Server     *Server
	Summarizer *Summarizer

	logger *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("database initialized")

	pool := llm.NewPool(logger)
	if cfg.GroqAPIKey != "" {
		groq, err := llm.NewOpenAICompat("groq", cfg.GroqAPIKey, llm.GroqBaseURL, cfg.GroqModel)
		if err != nil {
			return nil, err
		}
		pool.Register("groq", groq)
	}
	if keys := cfg.GeminiKeys(); len(keys) > 0 {
		gemini, err := llm.NewGemini(keys, cfg.GenModel)
		if err != nil {
			return nil, err
		}
		pool.Register("gemini", gemini)
	}
	if cfg.MistralAPIKey != "" {
		mistral, err := llm.NewOpenAICompat("mistral", cfg.MistralAPIKey, llm.MistralBaseURL, cfg.MistralModel)
		if err != nil {
			return nil, err
		}
		pool.Register("mistral", mistral)
	}
	if cfg.DeepSeekAPIKey != "" {
		deepseek, err := llm.NewOpenAICompat("deepseek", cfg.DeepSeekAPIKey, llm.DeepSeekBaseURL, cfg.DeepSeekModel)
		if err != nil {
			return nil, err
		}
		pool.Register("deepseek", deepseek)
	}
	logger.Info("provider pool ready", zap.Strings("providers", pool.AvailableProviders()))

	embedder := llm.NewEmbedder(cfg.GeminiAPIKey, cfg.EmbedModel, cfg.EmbedDim)
	researcher := research.NewClient(cfg.TavilyAPIKey)

	identity := services.NewIdentityRegistry(dbClient)
	memory := services.NewMemoryService(dbClient, pool, embedder, cfg.SummarizeAfter, cfg.ContextLimit, logger)
	cards := services.NewCardGenerator()
	orchestrator := services.NewOrchestrator(identity, memory, pool, researcher, cards,
		cfg.MemoryTopK, cfg.PromptContextLimit, logger)
	tracker := services.NewTaskTracker()
	fleet := services.NewNanoFleet(pool)

	// Channel senders are optional; the webhooks report blocked/ignored when
	// a sender is not configured.
	var telegram *channel.Telegram
	if cfg.TelegramBotToken != "" {
		telegram, err = channel.NewTelegram(cfg.TelegramBotToken, cfg.TelegramWhitelist())
		if err != nil {
			return nil, err
		}
	}
	var whatsapp *channel.WhatsApp
	if cfg.WhatsAppPhoneID != "" || cfg.WhatsAppVerifyToken != "" {
		whatsapp = channel.NewWhatsApp(cfg.WhatsAppPhoneID, cfg.WhatsAppAPIToken,
			cfg.WhatsAppVerifyToken, cfg.WhatsAppWhitelist())
	}

	server := NewServer(cfg, dbClient, identity, memory, orchestrator, tracker, fleet,
		embedder, telegram, whatsapp, logger)

	summarizer, err := NewSummarizer(dbClient, memory, time.Duration(cfg.SummarizeIntervalH)*time.Hour, logger)
	if err != nil {
		return nil, err
	}

	return &App{
		DBClient:   dbClient,
		Server:     server,
		Summarizer: summarizer,
		logger:     logger,
	}, nil
}

func (a *App) Close() {
	if a.Summarizer != nil {
		a.Summarizer.Stop()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
