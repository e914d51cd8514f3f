// Package core defines the contracts between the orchestration services and
// their collaborators: persistence, language-model providers, embeddings,
// research, and channel delivery. Higher layers depend only on these
// interfaces, never on a concrete backend.
package core

import (
	"context"
	"time"

	"github.com/multiversa/cortex/internal/models"
)

// DbClient defines all persistence operations the services need. It abstracts
// Postgres/pgvector so higher layers never depend on a specific store.
//
// Implementations must enforce a uniqueness constraint on
// (tenant_id, channel, channel_user_id) for conversations so that
// GetOrCreateConversation stays idempotent under concurrent first messages.
type DbClient interface {
	CreateProfile(ctx context.Context, profile *models.UserProfile) error
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	GetProfileByTelegram(ctx context.Context, telegramID int64) (*models.UserProfile, error)
	GetProfileByWhatsApp(ctx context.Context, phone string) (*models.UserProfile, error)
	ListProfileIDs(ctx context.Context) ([]string, error)
	LinkTelegram(ctx context.Context, userID string, telegramID int64, at time.Time) error
	LinkWhatsApp(ctx context.Context, userID string, phone string, at time.Time) error

	CreateVerification(ctx context.Context, v *models.ChannelVerification) error
	GetVerificationByCode(ctx context.Context, code, channel string) (*models.ChannelVerification, error)
	ConsumeVerification(ctx context.Context, id, channelIdentifier string, at time.Time) error

	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	GetOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]models.Conversation, error)

	InsertMessage(ctx context.Context, msg *models.ContextMessage) error
	ListRecentMessages(ctx context.Context, conversationIDs []string, limit int) ([]models.ContextMessage, error)
	ListAllMessages(ctx context.Context, conversationIDs []string) ([]models.ContextMessage, error)
	CountMessages(ctx context.Context, conversationIDs []string) (int, error)
	DeleteMessages(ctx context.Context, conversationIDs []string) error

	InsertMemory(ctx context.Context, mem *models.Memory) error
	SearchMemories(ctx context.Context, userID string, queryVec []float32, limit int) ([]models.MemoryMatch, error)
	CountMemories(ctx context.Context, userID string) (int, error)

	SearchKnowledgeChunks(ctx context.Context, tenantID string, queryVec []float32, limit int) ([]models.KnowledgeChunk, error)

	UpsertSecret(ctx context.Context, secret *models.TenantSecret) error
	GetSecret(ctx context.Context, tenantID, key string) (*models.TenantSecret, error)

	Close() error
}

// CompletionRequest carries one text-generation call through the pool.
// Provider and Model are optional; the pool falls back to priority order and
// each provider's default model.
type CompletionRequest struct {
	Prompt       string
	SystemPrompt string
	Provider     string
	Model        string
	MaxTokens    int
	Temperature  float32
}

// Completer is one pluggable text-generation strategy.
type Completer interface {
	Complete(ctx context.Context, prompt, systemPrompt, model string, maxTokens int, temperature float32) (string, error)
}

// CompletionService selects a provider and generates text. It returns the
// name of the provider that served the call.
type CompletionService interface {
	Complete(ctx context.Context, req CompletionRequest) (text string, provider string, err error)
	AvailableProviders() []string
}

// EmbeddingProvider converts text into a fixed-width vector. Implementations
// must fall back deterministically when no backend is configured, so semantic
// search always has some vector to compare.
type EmbeddingProvider interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// Researcher fetches web search results with citations for a query.
type Researcher interface {
	Search(ctx context.Context, query string, limit int) (answer string, citations []models.Citation, err error)
}

// SendResult reports the outcome of one channel delivery. Failures cross this
// boundary as data, never as panics or raised errors.
type SendResult struct {
	OK        bool   `json:"ok"`
	MessageID string `json:"message_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ChannelSender delivers a text reply to a channel-local recipient,
// truncating to the channel's hard length limit before sending.
type ChannelSender interface {
	SendMessage(ctx context.Context, recipient, text string) SendResult
}
