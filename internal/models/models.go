package models

import (
	"time"
)

// UserProfile is the canonical identity record. A channel identifier
// (telegram_id / whatsapp_phone) maps to at most one profile and is only
// usable for routing once its *_verified_at timestamp is set.
type UserProfile struct {
	ID                 string          `db:"id" json:"id"`
	TenantID           string          `db:"tenant_id" json:"tenant_id"`
	Email              string          `db:"email" json:"email"`
	DisplayName        string          `db:"display_name" json:"display_name"`
	PasswordHash       string          `db:"password_hash" json:"-"`
	TelegramID         *int64          `db:"telegram_id" json:"telegram_id,omitempty"`
	TelegramVerifiedAt *time.Time      `db:"telegram_verified_at" json:"telegram_verified_at,omitempty"`
	WhatsAppPhone      *string         `db:"whatsapp_phone" json:"whatsapp_phone,omitempty"`
	WhatsAppVerifiedAt *time.Time      `db:"whatsapp_verified_at" json:"whatsapp_verified_at,omitempty"`
	Tier               string          `db:"tier" json:"tier"`
	Preferences        map[string]any  `db:"preferences" json:"preferences,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// ChannelVerification is a short-lived ticket binding a channel identifier to
// a profile. It is consumed at most once; expiry is checked at consumption.
type ChannelVerification struct {
	ID                string     `db:"id" json:"id"`
	UserID            string     `db:"user_id" json:"user_id"`
	Channel           string     `db:"channel" json:"channel"`
	VerificationCode  string     `db:"verification_code" json:"verification_code"`
	ChannelIdentifier *string    `db:"channel_identifier" json:"channel_identifier,omitempty"`
	ExpiresAt         time.Time  `db:"expires_at" json:"expires_at"`
	VerifiedAt        *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// Conversation is the unit of context continuity, uniquely identified by
// (tenant_id, channel, channel_user_id).
type Conversation struct {
	ID            string    `db:"id" json:"id"`
	TenantID      string    `db:"tenant_id" json:"tenant_id"`
	Channel       string    `db:"channel" json:"channel"`
	ChannelUserID string    `db:"channel_user_id" json:"channel_user_id"`
	UserID        string    `db:"user_id" json:"user_id"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ContextMessage is one conversation turn. Append-only; read chronologically
// for prompt assembly. Channel is denormalized from the owning conversation.
type ContextMessage struct {
	ID             string         `db:"id" json:"id"`
	ConversationID string         `db:"conversation_id" json:"conversation_id"`
	Channel        string         `db:"channel" json:"channel"`
	Role           string         `db:"role" json:"role"`
	Content        string         `db:"content" json:"content"`
	Metadata       map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// Memory is a summarized, embedded archive of a block of conversation.
// Never mutated after creation.
type Memory struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	Content       string     `db:"content" json:"content"`
	Summary       string     `db:"summary" json:"summary"`
	Embedding     []float32  `db:"embedding" json:"-"`
	SourceChannel string     `db:"source_channel" json:"source_channel"`
	MessageCount  int        `db:"message_count" json:"message_count"`
	TimeStart     *time.Time `db:"time_start" json:"time_start,omitempty"`
	TimeEnd       *time.Time `db:"time_end" json:"time_end,omitempty"`
	Tags          []string   `db:"tags" json:"tags,omitempty"`
	Importance    float64    `db:"importance" json:"importance"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// MemoryMatch pairs a memory with its similarity score from vector search.
type MemoryMatch struct {
	Memory     Memory  `json:"memory"`
	Similarity float64 `json:"similarity"`
}

// KnowledgeChunk is one tenant-scoped knowledge base entry returned by
// semantic search.
type KnowledgeChunk struct {
	ID         string    `db:"id" json:"id"`
	TenantID   string    `db:"tenant_id" json:"tenant_id"`
	Content    string    `db:"content" json:"content"`
	Source     string    `db:"source" json:"source"`
	Similarity float64   `db:"similarity" json:"similarity"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// TenantSecret is one key/value secret owned by a tenant, written with
// upsert-on-conflict semantics.
type TenantSecret struct {
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	Key       string    `db:"key" json:"key"`
	Value     string    `db:"value" json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// UserStats summarizes a user's context and memory footprint.
type UserStats struct {
	ActiveContextMessages int `json:"active_context_messages"`
	ArchivedMemories      int `json:"archived_memories"`
	TotalMessages         int `json:"total_messages"`
}
