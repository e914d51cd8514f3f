package models

import "time"

// Supported message channels.
const (
	ChannelPWA      = "pwa"
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

// Message is one inbound message from any channel. Created once per request,
// never mutated. UserID is only set for pwa, where auth already resolved it.
type Message struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	SenderID  string         `json:"sender_id"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	UserID    string         `json:"user_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ConversationID returns the conversation_id carried in metadata, if any.
func (m *Message) ConversationID() string {
	if m.Metadata == nil {
		return ""
	}
	if id, ok := m.Metadata["conversation_id"].(string); ok {
		return id
	}
	return ""
}

// Citation is one research source reference.
type Citation struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Snippet string `json:"snippet"`
}

// Response is the structured result of processing one message.
type Response struct {
	Content          string        `json:"content"`
	NanoAureonUsed   string        `json:"nanoaureon_used,omitempty"`
	ProviderUsed     string        `json:"provider_used,omitempty"`
	ProcessingTimeMs int64         `json:"processing_time_ms"`
	UserID           string        `json:"user_id,omitempty"`
	UserName         string        `json:"user_name,omitempty"`
	ConversationID   string        `json:"conversation_id,omitempty"`
	Card             *ResponseCard `json:"card,omitempty"`
	Citations        []Citation    `json:"citations,omitempty"`
}
