package models

import "time"

// CardType classifies a response card for UI rendering.
type CardType string

const (
	CardResearch    CardType = "research"
	CardReasoning   CardType = "reasoning"
	CardAction      CardType = "action"
	CardData        CardType = "data"
	CardIntegration CardType = "integration"
	CardChat        CardType = "chat"
)

// CardStatus is the lifecycle state of a card or reasoning step.
type CardStatus string

const (
	StatusPending  CardStatus = "pending"
	StatusActive   CardStatus = "active"
	StatusComplete CardStatus = "complete"
	StatusFailed   CardStatus = "failed"
)

// Source is a source reference shown on research cards.
type Source struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// ReasoningStep is one visible step in a reasoning card.
type ReasoningStep struct {
	Number      int        `json:"number"`
	Description string     `json:"description"`
	Status      CardStatus `json:"status"`
	DurationMs  int64      `json:"duration_ms,omitempty"`
	Result      string     `json:"result,omitempty"`
}

// KeyPoint is a highlighted point with an optional icon.
type KeyPoint struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
}

// ResponseCard is a structured, typed payload distinct from the free-text
// reply, rendered by the UI next to the chat response.
type ResponseCard struct {
	ID             string          `json:"id"`
	Type           CardType        `json:"type"`
	Title          string          `json:"title"`
	Status         CardStatus      `json:"status"`
	Summary        string          `json:"summary,omitempty"`
	Content        string          `json:"content,omitempty"`
	KeyPoints      []KeyPoint      `json:"key_points"`
	Sources        []Source        `json:"sources"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
	Confidence     float64         `json:"confidence,omitempty"`
	DurationMs     int64           `json:"duration_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}
