package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/multiversa/cortex/internal/models"
)

// CardGenerator builds the typed cards attached to responses. Slices are
// always non-nil so the JSON the UI receives has arrays, not nulls.
type CardGenerator struct{}

func NewCardGenerator() *CardGenerator {
	return &CardGenerator{}
}

func (g *CardGenerator) newCard(cardType models.CardType, title string, durationMs int64) *models.ResponseCard {
	return &models.ResponseCard{
		ID:             uuid.NewString(),
		Type:           cardType,
		Title:          title,
		Status:         models.StatusComplete,
		KeyPoints:      []models.KeyPoint{},
		Sources:        []models.Source{},
		ReasoningSteps: []models.ReasoningStep{},
		DurationMs:     durationMs,
		CreatedAt:      time.Now().UTC(),
	}
}

// NewResearchCard renders research findings: a summary, highlighted points
// and the sources behind them.
func (g *CardGenerator) NewResearchCard(title, summary string, keyPoints []string, citations []models.Citation, confidence float64, durationMs int64) *models.ResponseCard {
	card := g.newCard(models.CardResearch, title, durationMs)
	card.Summary = summary
	card.Confidence = confidence
	for _, point := range keyPoints {
		card.KeyPoints = append(card.KeyPoints, models.KeyPoint{Text: point, Icon: "🔍"})
	}
	for _, c := range citations {
		card.Sources = append(card.Sources, models.Source{
			Title:   c.Title,
			URL:     c.URL,
			Snippet: c.Snippet,
		})
	}
	return card
}

// NewReasoningCard renders a completed chain of reasoning steps.
func (g *CardGenerator) NewReasoningCard(title string, steps []string, conclusion string, durationMs int64) *models.ResponseCard {
	card := g.newCard(models.CardReasoning, title, durationMs)
	card.Summary = conclusion
	for i, step := range steps {
		card.ReasoningSteps = append(card.ReasoningSteps, models.ReasoningStep{
			Number:      i + 1,
			Description: step,
			Status:      models.StatusComplete,
		})
	}
	return card
}

// NewActionCard reports the outcome of an executed action.
func (g *CardGenerator) NewActionCard(title, result string, ok bool, durationMs int64) *models.ResponseCard {
	card := g.newCard(models.CardAction, title, durationMs)
	card.Content = result
	if !ok {
		card.Status = models.StatusFailed
	}
	return card
}

// NewChatCard wraps plain conversational content when the UI requests a
// card-shaped payload.
func (g *CardGenerator) NewChatCard(content string, durationMs int64) *models.ResponseCard {
	card := g.newCard(models.CardChat, "Conversación", durationMs)
	card.Content = content
	return card
}
