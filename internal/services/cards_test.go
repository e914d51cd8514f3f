package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multiversa/cortex/internal/models"
)

func TestNewResearchCard(t *testing.T) {
	g := NewCardGenerator()
	citations := []models.Citation{
		{Title: "Go Blog", URL: "https://go.dev/blog", Snippet: "notes"},
	}

	card := g.NewResearchCard("Investigación", "Resumen breve", []string{"punto uno", "punto dos"}, citations, 0.82, 120)

	assert.NotEmpty(t, card.ID)
	assert.Equal(t, models.CardResearch, card.Type)
	assert.Equal(t, models.StatusComplete, card.Status)
	assert.Equal(t, "Resumen breve", card.Summary)
	assert.InDelta(t, 0.82, card.Confidence, 0.001)
	assert.Equal(t, int64(120), card.DurationMs)
	require.Len(t, card.KeyPoints, 2)
	assert.Equal(t, "punto uno", card.KeyPoints[0].Text)
	require.Len(t, card.Sources, 1)
	assert.Equal(t, "https://go.dev/blog", card.Sources[0].URL)
	assert.NotNil(t, card.ReasoningSteps)
}

func TestNewReasoningCardStepNumbers(t *testing.T) {
	g := NewCardGenerator()

	card := g.NewReasoningCard("Razonamiento", []string{"paso a", "paso b"}, "conclusión", 50)

	require.Len(t, card.ReasoningSteps, 2)
	assert.Equal(t, 1, card.ReasoningSteps[0].Number)
	assert.Equal(t, 2, card.ReasoningSteps[1].Number)
	assert.Equal(t, models.StatusComplete, card.ReasoningSteps[0].Status)
	assert.Equal(t, "conclusión", card.Summary)
}

func TestNewActionCardFailure(t *testing.T) {
	g := NewCardGenerator()

	card := g.NewActionCard("Sincronizar Notion", "timeout", false, 30)
	assert.Equal(t, models.CardAction, card.Type)
	assert.Equal(t, models.StatusFailed, card.Status)
	assert.Equal(t, "timeout", card.Content)
}

// Empty cards serialize arrays, never null, so the UI can iterate blindly.
func TestCardJSONHasArrays(t *testing.T) {
	g := NewCardGenerator()
	card := g.NewChatCard("hola", 5)

	raw, err := json.Marshal(card)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.IsType(t, []any{}, decoded["key_points"])
	assert.IsType(t, []any{}, decoded["sources"])
	assert.IsType(t, []any{}, decoded["reasoning_steps"])
}
