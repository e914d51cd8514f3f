package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/multiversa/cortex/internal/core"
)

// Gemini is the Google Gemini provider strategy. It supports a pool of API
// keys selected round-robin per call, spreading quota usage across keys.
// Exact fairness under concurrent increments is not guaranteed, only
// eventual spread.
type Gemini struct {
	keys         []string
	defaultModel string
	counter      atomic.Uint64
}

func NewGemini(keys []string, defaultModel string) (*Gemini, error) {
	if len(keys) == 0 {
		return nil, errors.New("no gemini API keys")
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &Gemini{keys: keys, defaultModel: defaultModel}, nil
}

func (g *Gemini) nextKey() string {
	idx := g.counter.Add(1) - 1
	return g.keys[idx%uint64(len(g.keys))]
}

func (g *Gemini) Complete(ctx context.Context, prompt, systemPrompt, model string, maxTokens int, temperature float32) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.nextKey()))
	if err != nil {
		return "", fmt.Errorf("gemini client: %w", err)
	}
	defer client.Close()

	if model == "" {
		model = g.defaultModel
	}
	m := client.GenerativeModel(model)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	m.SetMaxOutputTokens(int32(maxTokens))
	m.SetTemperature(temperature)

	resp, err := m.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

var _ core.Completer = (*Gemini)(nil)
