// Package llm implements the text-generation provider pool: a registry of
// interchangeable provider strategies with ordered fallback, plus the
// embedding generator.
package llm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/multiversa/cortex/internal/core"
)

// Provider names understood by the pool.
const (
	ProviderGroq     = "groq"
	ProviderGemini   = "gemini"
	ProviderMistral  = "mistral"
	ProviderDeepSeek = "deepseek"
)

var (
	// ErrNoProviderConfigured is returned when no provider has credentials
	// and none was explicitly requested.
	ErrNoProviderConfigured = errors.New("no AI providers configured")
	// ErrProviderNotConfigured is returned when an explicitly requested
	// provider is not registered.
	ErrProviderNotConfigured = errors.New("requested provider not configured")
)

// Pool selects one of several interchangeable providers per call. Providers
// are registered at wiring time; adding one means registering a Completer,
// not editing a dispatch function. Priority runs fastest/cheapest first.
type Pool struct {
	registry map[string]core.Completer
	order    []string
	logger   *zap.Logger
}

func NewPool(logger *zap.Logger) *Pool {
	return &Pool{
		registry: make(map[string]core.Completer),
		order:    []string{ProviderGroq, ProviderGemini, ProviderMistral, ProviderDeepSeek},
		logger:   logger,
	}
}

// Register adds a provider strategy under the given name. Unknown names are
// appended at the end of the priority order.
func (p *Pool) Register(name string, completer core.Completer) {
	p.registry[name] = completer
	for _, known := range p.order {
		if known == name {
			return
		}
	}
	p.order = append(p.order, name)
}

// AvailableProviders lists registered providers in priority order.
func (p *Pool) AvailableProviders() []string {
	var out []string
	for _, name := range p.order {
		if _, ok := p.registry[name]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Complete generates text using the requested provider, or the first
// available one in priority order when none is requested.
func (p *Pool) Complete(ctx context.Context, req core.CompletionRequest) (string, string, error) {
	name := req.Provider
	if name == "" {
		for _, candidate := range p.order {
			if _, ok := p.registry[candidate]; ok {
				name = candidate
				break
			}
		}
		if name == "" {
			return "", "", ErrNoProviderConfigured
		}
	}

	completer, ok := p.registry[name]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrProviderNotConfigured, name)
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}

	text, err := completer.Complete(ctx, req.Prompt, req.SystemPrompt, req.Model, maxTokens, req.Temperature)
	if err != nil {
		return "", name, fmt.Errorf("%s completion: %w", name, err)
	}
	p.logger.Debug("completion served", zap.String("provider", name), zap.Int("prompt_len", len(req.Prompt)))
	return text, name, nil
}

var _ core.CompletionService = (*Pool)(nil)
