package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
)

// Orchestrator turns an inbound Message into a Response: it resolves
// identity, assembles context, optionally researches, selects a persona,
// generates a reply through the provider pool, persists both turns and
// triggers summarization.
//
// Failure policy: identity and persistence errors propagate; research and
// generation errors degrade the response instead of failing the turn. The
// user's own turn is always persisted before generation is attempted.
type Orchestrator struct {
	identity   *IdentityRegistry
	memory     *MemoryService
	pool       core.CompletionService
	research   core.Researcher
	cards      *CardGenerator
	memoryTopK int
	promptCtx  int
	logger     *zap.Logger
}

func NewOrchestrator(
	identity *IdentityRegistry,
	memory *MemoryService,
	pool core.CompletionService,
	research core.Researcher,
	cards *CardGenerator,
	memoryTopK, promptContextLimit int,
	logger *zap.Logger,
) *Orchestrator {
	if memoryTopK <= 0 {
		memoryTopK = 3
	}
	if promptContextLimit <= 0 {
		promptContextLimit = 8
	}
	return &Orchestrator{
		identity:   identity,
		memory:     memory,
		pool:       pool,
		research:   research,
		cards:      cards,
		memoryTopK: memoryTopK,
		promptCtx:  promptContextLimit,
		logger:     logger,
	}
}

func (o *Orchestrator) Process(ctx context.Context, msg *models.Message) (*models.Response, error) {
	start := time.Now()

	profile, err := o.identity.Resolve(ctx, msg.Channel, msg.SenderID, msg.Metadata, msg.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	userID := profile.ID

	conversation, err := o.resolveConversation(ctx, msg, userID)
	if err != nil {
		return nil, err
	}

	// The user turn is committed before any generation call so a failing
	// provider can never lose the inbound message.
	if err := o.memory.AddMessage(ctx, conversation.ID, "user", msg.Content, msg.Metadata); err != nil {
		return nil, fmt.Errorf("persist user turn: %w", err)
	}

	memoryContext := o.memory.RelevantContext(ctx, userID, msg.Content, o.memoryTopK)
	recentContext, err := o.memory.ContextText(ctx, userID, o.promptCtx)
	if err != nil {
		o.logger.Warn("recent context fetch failed", zap.Error(err))
	}

	taskType := DetectTaskType(msg.Content)
	agent := DetectAgent(msg.Content)

	var (
		citations       []models.Citation
		researchContext string
		researchAnswer  string
	)
	if taskType == TaskResearcher {
		researchAnswer, citations, researchContext = o.runResearch(ctx, msg.Content)
	}

	prompt := o.buildPrompt(profile, memoryContext, recentContext, researchContext, msg.Content)

	systemPrompt := aureonSystemPrompt
	temperature := float32(0.7)
	if agent == AgentRuna {
		systemPrompt = runaSystemPrompt
		temperature = 0.8
	}

	responseText, provider, err := o.pool.Complete(ctx, core.CompletionRequest{
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		MaxTokens:    1024,
		Temperature:  temperature,
	})
	if err != nil {
		o.logger.Error("generation failed", zap.Error(err), zap.String("task_type", taskType))
		responseText = fmt.Sprintf("⚠️ Error procesando tu mensaje: %v", err)
		provider = "error"
	}

	if err := o.memory.AddMessage(ctx, conversation.ID, "assistant", responseText,
		map[string]any{"provider": provider}); err != nil {
		return nil, fmt.Errorf("persist assistant turn: %w", err)
	}

	// Non-forced summarization: a no-op below the backlog threshold. Runs
	// after both turns are committed so it only ever sees complete pairs.
	if _, err := o.memory.SummarizeAndArchive(ctx, userID, false); err != nil {
		o.logger.Warn("summarization failed", zap.Error(err), zap.String("user_id", userID))
	}

	var card *models.ResponseCard
	if len(citations) > 0 {
		summary := researchAnswer
		if summary == "" {
			summary = "Resultados encontrados"
		}
		keyPoints := make([]string, 0, 3)
		for i, c := range citations {
			if i >= 3 {
				break
			}
			keyPoints = append(keyPoints, c.Title)
		}
		card = o.cards.NewResearchCard("Investigación", summary, keyPoints, citations, 0.82,
			time.Since(start).Milliseconds())
	}

	return &models.Response{
		Content:          responseText,
		NanoAureonUsed:   agent + ":" + taskType,
		ProviderUsed:     provider,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		UserID:           userID,
		UserName:         profile.DisplayName,
		ConversationID:   conversation.ID,
		Card:             card,
		Citations:        citations,
	}, nil
}

// resolveConversation honors an explicit conversation_id only when it
// belongs to the message's tenant; otherwise it resolves-or-creates by the
// (tenant, channel, sender) triple.
func (o *Orchestrator) resolveConversation(ctx context.Context, msg *models.Message, userID string) (*models.Conversation, error) {
	if id := msg.ConversationID(); id != "" {
		existing, err := o.memory.GetConversation(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load conversation: %w", err)
		}
		if existing != nil && existing.TenantID == msg.TenantID {
			return existing, nil
		}
	}
	return o.memory.GetOrCreateConversation(ctx, msg.TenantID, userID, msg.Channel, msg.SenderID)
}

// runResearch is never fatal to the turn: failures log and return empty
// citations.
func (o *Orchestrator) runResearch(ctx context.Context, query string) (answer string, citations []models.Citation, block string) {
	answer, citations, err := o.research.Search(ctx, query, 5)
	if err != nil {
		o.logger.Warn("research failed", zap.Error(err))
		return "", nil, ""
	}

	var b strings.Builder
	if answer != "" {
		b.WriteString("[Respuesta de investigación]\n")
		b.WriteString(answer)
	}
	var sources []string
	for _, c := range citations {
		if c.URL != "" {
			sources = append(sources, fmt.Sprintf("- %s (%s)", c.Title, c.URL))
		}
	}
	if len(sources) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[Fuentes:]\n")
		b.WriteString(strings.Join(sources, "\n"))
	}
	return answer, citations, b.String()
}

// buildPrompt concatenates the prompt block in its fixed order: identity
// line, relevant memories, recent transcript, research, current message.
func (o *Orchestrator) buildPrompt(profile *models.UserProfile, memoryContext, recentContext, researchContext, content string) string {
	name := profile.DisplayName
	if name == "" {
		name = "un usuario"
	}
	parts := []string{fmt.Sprintf("Estás hablando con %s.", name)}

	if memoryContext != "" {
		parts = append(parts, memoryContext)
	}
	if recentContext != "" {
		parts = append(parts, "\n[Conversación reciente:]\n"+recentContext)
	}
	if researchContext != "" {
		parts = append(parts, researchContext)
	}
	parts = append(parts, "\n[Mensaje actual:]\n"+content)

	return strings.Join(parts, "\n\n")
}
