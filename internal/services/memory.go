package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
)

// similarityFloor keeps noise-level matches out of prompts.
const similarityFloor = 0.3

// MemoryService maintains per-user conversational context and the long-term
// memory vault. Raw turns accumulate until the summarization threshold is
// met, then one Memory archives the whole window; the transcript itself is
// retained until an explicit clear.
type MemoryService struct {
	db             core.DbClient
	pool           core.CompletionService
	embedder       core.EmbeddingProvider
	summarizeAfter int
	contextLimit   int
	logger         *zap.Logger
}

func NewMemoryService(db core.DbClient, pool core.CompletionService, embedder core.EmbeddingProvider, summarizeAfter, contextLimit int, logger *zap.Logger) *MemoryService {
	if summarizeAfter <= 0 {
		summarizeAfter = 30
	}
	if contextLimit <= 0 {
		contextLimit = 20
	}
	return &MemoryService{
		db:             db,
		pool:           pool,
		embedder:       embedder,
		summarizeAfter: summarizeAfter,
		contextLimit:   contextLimit,
		logger:         logger,
	}
}

func (s *MemoryService) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	return s.db.GetConversation(ctx, id)
}

// GetOrCreateConversation resolves the conversation for
// (tenant_id, channel, channel_user_id), creating it on first contact.
func (s *MemoryService) GetOrCreateConversation(ctx context.Context, tenantID, userID, channel, channelUserID string) (*models.Conversation, error) {
	return s.db.GetOrCreateConversation(ctx, &models.Conversation{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		Channel:       channel,
		ChannelUserID: channelUserID,
		UserID:        userID,
		Status:        "active",
	})
}

// AddMessage appends one turn to a conversation.
func (s *MemoryService) AddMessage(ctx context.Context, conversationID, role, content string, metadata map[string]any) error {
	return s.db.InsertMessage(ctx, &models.ContextMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Metadata:       metadata,
	})
}

func (s *MemoryService) conversationIDs(ctx context.Context, userID string) ([]string, error) {
	convs, err := s.db.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

// GetContext returns the user's most recent turns across all conversations
// in chronological order. The underlying fetch is most-recent-first and
// re-reversed here.
func (s *MemoryService) GetContext(ctx context.Context, userID string, limit int) ([]models.ContextMessage, error) {
	if limit <= 0 {
		limit = s.contextLimit
	}
	ids, err := s.conversationIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	recent, err := s.db.ListRecentMessages(ctx, ids, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// ContextText renders recent turns as labeled transcript lines for prompts.
func (s *MemoryService) ContextText(ctx context.Context, userID string, limit int) (string, error) {
	messages, err := s.GetContext(ctx, userID, limit)
	if err != nil || len(messages) == 0 {
		return "", err
	}
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		label := "Usuario"
		if msg.Role == "assistant" {
			label = "Tú"
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", label, msg.Content))
	}
	return strings.Join(lines, "\n"), nil
}

// SummarizeAndArchive archives the user's whole pending context as one
// Memory. Below the threshold and not forced it is a no-op. The raw turns
// are retained; only an explicit ClearContext deletes them.
func (s *MemoryService) SummarizeAndArchive(ctx context.Context, userID string, force bool) (*models.Memory, error) {
	ids, err := s.conversationIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return nil, err
	}

	messages, err := s.db.ListAllMessages(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	if len(messages) < s.summarizeAfter && !force {
		return nil, nil
	}

	lines := make([]string, 0, len(messages))
	channels := make(map[string]struct{})
	for _, msg := range messages {
		label := "Usuario"
		if msg.Role == "assistant" {
			label = "Aureon"
		}
		lines = append(lines, fmt.Sprintf("[%s]: %s", label, msg.Content))
		channels[msg.Channel] = struct{}{}
	}
	content := strings.Join(lines, "\n")

	summary := s.generateSummary(ctx, content, len(messages))
	embedding, err := s.embedder.Generate(ctx, summary)
	if err != nil {
		return nil, fmt.Errorf("embed summary: %w", err)
	}

	sourceChannel := "mixed"
	if len(channels) == 1 {
		for ch := range channels {
			sourceChannel = ch
		}
	}

	mem := &models.Memory{
		ID:            uuid.NewString(),
		UserID:        userID,
		Content:       content,
		Summary:       summary,
		Embedding:     embedding,
		SourceChannel: sourceChannel,
		MessageCount:  len(messages),
		TimeStart:     timePtr(messages[0].CreatedAt),
		TimeEnd:       timePtr(messages[len(messages)-1].CreatedAt),
		Importance:    0.5,
	}
	if err := s.db.InsertMemory(ctx, mem); err != nil {
		return nil, fmt.Errorf("insert memory: %w", err)
	}
	return mem, nil
}

const summarySystemPrompt = "Eres un asistente especializado en resumir conversaciones. " +
	"Crea un resumen conciso (2-3 oraciones) que capture temas y decisiones."

func (s *MemoryService) generateSummary(ctx context.Context, content string, messageCount int) string {
	summary, _, err := s.pool.Complete(ctx, core.CompletionRequest{
		Prompt:       "Resume esta conversación:\n\n" + content,
		SystemPrompt: summarySystemPrompt,
		MaxTokens:    200,
		Temperature:  0.3,
	})
	if err != nil {
		s.logger.Warn("summary generation failed, using fallback", zap.Error(err))
		return fmt.Sprintf("Conversación de %d mensajes", messageCount)
	}
	return summary
}

// SearchMemories embeds the query and runs a similarity search scoped to the
// user, returning memory/score pairs.
func (s *MemoryService) SearchMemories(ctx context.Context, userID, query string, k int) ([]models.MemoryMatch, error) {
	queryVec, err := s.embedder.Generate(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return s.db.SearchMemories(ctx, userID, queryVec, k)
}

// RelevantContext renders memories above the similarity floor as a prompt
// block. Search failures degrade to an empty block.
func (s *MemoryService) RelevantContext(ctx context.Context, userID, query string, k int) string {
	matches, err := s.SearchMemories(ctx, userID, query, k)
	if err != nil {
		s.logger.Warn("memory search failed", zap.Error(err))
		return ""
	}

	lines := []string{"[Memorias relevantes:]"}
	for _, match := range matches {
		if match.Similarity > similarityFloor {
			lines = append(lines, "- "+match.Memory.Summary)
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// Stats reports the user's context and memory footprint.
func (s *MemoryService) Stats(ctx context.Context, userID string) (*models.UserStats, error) {
	ids, err := s.conversationIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	msgCount := 0
	if len(ids) > 0 {
		if msgCount, err = s.db.CountMessages(ctx, ids); err != nil {
			return nil, err
		}
	}
	memCount, err := s.db.CountMemories(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.UserStats{
		ActiveContextMessages: msgCount,
		ArchivedMemories:      memCount,
		TotalMessages:         msgCount,
	}, nil
}

// ClearContext deletes all turns across the user's conversations. Archived
// memories are permanent and untouched.
func (s *MemoryService) ClearContext(ctx context.Context, userID string) error {
	ids, err := s.conversationIDs(ctx, userID)
	if err != nil || len(ids) == 0 {
		return err
	}
	return s.db.DeleteMessages(ctx, ids)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
