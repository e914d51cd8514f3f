package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	middleware "github.com/multiversa/cortex/internal/api/middlewares"
	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/services"
)

// MemoryHandler exposes the memory vault and the tenant knowledge base.
type MemoryHandler struct {
	memory   *services.MemoryService
	identity *services.IdentityRegistry
	dbclient core.DbClient
	embedder core.EmbeddingProvider
	logger   *zap.Logger
}

func NewMemoryHandler(memory *services.MemoryService, identity *services.IdentityRegistry, dbclient core.DbClient, embedder core.EmbeddingProvider, logger *zap.Logger) *MemoryHandler {
	return &MemoryHandler{memory: memory, identity: identity, dbclient: dbclient, embedder: embedder, logger: logger}
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.K <= 0 {
		req.K = 5
	}

	matches, err := h.memory.SearchMemories(ctx, middleware.UserID(ctx), req.Query, req.K)
	if err != nil {
		h.logger.Error("memory search failed", zap.Error(err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	results := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		results = append(results, map[string]any{
			"id":         m.Memory.ID,
			"summary":    m.Memory.Summary,
			"similarity": m.Similarity,
			"created_at": m.Memory.CreatedAt,
		})
	}
	writeJSON(w, map[string]any{"status": "success", "query": req.Query, "results": results})
}

func (h *MemoryHandler) Context(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	messages, err := h.memory.GetContext(ctx, middleware.UserID(ctx), limit)
	if err != nil {
		h.logger.Error("context fetch failed", zap.Error(err))
		http.Error(w, "context fetch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "count": len(messages), "messages": messages})
}

// Summarize forces the archive transition regardless of backlog size.
func (h *MemoryHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	memory, err := h.memory.SummarizeAndArchive(ctx, middleware.UserID(ctx), true)
	if err != nil {
		h.logger.Error("forced summarize failed", zap.Error(err))
		http.Error(w, "summarize failed", http.StatusInternalServerError)
		return
	}
	if memory == nil {
		writeJSON(w, map[string]string{"status": "no_action", "message": "No messages to summarize"})
		return
	}
	writeJSON(w, map[string]any{
		"status":        "success",
		"memory_id":     memory.ID,
		"summary":       memory.Summary,
		"message_count": memory.MessageCount,
	})
}

func (h *MemoryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.memory.ClearContext(ctx, middleware.UserID(ctx)); err != nil {
		h.logger.Error("context clear failed", zap.Error(err))
		http.Error(w, "clear failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "cleared"})
}

// KnowledgeSearch runs tenant-scoped semantic search over knowledge chunks.
func (h *MemoryHandler) KnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.K <= 0 {
		req.K = 5
	}

	profile, err := h.identity.GetProfile(ctx, middleware.UserID(ctx))
	if err != nil || profile == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	queryVec, err := h.embedder.Generate(ctx, req.Query)
	if err != nil {
		h.logger.Error("query embedding failed", zap.Error(err))
		http.Error(w, "knowledge search failed", http.StatusInternalServerError)
		return
	}

	chunks, err := h.dbclient.SearchKnowledgeChunks(ctx, profile.TenantID, queryVec, req.K)
	if err != nil {
		h.logger.Error("knowledge search failed", zap.Error(err))
		http.Error(w, "knowledge search failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "results": chunks})
}
