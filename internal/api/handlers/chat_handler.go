package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	middleware "github.com/multiversa/cortex/internal/api/middlewares"
	"github.com/multiversa/cortex/internal/models"
	"github.com/multiversa/cortex/internal/services"
)

type ChatHandler struct {
	orchestrator *services.Orchestrator
	tracker      *services.TaskTracker
	logger       *zap.Logger
}

func NewChatHandler(orchestrator *services.Orchestrator, tracker *services.TaskTracker, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{orchestrator: orchestrator, tracker: tracker, logger: logger}
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (h *ChatHandler) buildMessage(r *http.Request, req chatRequest) *models.Message {
	userID := middleware.UserID(r.Context())
	metadata := map[string]any{}
	if req.ConversationID != "" {
		metadata["conversation_id"] = req.ConversationID
	}
	return &models.Message{
		ID:        uuid.NewString(),
		Channel:   models.ChannelPWA,
		SenderID:  userID,
		Content:   req.Message,
		Timestamp: time.Now().UTC(),
		TenantID:  userID,
		UserID:    userID,
		Metadata:  metadata,
	}
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	response, err := h.orchestrator.Process(r.Context(), h.buildMessage(r, req))
	if err != nil {
		h.logger.Error("chat processing failed", zap.Error(err))
		http.Error(w, "processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, response)
}

// ChatStream runs the same pipeline while emitting SSE progress events: one
// per step transition, then a terminal complete or error event.
func (h *ChatHandler) ChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	taskID := uuid.NewString()
	h.tracker.Create(taskID, req.Message)

	emit := func(event map[string]any) {
		payload, _ := json.Marshal(event)
		w.Write([]byte("data: "))
		w.Write(payload)
		w.Write([]byte("\n\n"))
		flusher.Flush()
	}

	h.tracker.UpdateStep(taskID, 1, models.StatusActive, "")
	emit(map[string]any{"type": "step", "step": 1, "status": "active", "description": "Analizando mensaje"})
	h.tracker.UpdateStep(taskID, 1, models.StatusComplete, "Mensaje parseado")
	emit(map[string]any{"type": "step", "step": 1, "status": "complete", "result": "Mensaje parseado"})

	h.tracker.UpdateStep(taskID, 2, models.StatusActive, "")
	emit(map[string]any{"type": "step", "step": 2, "status": "active", "description": "Procesando contexto"})
	msg := h.buildMessage(r, req)
	msg.ID = taskID
	h.tracker.UpdateStep(taskID, 2, models.StatusComplete, "Contexto cargado")
	emit(map[string]any{"type": "step", "step": 2, "status": "complete", "result": "Contexto cargado"})

	h.tracker.UpdateStep(taskID, 3, models.StatusActive, "")
	emit(map[string]any{"type": "step", "step": 3, "status": "active", "description": "Generando respuesta"})

	response, err := h.orchestrator.Process(r.Context(), msg)
	if err != nil {
		h.logger.Error("streamed chat failed", zap.Error(err))
		h.tracker.Fail(taskID, err.Error())
		emit(map[string]any{"type": "error", "message": err.Error()})
		return
	}

	h.tracker.UpdateStep(taskID, 3, models.StatusComplete, "Respuesta lista")
	emit(map[string]any{"type": "step", "step": 3, "status": "complete", "result": "Respuesta lista"})

	h.tracker.Complete(taskID, response.Content, response.Card)
	emit(map[string]any{
		"type":               "complete",
		"task_id":            taskID,
		"response":           response.Content,
		"card":               response.Card,
		"citations":          response.Citations,
		"user_id":            response.UserID,
		"user_name":          response.UserName,
		"conversation_id":    response.ConversationID,
		"processing_time_ms": response.ProcessingTimeMs,
	})
}

func (h *ChatHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	task := h.tracker.Get(chi.URLParam(r, "id"))
	if task == nil {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, task)
}
