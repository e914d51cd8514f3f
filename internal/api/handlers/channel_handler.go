package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	tgmodels "github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"go.uber.org/zap"

	middleware "github.com/multiversa/cortex/internal/api/middlewares"
	"github.com/multiversa/cortex/internal/core/channel"
	"github.com/multiversa/cortex/internal/models"
	"github.com/multiversa/cortex/internal/services"
)

// ChannelHandler owns channel linking plus the Telegram and WhatsApp webhook
// entry points. Unverified senders are blocked before any orchestration.
type ChannelHandler struct {
	identity     *services.IdentityRegistry
	orchestrator *services.Orchestrator
	telegram     *channel.Telegram
	whatsapp     *channel.WhatsApp
	domain       string
	logger       *zap.Logger
}

func NewChannelHandler(identity *services.IdentityRegistry, orchestrator *services.Orchestrator, telegram *channel.Telegram, whatsapp *channel.WhatsApp, domain string, logger *zap.Logger) *ChannelHandler {
	return &ChannelHandler{
		identity:     identity,
		orchestrator: orchestrator,
		telegram:     telegram,
		whatsapp:     whatsapp,
		domain:       domain,
		logger:       logger,
	}
}

type linkRequest struct {
	Channel string `json:"channel"`
}

func (h *ChannelHandler) Link(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.Channel != models.ChannelTelegram && req.Channel != models.ChannelWhatsApp {
		http.Error(w, "channel must be telegram or whatsapp", http.StatusBadRequest)
		return
	}

	verification, err := h.identity.CreateVerification(ctx, middleware.UserID(ctx), req.Channel)
	if err != nil {
		h.logger.Error("verification create failed", zap.Error(err))
		http.Error(w, "could not create verification", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"status":       "pending",
		"channel":      req.Channel,
		"code":         verification.VerificationCode,
		"expires_at":   verification.ExpiresAt,
		"instructions": fmt.Sprintf("Envía este código a tu bot de %s: %s", req.Channel, verification.VerificationCode),
	})
}

type verifyRequest struct {
	Code              string `json:"code"`
	Channel           string `json:"channel"`
	ChannelIdentifier string `json:"channel_identifier"`
}

func (h *ChannelHandler) Verify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	profile, err := h.identity.VerifyChannel(ctx, req.Code, req.Channel, req.ChannelIdentifier)
	if err != nil {
		if errors.Is(err, services.ErrInvalidOrExpiredCode) {
			http.Error(w, "invalid or expired code", http.StatusBadRequest)
			return
		}
		h.logger.Error("channel verify failed", zap.Error(err))
		http.Error(w, "verification failed", http.StatusInternalServerError)
		return
	}
	if profile == nil || profile.ID != middleware.UserID(ctx) {
		http.Error(w, "verification does not match user", http.StatusForbidden)
		return
	}

	writeJSON(w, map[string]any{
		"status":  "verified",
		"channel": req.Channel,
		"user_id": profile.ID,
	})
}

// WhatsAppVerify answers Meta's webhook subscription handshake: echo the
// challenge when the verify token matches.
func (h *ChannelHandler) WhatsAppVerify(w http.ResponseWriter, r *http.Request) {
	if h.whatsapp == nil || h.whatsapp.VerifyToken() == "" {
		http.Error(w, "whatsapp verify token not configured", http.StatusInternalServerError)
		return
	}

	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == h.whatsapp.VerifyToken() {
		w.Write([]byte(q.Get("hub.challenge")))
		return
	}
	http.Error(w, "invalid verify token", http.StatusForbidden)
}

func (h *ChannelHandler) WhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read failed", http.StatusBadRequest)
		return
	}

	incoming, ok := channel.ParseWhatsAppWebhook(body)
	if !ok {
		writeJSON(w, map[string]string{"status": "ignored"})
		return
	}

	if h.whatsapp == nil || !h.whatsapp.IsAllowed(incoming.From) {
		h.logger.Info("whatsapp blocked by whitelist", zap.String("from", incoming.From))
		writeJSON(w, map[string]string{"status": "blocked"})
		return
	}

	profile, err := h.identity.ResolveByChannel(ctx, models.ChannelWhatsApp, incoming.From)
	if err != nil || profile == nil || profile.WhatsAppVerifiedAt == nil {
		h.logger.Info("whatsapp blocked, not verified", zap.String("from", incoming.From))
		writeJSON(w, map[string]string{"status": "blocked"})
		return
	}

	response, err := h.orchestrator.Process(ctx, &models.Message{
		ID:        uuid.NewString(),
		Channel:   models.ChannelWhatsApp,
		SenderID:  incoming.From,
		Content:   incoming.Text,
		Timestamp: time.Now().UTC(),
		TenantID:  profile.TenantID,
		UserID:    profile.ID,
	})
	if err != nil {
		h.logger.Error("whatsapp processing failed", zap.Error(err))
		writeJSON(w, map[string]string{"status": "error", "detail": err.Error()})
		return
	}

	sent := h.whatsapp.SendMessage(ctx, incoming.From, response.Content)
	writeJSON(w, map[string]any{"status": "processed", "sent": sent})
}

func (h *ChannelHandler) TelegramWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var update tgmodels.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	incoming, ok := channel.ParseTelegramUpdate(&update)
	if !ok {
		writeJSON(w, map[string]string{"status": "ignored"})
		return
	}
	chatID := strconv.FormatInt(incoming.ChatID, 10)

	if h.telegram == nil || !h.telegram.IsAllowed(incoming.UserID) {
		h.logger.Info("telegram blocked by whitelist", zap.Int64("user_id", incoming.UserID))
		writeJSON(w, map[string]string{"status": "blocked"})
		return
	}

	profile, err := h.identity.ResolveByChannel(ctx, models.ChannelTelegram, strconv.FormatInt(incoming.UserID, 10))
	if err != nil || profile == nil || profile.TelegramVerifiedAt == nil {
		h.logger.Info("telegram blocked, not verified", zap.Int64("user_id", incoming.UserID))
		writeJSON(w, map[string]string{"status": "blocked"})
		return
	}

	if incoming.Text == "/start" {
		h.telegram.SendMessage(ctx, chatID, "🌀 <b>Auréon activado.</b>\n\n¿En qué puedo ayudarte?")
		writeJSON(w, map[string]string{"status": "start_sent"})
		return
	}

	response, err := h.orchestrator.Process(ctx, &models.Message{
		ID:        uuid.NewString(),
		Channel:   models.ChannelTelegram,
		SenderID:  strconv.FormatInt(incoming.UserID, 10),
		Content:   incoming.Text,
		Timestamp: time.Now().UTC(),
		TenantID:  profile.TenantID,
		UserID:    profile.ID,
	})
	if err != nil {
		h.logger.Error("telegram processing failed", zap.Error(err))
		h.telegram.SendMessage(ctx, chatID, "⚠️ Error: "+truncate(err.Error(), 100))
		writeJSON(w, map[string]string{"status": "error", "detail": err.Error()})
		return
	}

	sent := h.telegram.SendMessage(ctx, chatID, response.Content)
	writeJSON(w, map[string]any{"status": "processed", "sent": sent})
}

// SetTelegramWebhook points the bot at this deployment's webhook URL.
func (h *ChannelHandler) SetTelegramWebhook(w http.ResponseWriter, r *http.Request) {
	if h.telegram == nil {
		http.Error(w, "telegram not configured", http.StatusInternalServerError)
		return
	}
	url := h.domain + "/webhook/telegram"
	if err := h.telegram.SetWebhook(r.Context(), url); err != nil {
		h.logger.Error("set webhook failed", zap.Error(err))
		http.Error(w, "set webhook failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"status": "success", "url": url})
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
