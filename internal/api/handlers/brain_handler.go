package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	middleware "github.com/multiversa/cortex/internal/api/middlewares"
	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
	"github.com/multiversa/cortex/internal/services"
)

// BrainHandler exposes tenant secrets and the NanoAureon fleet.
type BrainHandler struct {
	dbclient core.DbClient
	identity *services.IdentityRegistry
	fleet    *services.NanoFleet
	logger   *zap.Logger
}

func NewBrainHandler(dbclient core.DbClient, identity *services.IdentityRegistry, fleet *services.NanoFleet, logger *zap.Logger) *BrainHandler {
	return &BrainHandler{dbclient: dbclient, identity: identity, fleet: fleet, logger: logger}
}

type secretRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SaveSecret upserts one tenant key/value secret. The value never appears in
// logs or responses.
func (h *BrainHandler) SaveSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req secretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	profile, err := h.identity.GetProfile(ctx, middleware.UserID(ctx))
	if err != nil || profile == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	err = h.dbclient.UpsertSecret(ctx, &models.TenantSecret{
		TenantID:  profile.TenantID,
		Key:       req.Key,
		Value:     req.Value,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Error("secret upsert failed", zap.Error(err), zap.String("key", req.Key))
		http.Error(w, "secret save failed", http.StatusInternalServerError)
		return
	}

	h.logger.Info("secret stored", zap.String("key", req.Key))
	writeJSON(w, map[string]string{"status": "encrypted", "key": req.Key})
}

// GetSecret reports whether a secret exists and when it changed. The value
// itself is never returned.
func (h *BrainHandler) GetSecret(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	profile, err := h.identity.GetProfile(ctx, middleware.UserID(ctx))
	if err != nil || profile == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}

	secret, err := h.dbclient.GetSecret(ctx, profile.TenantID, key)
	if err != nil {
		h.logger.Error("secret lookup failed", zap.Error(err), zap.String("key", key))
		http.Error(w, "secret lookup failed", http.StatusInternalServerError)
		return
	}
	if secret == nil {
		http.Error(w, "secret not found", http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]any{
		"key":        secret.Key,
		"updated_at": secret.UpdatedAt,
	})
}

func (h *BrainHandler) ListNanoAureons(w http.ResponseWriter, r *http.Request) {
	fleet := h.fleet.List()
	writeJSON(w, map[string]any{
		"status": "success",
		"count":  len(fleet),
		"fleet":  fleet,
	})
}

type nanoRequest struct {
	Task string `json:"task"`
}

func (h *BrainHandler) ExecuteNanoAureon(w http.ResponseWriter, r *http.Request) {
	nanoType := chi.URLParam(r, "type")

	var req nanoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Task == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	result, err := h.fleet.Delegate(r.Context(), nanoType, req.Task)
	if err != nil {
		if errors.Is(err, services.ErrUnknownNanoType) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("nanoaureon execution failed", zap.Error(err), zap.String("type", nanoType))
		http.Error(w, "execution failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"status":    "success",
		"nano_type": nanoType,
		"result":    result,
	})
}
