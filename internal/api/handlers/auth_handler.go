// Package handlers implements the HTTP surface: auth, chat, channel linking
// and webhooks, memory and brain operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	middleware "github.com/multiversa/cortex/internal/api/middlewares"
	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
	"github.com/multiversa/cortex/internal/services"
)

type AuthHandler struct {
	dbclient  core.DbClient
	identity  *services.IdentityRegistry
	memory    *services.MemoryService
	jwtSecret string
}

func NewAuthHandler(dbclient core.DbClient, identity *services.IdentityRegistry, memory *services.MemoryService, jwtSecret string) *AuthHandler {
	return &AuthHandler{dbclient: dbclient, identity: identity, memory: memory, jwtSecret: jwtSecret}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	existing, err := h.dbclient.GetProfileByEmail(ctx, req.Email)
	if err != nil {
		http.Error(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		http.Error(w, "user exists", http.StatusConflict)
		return
	}

	hash, _ := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)

	userID := uuid.NewString()
	profile := &models.UserProfile{
		ID:           userID,
		TenantID:     userID,
		Email:        req.Email,
		DisplayName:  req.Name,
		PasswordHash: string(hash),
		Tier:         "free",
	}
	if profile.DisplayName == "" {
		if local, _, _ := strings.Cut(req.Email, "@"); local != "" {
			profile.DisplayName = local
		}
	}
	if err := h.dbclient.CreateProfile(ctx, profile); err != nil {
		http.Error(w, "user exists", http.StatusConflict)
		return
	}

	writeJSON(w, map[string]string{"token": h.generateJWT(profile.ID)})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	profile, err := h.dbclient.GetProfileByEmail(r.Context(), req.Email)
	if err != nil || profile == nil ||
		bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]string{"token": h.generateJWT(profile.ID)})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile, err := h.identity.GetProfile(ctx, middleware.UserID(ctx))
	if err != nil || profile == nil {
		http.Error(w, "profile not found", http.StatusNotFound)
		return
	}
	writeJSON(w, profile)
}

func (h *AuthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.memory.Stats(ctx, middleware.UserID(ctx))
	if err != nil {
		http.Error(w, "stats failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

func (h *AuthHandler) generateJWT(userID string) string {
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, _ := tok.SignedString([]byte(h.jwtSecret))
	return token
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
