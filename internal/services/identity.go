// Package services implements the message-processing pipeline and its
// collaborators: identity resolution, the memory/context lifecycle, card
// generation, the sub-agent fleet and the task tracker.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
)

var (
	// ErrProfileNotFound is returned when no profile resolves for a
	// channel identifier or user id.
	ErrProfileNotFound = errors.New("user profile not found")
	// ErrInvalidOrExpiredCode is returned for unknown, consumed or stale
	// verification codes.
	ErrInvalidOrExpiredCode = errors.New("invalid or expired verification code")
)

const verificationTTL = 15 * time.Minute

// IdentityRegistry resolves channel-specific identifiers to canonical user
// profiles and manages time-limited channel linking codes.
type IdentityRegistry struct {
	db core.DbClient
}

func NewIdentityRegistry(db core.DbClient) *IdentityRegistry {
	return &IdentityRegistry{db: db}
}

// NormalizePhone strips '+' and spaces so formatting differences never
// produce false negatives or duplicate profiles.
func NormalizePhone(phone string) string {
	return strings.NewReplacer("+", "", " ", "").Replace(phone)
}

// EnsureProfile is an idempotent get-or-create keyed by the authenticated
// user id. Creation derives a display name from the email's local part; the
// personal tenant defaults to the user's own id.
func (r *IdentityRegistry) EnsureProfile(ctx context.Context, userID, email string) (*models.UserProfile, error) {
	existing, err := r.db.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	profile := &models.UserProfile{
		ID:          userID,
		TenantID:    userID,
		Email:       email,
		DisplayName: displayNameFromEmail(email),
		Tier:        "free",
	}
	if err := r.db.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return r.db.GetProfile(ctx, userID)
}

func displayNameFromEmail(email string) string {
	if email == "" {
		return "User"
	}
	local, _, _ := strings.Cut(email, "@")
	if local == "" {
		return "User"
	}
	return local
}

func (r *IdentityRegistry) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	return r.db.GetProfile(ctx, userID)
}

func (r *IdentityRegistry) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	return r.db.GetProfileByEmail(ctx, email)
}

// ResolveByChannel looks up a profile by its channel identifier. Phone
// numbers are normalized before lookup.
func (r *IdentityRegistry) ResolveByChannel(ctx context.Context, channel, identifier string) (*models.UserProfile, error) {
	switch channel {
	case models.ChannelTelegram:
		telegramID, err := strconv.ParseInt(identifier, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram id %q: %w", identifier, err)
		}
		return r.db.GetProfileByTelegram(ctx, telegramID)
	case models.ChannelWhatsApp:
		return r.db.GetProfileByWhatsApp(ctx, NormalizePhone(identifier))
	default:
		return nil, fmt.Errorf("unknown channel: %s", channel)
	}
}

// Resolve maps an inbound message's channel identity to a profile. For pwa
// the authenticated user id is authoritative and missing profiles are
// created lazily; for the messaging channels the profile must already exist.
func (r *IdentityRegistry) Resolve(ctx context.Context, channel, identifier string, metadata map[string]any, authUserID string) (*models.UserProfile, error) {
	if channel == models.ChannelPWA {
		userID := authUserID
		if userID == "" {
			userID = identifier
		}
		profile, err := r.db.GetProfile(ctx, userID)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			return profile, nil
		}
		email, _ := metadata["email"].(string)
		return r.EnsureProfile(ctx, userID, email)
	}

	profile, err := r.ResolveByChannel(ctx, channel, identifier)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// CreateVerification issues a 6-digit linking code valid for 15 minutes.
// Code collisions are not checked; lookup is scoped by (code, channel) and
// codes are short-lived.
func (r *IdentityRegistry) CreateVerification(ctx context.Context, userID, channel string) (*models.ChannelVerification, error) {
	code, err := generateCode(6)
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}

	v := &models.ChannelVerification{
		ID:               uuid.NewString(),
		UserID:           userID,
		Channel:          channel,
		VerificationCode: code,
		ExpiresAt:        time.Now().UTC().Add(verificationTTL),
		CreatedAt:        time.Now().UTC(),
	}
	if err := r.db.CreateVerification(ctx, v); err != nil {
		return nil, fmt.Errorf("store verification: %w", err)
	}
	return v, nil
}

// VerifyChannel consumes a linking code: it binds the presented channel
// identifier to the owning profile and marks the code used. A code is
// consumed at most once, and expiry is enforced against the clock.
func (r *IdentityRegistry) VerifyChannel(ctx context.Context, code, channel, channelIdentifier string) (*models.UserProfile, error) {
	record, err := r.db.GetVerificationByCode(ctx, code, channel)
	if err != nil {
		return nil, fmt.Errorf("lookup verification: %w", err)
	}
	if record == nil || record.VerifiedAt != nil {
		return nil, ErrInvalidOrExpiredCode
	}

	now := time.Now().UTC()
	if now.After(record.ExpiresAt) {
		return nil, ErrInvalidOrExpiredCode
	}

	switch channel {
	case models.ChannelTelegram:
		telegramID, err := strconv.ParseInt(channelIdentifier, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram id %q: %w", channelIdentifier, err)
		}
		if err := r.db.LinkTelegram(ctx, record.UserID, telegramID, now); err != nil {
			return nil, fmt.Errorf("link telegram: %w", err)
		}
	case models.ChannelWhatsApp:
		if err := r.db.LinkWhatsApp(ctx, record.UserID, NormalizePhone(channelIdentifier), now); err != nil {
			return nil, fmt.Errorf("link whatsapp: %w", err)
		}
	default:
		return nil, fmt.Errorf("channel %s cannot be linked", channel)
	}

	if err := r.db.ConsumeVerification(ctx, record.ID, channelIdentifier, now); err != nil {
		return nil, fmt.Errorf("consume verification: %w", err)
	}

	return r.db.GetProfile(ctx, record.UserID)
}

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	digits := make([]byte, length)
	for i, b := range buf {
		digits[i] = '0' + b%10
	}
	return string(digits), nil
}
