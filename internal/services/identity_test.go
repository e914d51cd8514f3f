package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multiversa/cortex/internal/models"
)

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "5215512345678", NormalizePhone("+52 1 55 1234 5678"))
	assert.Equal(t, "5215512345678", NormalizePhone("5215512345678"))
	assert.Equal(t, NormalizePhone("+521 5512345678"), NormalizePhone("5215512345678"))
}

func TestEnsureProfileIdempotent(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)
	ctx := context.Background()

	first, err := reg.EnsureProfile(ctx, "u1", "moshe@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", first.ID)
	assert.Equal(t, "u1", first.TenantID)
	assert.Equal(t, "moshe", first.DisplayName)
	assert.Equal(t, "free", first.Tier)

	second, err := reg.EnsureProfile(ctx, "u1", "other@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "moshe@example.com", second.Email)
	assert.Len(t, db.profiles, 1)
}

func TestResolvePWACreatesLazily(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)

	profile, err := reg.Resolve(context.Background(), models.ChannelPWA, "u9", map[string]any{"email": "ana@example.com"}, "u9")
	require.NoError(t, err)
	assert.Equal(t, "u9", profile.ID)
	assert.Equal(t, "ana", profile.DisplayName)
}

func TestResolveUnlinkedChannelFails(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)

	_, err := reg.Resolve(context.Background(), models.ChannelTelegram, "12345", nil, "")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	_, err = reg.Resolve(context.Background(), models.ChannelWhatsApp, "+52 55 0000 0000", nil, "")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestCreateVerificationCodeShape(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)

	v, err := reg.CreateVerification(context.Background(), "u1", models.ChannelTelegram)
	require.NoError(t, err)
	assert.Len(t, v.VerificationCode, 6)
	for _, c := range v.VerificationCode {
		assert.GreaterOrEqual(t, c, '0')
		assert.LessOrEqual(t, c, '9')
	}
	assert.WithinDuration(t, time.Now().UTC().Add(15*time.Minute), v.ExpiresAt, time.Minute)
}

func TestVerifyChannelLinksTelegram(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)
	ctx := context.Background()

	_, err := reg.EnsureProfile(ctx, "u1", "moshe@example.com")
	require.NoError(t, err)
	v, err := reg.CreateVerification(ctx, "u1", models.ChannelTelegram)
	require.NoError(t, err)

	profile, err := reg.VerifyChannel(ctx, v.VerificationCode, models.ChannelTelegram, "987654321")
	require.NoError(t, err)
	require.NotNil(t, profile.TelegramID)
	assert.Equal(t, int64(987654321), *profile.TelegramID)
	assert.NotNil(t, profile.TelegramVerifiedAt)

	resolved, err := reg.Resolve(ctx, models.ChannelTelegram, "987654321", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", resolved.ID)
}

func TestVerifyChannelSingleUse(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)
	ctx := context.Background()

	_, err := reg.EnsureProfile(ctx, "u1", "moshe@example.com")
	require.NoError(t, err)
	v, err := reg.CreateVerification(ctx, "u1", models.ChannelTelegram)
	require.NoError(t, err)

	_, err = reg.VerifyChannel(ctx, v.VerificationCode, models.ChannelTelegram, "111")
	require.NoError(t, err)

	_, err = reg.VerifyChannel(ctx, v.VerificationCode, models.ChannelTelegram, "222")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestVerifyChannelExpiredCode(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)
	ctx := context.Background()

	_, err := reg.EnsureProfile(ctx, "u1", "moshe@example.com")
	require.NoError(t, err)
	v, err := reg.CreateVerification(ctx, "u1", models.ChannelWhatsApp)
	require.NoError(t, err)

	db.verifications[v.ID].ExpiresAt = time.Now().UTC().Add(-time.Minute)

	_, err = reg.VerifyChannel(ctx, v.VerificationCode, models.ChannelWhatsApp, "5215512345678")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

func TestVerifyChannelUnknownCode(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)

	_, err := reg.VerifyChannel(context.Background(), "000000", models.ChannelTelegram, "1")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredCode)
}

// Linking WhatsApp with one phone format and messaging with another still
// resolves the same profile.
func TestWhatsAppLinkThenResolveAcrossFormats(t *testing.T) {
	db := newFakeDB()
	reg := NewIdentityRegistry(db)
	ctx := context.Background()

	_, err := reg.EnsureProfile(ctx, "u1", "moshe@example.com")
	require.NoError(t, err)
	v, err := reg.CreateVerification(ctx, "u1", models.ChannelWhatsApp)
	require.NoError(t, err)

	_, err = reg.VerifyChannel(ctx, v.VerificationCode, models.ChannelWhatsApp, "+52 1 55 1234 5678")
	require.NoError(t, err)

	resolved, err := reg.Resolve(ctx, models.ChannelWhatsApp, "5215512345678", nil, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", resolved.ID)
	assert.NotNil(t, resolved.WhatsAppVerifiedAt)
}
