package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/multiversa/cortex/internal/config"
	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
)

// DatabaseClient implements core.DbClient on Postgres with pgvector.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (core.DbClient, error) {
	if cfg == nil {
		return nil, errors.New("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Profiles

func (c *DatabaseClient) CreateProfile(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return errors.New("nil profile")
	}
	prefs, err := json.Marshal(prefsOrEmpty(profile.Preferences))
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	const q = `
		INSERT INTO user_profiles (id, tenant_id, email, display_name, password_hash, tier, preferences, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		profile.ID, profile.TenantID, profile.Email, profile.DisplayName,
		profile.PasswordHash, profile.Tier, prefs, nullTime(profile.CreatedAt))
	return err
}

const profileColumns = `
	id, tenant_id, email, display_name, password_hash,
	telegram_id, telegram_verified_at, whatsapp_phone, whatsapp_verified_at,
	tier, preferences, created_at`

func (c *DatabaseClient) scanProfile(row *sql.Row) (*models.UserProfile, error) {
	var (
		p     models.UserProfile
		prefs []byte
	)
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Email, &p.DisplayName, &p.PasswordHash,
		&p.TelegramID, &p.TelegramVerifiedAt, &p.WhatsAppPhone, &p.WhatsAppVerifiedAt,
		&p.Tier, &prefs, &p.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		_ = json.Unmarshal(prefs, &p.Preferences)
	}
	return &p, nil
}

func (c *DatabaseClient) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM user_profiles WHERE id = $1`
	return c.scanProfile(c.db.QueryRowContext(ctx, q, id))
}

func (c *DatabaseClient) GetProfileByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM user_profiles WHERE email = $1`
	return c.scanProfile(c.db.QueryRowContext(ctx, q, email))
}

func (c *DatabaseClient) GetProfileByTelegram(ctx context.Context, telegramID int64) (*models.UserProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM user_profiles WHERE telegram_id = $1`
	return c.scanProfile(c.db.QueryRowContext(ctx, q, telegramID))
}

func (c *DatabaseClient) GetProfileByWhatsApp(ctx context.Context, phone string) (*models.UserProfile, error) {
	q := `SELECT ` + profileColumns + ` FROM user_profiles WHERE whatsapp_phone = $1`
	return c.scanProfile(c.db.QueryRowContext(ctx, q, phone))
}

func (c *DatabaseClient) ListProfileIDs(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id FROM user_profiles ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) LinkTelegram(ctx context.Context, userID string, telegramID int64, at time.Time) error {
	const q = `UPDATE user_profiles SET telegram_id = $2, telegram_verified_at = $3 WHERE id = $1`
	return c.execOne(ctx, q, userID, telegramID, at)
}

func (c *DatabaseClient) LinkWhatsApp(ctx context.Context, userID string, phone string, at time.Time) error {
	const q = `UPDATE user_profiles SET whatsapp_phone = $2, whatsapp_verified_at = $3 WHERE id = $1`
	return c.execOne(ctx, q, userID, phone, at)
}

// Verifications

func (c *DatabaseClient) CreateVerification(ctx context.Context, v *models.ChannelVerification) error {
	if v == nil {
		return errors.New("nil verification")
	}
	const q = `
		INSERT INTO channel_verifications (id, user_id, channel, verification_code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		v.ID, v.UserID, v.Channel, v.VerificationCode, v.ExpiresAt, nullTime(v.CreatedAt))
	return err
}

func (c *DatabaseClient) GetVerificationByCode(ctx context.Context, code, channel string) (*models.ChannelVerification, error) {
	const q = `
		SELECT id, user_id, channel, verification_code, channel_identifier, expires_at, verified_at, created_at
		FROM channel_verifications
		WHERE verification_code = $1 AND channel = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var v models.ChannelVerification
	err := c.db.QueryRowContext(ctx, q, code, channel).Scan(
		&v.ID, &v.UserID, &v.Channel, &v.VerificationCode,
		&v.ChannelIdentifier, &v.ExpiresAt, &v.VerifiedAt, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *DatabaseClient) ConsumeVerification(ctx context.Context, id, channelIdentifier string, at time.Time) error {
	const q = `
		UPDATE channel_verifications
		SET verified_at = $2, channel_identifier = $3
		WHERE id = $1 AND verified_at IS NULL
	`
	return c.execOne(ctx, q, id, at, channelIdentifier)
}

// Conversations

func (c *DatabaseClient) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	const q = `
		SELECT id, tenant_id, channel, channel_user_id, user_id, status, created_at
		FROM conversations WHERE id = $1
	`
	var conv models.Conversation
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&conv.ID, &conv.TenantID, &conv.Channel, &conv.ChannelUserID,
		&conv.UserID, &conv.Status, &conv.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetOrCreateConversation resolves by (tenant_id, channel, channel_user_id),
// inserting on first use. The unique constraint plus ON CONFLICT DO NOTHING
// makes it idempotent under concurrent first messages.
func (c *DatabaseClient) GetOrCreateConversation(ctx context.Context, conv *models.Conversation) (*models.Conversation, error) {
	if conv == nil {
		return nil, errors.New("nil conversation")
	}
	const ins = `
		INSERT INTO conversations (id, tenant_id, channel, channel_user_id, user_id, status)
		VALUES ($1, $2, $3, $4, $5, 'active')
		ON CONFLICT (tenant_id, channel, channel_user_id) DO NOTHING
	`
	if _, err := c.db.ExecContext(ctx, ins,
		conv.ID, conv.TenantID, conv.Channel, conv.ChannelUserID, conv.UserID); err != nil {
		return nil, err
	}

	const sel = `
		SELECT id, tenant_id, channel, channel_user_id, user_id, status, created_at
		FROM conversations
		WHERE tenant_id = $1 AND channel = $2 AND channel_user_id = $3
	`
	var out models.Conversation
	err := c.db.QueryRowContext(ctx, sel, conv.TenantID, conv.Channel, conv.ChannelUserID).Scan(
		&out.ID, &out.TenantID, &out.Channel, &out.ChannelUserID,
		&out.UserID, &out.Status, &out.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *DatabaseClient) ListConversationsByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	const q = `
		SELECT id, tenant_id, channel, channel_user_id, user_id, status, created_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(
			&conv.ID, &conv.TenantID, &conv.Channel, &conv.ChannelUserID,
			&conv.UserID, &conv.Status, &conv.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, rows.Err()
}

// Messages

func (c *DatabaseClient) InsertMessage(ctx context.Context, msg *models.ContextMessage) error {
	if msg == nil {
		return errors.New("nil message")
	}
	meta, err := json.Marshal(prefsOrEmpty(msg.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	const q = `
		INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
	`
	_, err = c.db.ExecContext(ctx, q,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, meta, nullTime(msg.CreatedAt))
	return err
}

const messageColumns = `
	m.id, m.conversation_id, c.channel, m.role, m.content, m.metadata, m.created_at`

func scanMessages(rows *sql.Rows) ([]models.ContextMessage, error) {
	var out []models.ContextMessage
	for rows.Next() {
		var (
			msg  models.ContextMessage
			meta []byte
		)
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Channel, &msg.Role,
			&msg.Content, &meta, &msg.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &msg.Metadata)
		}
		out = append(out, msg)
	}
	return out, rows.Err()
}

// ListRecentMessages returns up to limit messages, most recent first.
func (c *DatabaseClient) ListRecentMessages(ctx context.Context, conversationIDs []string, limit int) ([]models.ContextMessage, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	q := `
		SELECT` + messageColumns + `
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = ANY($1)
		ORDER BY m.created_at DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, q, conversationIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

// ListAllMessages returns every message in ascending chronological order.
func (c *DatabaseClient) ListAllMessages(ctx context.Context, conversationIDs []string) ([]models.ContextMessage, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	q := `
		SELECT` + messageColumns + `
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = ANY($1)
		ORDER BY m.created_at
	`
	rows, err := c.db.QueryContext(ctx, q, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (c *DatabaseClient) CountMessages(ctx context.Context, conversationIDs []string) (int, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM messages WHERE conversation_id = ANY($1)`, conversationIDs).Scan(&n)
	return n, err
}

func (c *DatabaseClient) DeleteMessages(ctx context.Context, conversationIDs []string) error {
	if len(conversationIDs) == 0 {
		return nil
	}
	_, err := c.db.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ANY($1)`, conversationIDs)
	return err
}

// Memories

func (c *DatabaseClient) InsertMemory(ctx context.Context, mem *models.Memory) error {
	if mem == nil {
		return errors.New("nil memory")
	}
	const q = `
		INSERT INTO memories
			(id, user_id, content, summary, embedding, source_channel, message_count,
			 time_start, time_end, tags, importance, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, now()))
	`
	_, err := c.db.ExecContext(ctx, q,
		mem.ID, mem.UserID, mem.Content, mem.Summary, pgvector.NewVector(mem.Embedding),
		mem.SourceChannel, mem.MessageCount, mem.TimeStart, mem.TimeEnd,
		tagsOrEmpty(mem.Tags), mem.Importance, nullTime(mem.CreatedAt))
	return err
}

// SearchMemories runs a cosine similarity search scoped to the user. The
// returned similarity is 1 - cosine distance, in [0, 1] for unit-ish vectors.
func (c *DatabaseClient) SearchMemories(ctx context.Context, userID string, queryVec []float32, limit int) ([]models.MemoryMatch, error) {
	const q = `
		SELECT id, user_id, content, summary, source_channel, message_count, created_at,
		       1 - (embedding <=> $2) AS similarity
		FROM memories
		WHERE user_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, userID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MemoryMatch
	for rows.Next() {
		var match models.MemoryMatch
		if err := rows.Scan(
			&match.Memory.ID, &match.Memory.UserID, &match.Memory.Content,
			&match.Memory.Summary, &match.Memory.SourceChannel,
			&match.Memory.MessageCount, &match.Memory.CreatedAt, &match.Similarity,
		); err != nil {
			return nil, err
		}
		out = append(out, match)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) CountMemories(ctx context.Context, userID string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT count(*) FROM memories WHERE user_id = $1`, userID).Scan(&n)
	return n, err
}

// Knowledge

func (c *DatabaseClient) SearchKnowledgeChunks(ctx context.Context, tenantID string, queryVec []float32, limit int) ([]models.KnowledgeChunk, error) {
	const q = `
		SELECT id, tenant_id, content, source, created_at,
		       1 - (embedding <=> $2) AS similarity
		FROM knowledge_chunks
		WHERE tenant_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := c.db.QueryContext(ctx, q, tenantID, pgvector.NewVector(queryVec), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.KnowledgeChunk
	for rows.Next() {
		var ch models.KnowledgeChunk
		if err := rows.Scan(&ch.ID, &ch.TenantID, &ch.Content, &ch.Source, &ch.CreatedAt, &ch.Similarity); err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// Secrets

func (c *DatabaseClient) UpsertSecret(ctx context.Context, secret *models.TenantSecret) error {
	if secret == nil {
		return errors.New("nil secret")
	}
	const q = `
		INSERT INTO tenant_secrets (tenant_id, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`
	_, err := c.db.ExecContext(ctx, q, secret.TenantID, secret.Key, secret.Value)
	return err
}

func (c *DatabaseClient) GetSecret(ctx context.Context, tenantID, key string) (*models.TenantSecret, error) {
	const q = `
		SELECT tenant_id, key, value, updated_at
		FROM tenant_secrets WHERE tenant_id = $1 AND key = $2
	`
	var s models.TenantSecret
	err := c.db.QueryRowContext(ctx, q, tenantID, key).Scan(&s.TenantID, &s.Key, &s.Value, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// helpers

func (c *DatabaseClient) execOne(ctx context.Context, q string, args ...any) error {
	res, err := c.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func prefsOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
