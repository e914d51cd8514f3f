package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/multiversa/cortex/internal/core"
	"github.com/multiversa/cortex/internal/models"
)

// fakeDB is an in-memory core.DbClient for service tests. Error injection is
// per-operation via the fail map.
type fakeDB struct {
	mu sync.Mutex

	profiles      map[string]*models.UserProfile
	verifications map[string]*models.ChannelVerification
	conversations map[string]*models.Conversation
	messages      []*models.ContextMessage
	memories      []*models.Memory
	chunks        []models.KnowledgeChunk
	secrets       map[string]*models.TenantSecret

	// similarity assigned to every memory in SearchMemories
	similarity float64

	fail map[string]error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		profiles:      make(map[string]*models.UserProfile),
		verifications: make(map[string]*models.ChannelVerification),
		conversations: make(map[string]*models.Conversation),
		secrets:       make(map[string]*models.TenantSecret),
		similarity:    0.9,
		fail:          make(map[string]error),
	}
}

func (f *fakeDB) failing(op string) error {
	return f.fail[op]
}

func (f *fakeDB) CreateProfile(_ context.Context, profile *models.UserProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("CreateProfile"); err != nil {
		return err
	}
	if _, exists := f.profiles[profile.ID]; exists {
		return errors.New("duplicate profile")
	}
	cp := *profile
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.profiles[cp.ID] = &cp
	return nil
}

func (f *fakeDB) GetProfile(_ context.Context, id string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("GetProfile"); err != nil {
		return nil, err
	}
	if p, ok := f.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeDB) GetProfileByEmail(_ context.Context, email string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) GetProfileByTelegram(_ context.Context, telegramID int64) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.TelegramID != nil && *p.TelegramID == telegramID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) GetProfileByWhatsApp(_ context.Context, phone string) (*models.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.profiles {
		if p.WhatsAppPhone != nil && *p.WhatsAppPhone == phone {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) ListProfileIDs(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.profiles))
	for id := range f.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeDB) LinkTelegram(_ context.Context, userID string, telegramID int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return errors.New("profile not found")
	}
	p.TelegramID = &telegramID
	p.TelegramVerifiedAt = &at
	return nil
}

func (f *fakeDB) LinkWhatsApp(_ context.Context, userID string, phone string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return errors.New("profile not found")
	}
	p.WhatsAppPhone = &phone
	p.WhatsAppVerifiedAt = &at
	return nil
}

func (f *fakeDB) CreateVerification(_ context.Context, v *models.ChannelVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *v
	f.verifications[v.ID] = &cp
	return nil
}

func (f *fakeDB) GetVerificationByCode(_ context.Context, code, channel string) (*models.ChannelVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.verifications {
		if v.VerificationCode == code && v.Channel == channel {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeDB) ConsumeVerification(_ context.Context, id, channelIdentifier string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.verifications[id]
	if !ok {
		return errors.New("verification not found")
	}
	v.ChannelIdentifier = &channelIdentifier
	v.VerifiedAt = &at
	return nil
}

func (f *fakeDB) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("GetConversation"); err != nil {
		return nil, err
	}
	if c, ok := f.conversations[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeDB) GetOrCreateConversation(_ context.Context, conv *models.Conversation) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("GetOrCreateConversation"); err != nil {
		return nil, err
	}
	for _, c := range f.conversations {
		if c.TenantID == conv.TenantID && c.Channel == conv.Channel && c.ChannelUserID == conv.ChannelUserID {
			cp := *c
			return &cp, nil
		}
	}
	cp := *conv
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.conversations[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeDB) ListConversationsByUser(_ context.Context, userID string) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeDB) InsertMessage(_ context.Context, msg *models.ContextMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("InsertMessage"); err != nil {
		return err
	}
	cp := *msg
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC().Add(time.Duration(len(f.messages)) * time.Millisecond)
	}
	if conv, ok := f.conversations[cp.ConversationID]; ok {
		cp.Channel = conv.Channel
	}
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeDB) inConversations(msg *models.ContextMessage, ids []string) bool {
	for _, id := range ids {
		if msg.ConversationID == id {
			return true
		}
	}
	return false
}

func (f *fakeDB) ListRecentMessages(_ context.Context, conversationIDs []string, limit int) ([]models.ContextMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextMessage
	for i := len(f.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if f.inConversations(f.messages[i], conversationIDs) {
			out = append(out, *f.messages[i])
		}
	}
	return out, nil
}

func (f *fakeDB) ListAllMessages(_ context.Context, conversationIDs []string) ([]models.ContextMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ContextMessage
	for _, msg := range f.messages {
		if f.inConversations(msg, conversationIDs) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (f *fakeDB) CountMessages(_ context.Context, conversationIDs []string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, msg := range f.messages {
		if f.inConversations(msg, conversationIDs) {
			count++
		}
	}
	return count, nil
}

func (f *fakeDB) DeleteMessages(_ context.Context, conversationIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.ContextMessage
	for _, msg := range f.messages {
		if !f.inConversations(msg, conversationIDs) {
			kept = append(kept, msg)
		}
	}
	f.messages = kept
	return nil
}

func (f *fakeDB) InsertMemory(_ context.Context, mem *models.Memory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("InsertMemory"); err != nil {
		return err
	}
	cp := *mem
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	f.memories = append(f.memories, &cp)
	return nil
}

func (f *fakeDB) SearchMemories(_ context.Context, userID string, _ []float32, limit int) ([]models.MemoryMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing("SearchMemories"); err != nil {
		return nil, err
	}
	var out []models.MemoryMatch
	for _, mem := range f.memories {
		if mem.UserID == userID && len(out) < limit {
			out = append(out, models.MemoryMatch{Memory: *mem, Similarity: f.similarity})
		}
	}
	return out, nil
}

func (f *fakeDB) CountMemories(_ context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, mem := range f.memories {
		if mem.UserID == userID {
			count++
		}
	}
	return count, nil
}

func (f *fakeDB) SearchKnowledgeChunks(_ context.Context, tenantID string, _ []float32, limit int) ([]models.KnowledgeChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.KnowledgeChunk
	for _, ch := range f.chunks {
		if ch.TenantID == tenantID && len(out) < limit {
			out = append(out, ch)
		}
	}
	return out, nil
}

func (f *fakeDB) UpsertSecret(_ context.Context, secret *models.TenantSecret) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *secret
	f.secrets[secret.TenantID+"/"+secret.Key] = &cp
	return nil
}

func (f *fakeDB) GetSecret(_ context.Context, tenantID, key string) (*models.TenantSecret, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.secrets[tenantID+"/"+key]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeDB) Close() error { return nil }

var _ core.DbClient = (*fakeDB)(nil)

// fakePool is a canned CompletionService recording every request.
type fakePool struct {
	mu       sync.Mutex
	reply    string
	provider string
	err      error
	requests []core.CompletionRequest
}

func newFakePool(reply string) *fakePool {
	return &fakePool{reply: reply, provider: "groq"}
}

func (p *fakePool) Complete(_ context.Context, req core.CompletionRequest) (string, string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return "", "error", p.err
	}
	return p.reply, p.provider, nil
}

func (p *fakePool) AvailableProviders() []string { return []string{p.provider} }

func (p *fakePool) lastRequest() core.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return core.CompletionRequest{}
	}
	return p.requests[len(p.requests)-1]
}

// fakeEmbedder returns a fixed-width constant vector.
type fakeEmbedder struct {
	dims int
	err  error
}

func (e *fakeEmbedder) Generate(_ context.Context, _ string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return make([]float32, e.dims), nil
}

// fakeResearcher returns canned citations, or an error.
type fakeResearcher struct {
	answer    string
	citations []models.Citation
	err       error
	calls     int
}

func (r *fakeResearcher) Search(_ context.Context, _ string, _ int) (string, []models.Citation, error) {
	r.calls++
	if r.err != nil {
		return "", nil, r.err
	}
	return r.answer, r.citations, nil
}
