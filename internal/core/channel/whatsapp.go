package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/multiversa/cortex/internal/core"
)

// WhatsApp hard message length limit.
const whatsappMaxLen = 4096

const graphBaseURL = "https://graph.facebook.com/v18.0"

// WhatsApp sends and parses messages for the WhatsApp Cloud API.
type WhatsApp struct {
	phoneID     string
	token       string
	verifyToken string
	allowed     map[string]struct{}
	// BaseURL may be overridden in tests.
	BaseURL string
	http    *http.Client
}

func NewWhatsApp(phoneID, token, verifyToken string, allowedPhones []string) *WhatsApp {
	allowed := make(map[string]struct{}, len(allowedPhones))
	for _, p := range allowedPhones {
		allowed[strings.ReplaceAll(p, "+", "")] = struct{}{}
	}
	return &WhatsApp{
		phoneID:     phoneID,
		token:       token,
		verifyToken: verifyToken,
		allowed:     allowed,
		BaseURL:     graphBaseURL,
		http:        &http.Client{Timeout: 30 * time.Second},
	}
}

// VerifyToken returns the webhook subscription verify token.
func (w *WhatsApp) VerifyToken() string { return w.verifyToken }

// IsAllowed reports whether the phone passes the whitelist. An empty
// whitelist allows everyone.
func (w *WhatsApp) IsAllowed(phone string) bool {
	if len(w.allowed) == 0 {
		return true
	}
	_, ok := w.allowed[strings.ReplaceAll(phone, "+", "")]
	return ok
}

func (w *WhatsApp) SendMessage(ctx context.Context, recipient, text string) core.SendResult {
	if w.phoneID == "" || w.token == "" {
		return core.SendResult{Error: "whatsapp not configured"}
	}
	if len(text) > whatsappMaxLen {
		text = text[:whatsappMaxLen]
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                strings.ReplaceAll(recipient, "+", ""),
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return core.SendResult{Error: err.Error()}
	}

	url := fmt.Sprintf("%s/%s/messages", w.BaseURL, w.phoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return core.SendResult{Error: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+w.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		return core.SendResult{Error: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return core.SendResult{Error: fmt.Sprintf("whatsapp send: status %d", resp.StatusCode)}
	}

	var sent struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&sent)

	result := core.SendResult{OK: true}
	if len(sent.Messages) > 0 {
		result.MessageID = sent.Messages[0].ID
	}
	return result
}

// WhatsAppIncoming is one parsed inbound WhatsApp message.
type WhatsAppIncoming struct {
	From      string
	Text      string
	MessageID string
	Timestamp string
}

type whatsAppWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From      string `json:"from"`
					ID        string `json:"id"`
					Timestamp string `json:"timestamp"`
					Text      struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseWhatsAppWebhook extracts the inbound message from a Cloud API webhook
// payload. Payloads without a text message are reported as not ok.
func ParseWhatsAppWebhook(body []byte) (*WhatsAppIncoming, bool) {
	var hook whatsAppWebhook
	if err := json.Unmarshal(body, &hook); err != nil {
		return nil, false
	}
	if len(hook.Entry) == 0 || len(hook.Entry[0].Changes) == 0 {
		return nil, false
	}
	msgs := hook.Entry[0].Changes[0].Value.Messages
	if len(msgs) == 0 || msgs[0].Text.Body == "" {
		return nil, false
	}
	msg := msgs[0]
	return &WhatsAppIncoming{
		From:      msg.From,
		Text:      msg.Text.Body,
		MessageID: msg.ID,
		Timestamp: msg.Timestamp,
	}, true
}

var _ core.ChannelSender = (*WhatsApp)(nil)
