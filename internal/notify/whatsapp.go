// Package notify delivers outbound messages: WhatsApp sends over the Meta
// Cloud API, email notices over SMTP, and a best-effort background
// dispatcher for the fire-and-forget ones.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/observability"
	"github.com/akivoy/orion/internal/retry"
)

const graphBaseURL = "https://graph.facebook.com"

// WhatsAppSender sends messages through the Meta Cloud API.
type WhatsAppSender struct {
	httpClient *http.Client
	baseURL    string
	token      string
	phoneID    string
	apiVersion string
	wordsLimit int
	log        *observability.Logger
}

// NewWhatsAppSender creates a sender from configuration.
func NewWhatsAppSender(cfg config.WhatsAppConfig, log *observability.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    graphBaseURL,
		token:      cfg.Token,
		phoneID:    cfg.PhoneNumberID,
		apiVersion: cfg.APIVersion,
		wordsLimit: cfg.WordsLimit,
		log:        log,
	}
}

// SetBaseURL points the sender at a different Graph API host. Tests use it
// to target a local stub.
func (s *WhatsAppSender) SetBaseURL(url string) { s.baseURL = url }

func (s *WhatsAppSender) messagesURL() string {
	return fmt.Sprintf("%s/%s/%s/messages", s.baseURL, s.apiVersion, s.phoneID)
}

// SendText delivers a plain text message.
func (s *WhatsAppSender) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": body},
	}
	return s.post(ctx, payload)
}

// SendImage delivers an image by URL with an optional caption.
func (s *WhatsAppSender) SendImage(ctx context.Context, to, link, caption string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "image",
		"image":             map[string]string{"link": link, "caption": caption},
	}
	return s.post(ctx, payload)
}

// SendTextWithRetry retries a text send three times with a 500ms pause,
// for notices that matter more than latency.
func (s *WhatsAppSender) SendTextWithRetry(ctx context.Context, to, body string) error {
	return retry.Do(ctx, retry.Linear(3, 500*time.Millisecond), func() error {
		return s.SendText(ctx, to, body)
	})
}

// SendChunked splits an answer at the configured limit and delivers the
// pieces in order. Most answers fit in one piece.
func (s *WhatsAppSender) SendChunked(ctx context.Context, to, body string) error {
	chunks := SplitAtLimit(body, s.wordsLimit)
	if len(chunks) > 1 {
		s.log.Warn(ctx, "answer fragmented for delivery", "chunks", len(chunks))
	}
	for _, chunk := range chunks {
		if err := s.SendText(ctx, to, chunk); err != nil {
			return err
		}
	}
	return nil
}

// MarkAsRead flags an inbound message as read so the user sees the blue
// checkmarks while the answer is being prepared.
func (s *WhatsAppSender) MarkAsRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return s.post(ctx, payload)
}

func (s *WhatsAppSender) post(ctx context.Context, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp: http %d: %s", resp.StatusCode, data)
	}
	return nil
}
