package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"signup_funnel_backend/platform/config"
)

const brevoSendURL = "https://api.brevo.com/v3/smtp/email"

// Message is a templated email to a single recipient.
type Message struct {
	Template Template          `json:"template"`
	To       string            `json:"to"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Sender delivers a message and returns the provider's message id.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type NoopSender struct{}

func (NoopSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", nil
}

type BrevoSender struct {
	apiKey    string
	fromName  string
	fromEmail string
	endpoint  string
	client    *http.Client
}

type brevoEmailRequest struct {
	Sender struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"sender"`
	To []struct {
		Email string `json:"email"`
	} `json:"to"`
	Subject     string `json:"subject"`
	HTMLContent string `json:"htmlContent"`
}

type brevoEmailResponse struct {
	MessageID string `json:"messageId"`
}

// NewSender picks SMTP when a host is configured, Brevo otherwise, and a
// no-op sender when email is disabled.
func NewSender(cfg config.EmailConfig) (Sender, error) {
	if !cfg.GetEmailEnabled() {
		return NoopSender{}, nil
	}

	if cfg.GetSMTPHost() != "" {
		return NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
			cfg.GetEmailFromName(),
		), nil
	}

	if cfg.GetBrevoAPIKey() == "" {
		return nil, fmt.Errorf("email enabled but neither SMTP_HOST nor BREVO_API_KEY is set")
	}

	client := &http.Client{Timeout: 10 * time.Second}
	return &BrevoSender{
		apiKey:    cfg.GetBrevoAPIKey(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFromAddress(),
		endpoint:  brevoSendURL,
		client:    client,
	}, nil
}

func (b *BrevoSender) Send(ctx context.Context, msg Message) (string, error) {
	subject, content, err := Render(msg)
	if err != nil {
		return "", err
	}

	payload := brevoEmailRequest{
		Subject:     subject,
		HTMLContent: content,
	}
	payload.Sender.Name = b.fromName
	payload.Sender.Email = b.fromEmail
	payload.To = []struct {
		Email string `json:"email"`
	}{{Email: msg.To}}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, string(data))
	}

	var out brevoEmailResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode brevo response: %w", err)
	}
	return out.MessageID, nil
}
