package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tinytales/storefront-backend/pkg/config"
	"github.com/tinytales/storefront-backend/pkg/httpclient"
)

var ErrMailerDisabled = errors.New("mailer api key not configured")

// Message is a plain-text transactional email.
type Message struct {
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, msg Message) error
}

// ResendMailer posts messages to a Resend-compatible /emails endpoint.
type ResendMailer struct {
	apiKey  string
	baseURL string
	from    string
	http    *http.Client
}

func NewResendMailer(cfg config.MailerConfig, httpClient *http.Client) *ResendMailer {
	if httpClient == nil {
		httpClient = httpclient.New(config.HTTPClientConfig{})
	}
	return &ResendMailer{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		from:    cfg.From,
		http:    httpClient,
	}
}

func (m *ResendMailer) Enabled() bool {
	return m != nil && m.apiKey != ""
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if !m.Enabled() {
		return ErrMailerDisabled
	}
	body, err := json.Marshal(map[string]any{
		"from":    m.from,
		"to":      []string{msg.To},
		"subject": msg.Subject,
		"text":    msg.Text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("send email: status %d: %s", resp.StatusCode, httpclient.DrainError(resp.Body))
	}
	return nil
}
