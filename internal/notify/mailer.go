package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fundlift/donation-server/internal/pkg/httpretry"
)

// Mailer delivers a single email.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// HTTPMailer talks to a transactional mail provider API. Providers in this
// family use Basic Auth with "api" as the username.
type HTTPMailer struct {
	baseURL    string
	apiKey     string
	from       string
	httpClient httpretry.HTTPDoer
}

// MailerOptions configures the provider client.
type MailerOptions struct {
	BaseURL string
	APIKey  string
	From    string
	Timeout time.Duration
}

// NewHTTPMailer builds the provider client with bounded retries.
func NewHTTPMailer(opts MailerOptions) *HTTPMailer {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPMailer{
		baseURL: opts.BaseURL,
		apiKey:  opts.APIKey,
		from:    opts.From,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, 2),
	}
}

type sendPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Send posts one message to the provider.
func (m *HTTPMailer) Send(ctx context.Context, email Email) error {
	payload := sendPayload{
		From:    m.from,
		To:      email.To,
		Subject: email.Subject,
		Text:    email.Text,
	}
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("mailer: marshaling message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("mailer: creating request: %w", err)
	}
	req.SetBasicAuth("api", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("mailer: executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mailer: API error (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

var _ Mailer = (*HTTPMailer)(nil)
