package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fundlift/donation-server/internal/domain"
	"github.com/fundlift/donation-server/internal/pkg/httpretry"
)

// HTTPClient talks JSON to a card processor API using basic auth with the
// secret key as username, the convention most processors follow.
type HTTPClient struct {
	baseURL    string
	secretKey  string
	httpClient httpretry.HTTPDoer
}

// HTTPClientOptions configures the processor client.
type HTTPClientOptions struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
	// MaxRetries bounds retry attempts for transport errors and 5xx.
	MaxRetries int
}

// NewHTTPClient builds a processor client with bounded retries.
func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &HTTPClient{
		baseURL:   opts.BaseURL,
		secretKey: opts.SecretKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: timeout,
		}, retries),
	}
}

type intentPayload struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CardNumber  string `json:"card_number"`
	ExpMonth    int    `json:"exp_month"`
	ExpYear     int    `json:"exp_year"`
	CVV         string `json:"cvv"`
	CaptureMode string `json:"capture_mode"`
}

type intentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
}

type confirmResponse struct {
	IntentID       string `json:"intent_id"`
	ConfirmationID string `json:"confirmation_id"`
	Status         string `json:"status"`
	DeclineReason  string `json:"decline_reason"`
}

// CreateIntent registers the payment attempt with the processor.
func (c *HTTPClient) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	payload := intentPayload{
		Amount:      req.AmountInt,
		Currency:    req.Currency,
		Reference:   req.DonationID,
		CardNumber:  req.CardNumber,
		ExpMonth:    req.ExpMonth,
		ExpYear:     req.ExpYear,
		CVV:         req.CVV,
		CaptureMode: "automatic",
	}
	var out intentResponse
	if err := c.doRequest(ctx, http.MethodPost, "/v1/intents", payload, &out); err != nil {
		return nil, fmt.Errorf("gateway: create intent: %w", err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("gateway: create intent: empty intent id in response")
	}
	return &Intent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

// ConfirmIntent fetches the processor's verdict for an intent. Declines come
// back as Approved=false, not as errors.
func (c *HTTPClient) ConfirmIntent(ctx context.Context, intentID, confirmationID string) (*Confirmation, error) {
	payload := map[string]string{"confirmation_id": confirmationID}
	var out confirmResponse
	path := fmt.Sprintf("/v1/intents/%s/confirm", intentID)
	if err := c.doRequest(ctx, http.MethodPost, path, payload, &out); err != nil {
		return nil, fmt.Errorf("gateway: confirm intent %s: %w", intentID, err)
	}
	conf := &Confirmation{
		IntentID:       out.IntentID,
		ConfirmationID: out.ConfirmationID,
		Approved:       out.Status == "succeeded",
		DeclineReason:  out.DeclineReason,
	}
	if conf.IntentID == "" {
		conf.IntentID = intentID
	}
	return conf, nil
}

func (c *HTTPClient) doRequest(ctx context.Context, method, path string, body, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.SetBasicAuth(c.secretKey, "")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode == http.StatusPaymentRequired {
		return fmt.Errorf("%w: %s", domain.ErrGatewayDeclined, string(respBody))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
