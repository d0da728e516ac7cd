// Package gateway is the boundary to the external payment processor. Full
// card data enters this package and goes no further: callers only ever get
// back intent identifiers and approve/decline results.
package gateway

import "context"

// IntentRequest opens a payment attempt with the processor.
type IntentRequest struct {
	DonationID string
	AmountInt  int64
	Currency   string
	CardNumber string
	ExpMonth   int
	ExpYear    int
	CVV        string
}

// Intent is the processor's correlation object for one payment attempt. The
// client secret is handed to the browser for its confirmation step and is
// never persisted.
type Intent struct {
	ID           string
	ClientSecret string
}

// Confirmation is the processor's verdict for an intent. A decline is a
// normal result, not an error; errors mean the verdict could not be obtained.
type Confirmation struct {
	IntentID       string
	ConfirmationID string
	Approved       bool
	DeclineReason  string
}

// Client is the processor contract. Implementations: HTTPClient for a real
// processor, Simulator for development and tests.
type Client interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	ConfirmIntent(ctx context.Context, intentID, confirmationID string) (*Confirmation, error)
}
