// Package notify dispatches donor receipts after a donation settles. It sits
// strictly outside the ledger transaction: enqueueing is fire-and-forget from
// the orchestrator's point of view and delivery runs in the worker binary.
package notify

import "time"

// Receipt is the queue payload for one completed donation. It carries only
// display data; card information is already reduced to brand + last four.
type Receipt struct {
	DonationID      string    `json:"donation_id"`
	CampaignID      string    `json:"campaign_id"`
	CampaignTitle   string    `json:"campaign_title"`
	CreatorName     string    `json:"creator_name"`
	CreatorVerified bool      `json:"creator_verified"`
	DonorEmail      string    `json:"donor_email"`
	AmountInt       int64     `json:"amount_int"`
	Currency        string    `json:"currency"`
	CardBrand       string    `json:"card_brand"`
	CardLastFour    string    `json:"card_last_four"`
	TransactionID   string    `json:"transaction_id"`
	CompletedAt     time.Time `json:"completed_at"`
}

// Email is one message ready for the mail provider.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}
