package domain

import (
	"encoding/json"
	"time"
)

// DonationStatus represents the settlement state of a donation row.
type DonationStatus string

const (
	DonationStatusPending    DonationStatus = "PENDING"
	DonationStatusProcessing DonationStatus = "PROCESSING"
	DonationStatusCompleted  DonationStatus = "COMPLETED"
	DonationStatusFailed     DonationStatus = "FAILED"
)

// IsTerminal reports whether the status can never change again. Completed and
// failed rows are immutable; a donor retry creates a new row.
func (s DonationStatus) IsTerminal() bool {
	return s == DonationStatusCompleted || s == DonationStatusFailed
}

// Donation represents a supporter contribution record. Amounts are integer
// minor units (cents for USD). Card data is reduced to brand + last four
// before it ever reaches this type.
type Donation struct {
	ID              string
	CampaignID      string
	DonorID         *string
	DonorEmail      string
	AmountInt       int64
	Currency        string
	Status          DonationStatus
	GatewayIntentID string
	CardBrand       string
	CardLastFour    string
	Message         string
	IsAnonymous     bool
	FailureReason   string
	Properties      json.RawMessage
	CreatedAt       time.Time
	ProcessedAt     *time.Time
}
