package domain

import "time"

// CampaignStatus mirrors the lifecycle owned by the campaign service. Only
// ACTIVE campaigns accept donations.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

// Campaign is the subset of the campaign aggregate this service owns or
// reads. CurrentAmount is maintained exclusively by the ledger's atomic
// increment and must never be recomputed on the hot path.
type Campaign struct {
	ID              string
	Title           string
	Status          CampaignStatus
	CreatorID       string
	CreatorName     string
	CreatorEmail    string
	CreatorVerified bool
	Currency        string
	GoalAmount      int64
	CurrentAmount   int64
	CreatedAt       time.Time
}

// AcceptsDonations reports whether new payment intents may be opened.
func (c *Campaign) AcceptsDonations() bool {
	return c.Status == CampaignStatusActive
}
