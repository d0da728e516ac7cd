package domain

import "context"

// SettleResult reports the outcome of a guarded completion. AlreadyCompleted
// is true when an earlier call won the status guard; NewTotal is the campaign
// total after (or as of) the increment.
type SettleResult struct {
	AlreadyCompleted bool
	NewTotal         int64
}

// DonationRepository is the donation ledger store. MarkCompleted performs the
// status transition and the campaign aggregate increment in one atomic unit.
type DonationRepository interface {
	Create(ctx context.Context, donation *Donation) error
	SetGatewayIntent(ctx context.Context, id, gatewayIntentID string) error
	GetByID(ctx context.Context, id string) (*Donation, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, gatewayIntentID string) (SettleResult, error)
	MarkFailed(ctx context.Context, id, reason string) error
	// Cancel closes out a donation only while it is still PENDING; once a
	// confirm has started the store rejects the cancel with ErrConflict.
	Cancel(ctx context.Context, id, reason string) error
	ListRecent(ctx context.Context, limit int) ([]Donation, error)
	ListUnsettledIntents(ctx context.Context, limit int) ([]Donation, error)
}

// CampaignRepository reads the campaign aggregate and its creator state.
type CampaignRepository interface {
	GetByID(ctx context.Context, id string) (*Campaign, error)
	CurrentTotal(ctx context.Context, id string) (int64, error)
}
