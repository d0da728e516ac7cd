// Package payment drives the create-intent, gateway-confirm, ledger-settle
// sequence for a donation attempt.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundlift/donation-server/internal/card"
	"github.com/fundlift/donation-server/internal/domain"
	"github.com/fundlift/donation-server/internal/gateway"
)

// Notifier receives completed donations for receipt dispatch. Dispatch runs
// strictly after the ledger commit and must never influence the outcome.
type Notifier interface {
	DonationCompleted(ctx context.Context, donation *domain.Donation, campaign *domain.Campaign) error
}

// TotalsCache is the write-through hook for the public campaign totals view.
type TotalsCache interface {
	SetTotal(ctx context.Context, campaignID string, total int64) error
}

// Config tunes the orchestrator.
type Config struct {
	// Minimums is the per-currency minimum donation in minor units; currencies
	// not listed use DefaultMinimum.
	Minimums       map[string]int64
	DefaultMinimum int64
	// SettleRetries bounds retries of the ledger commit after a gateway
	// approval; the money has already moved, so giving up silently is not an
	// option and exhausting the budget surfaces a retryable error.
	SettleRetries int
	SettleBackoff time.Duration
}

func (c Config) minimumFor(currency string) int64 {
	if min, ok := c.Minimums[currency]; ok {
		return min
	}
	if c.DefaultMinimum > 0 {
		return c.DefaultMinimum
	}
	return 100
}

// CardInput is the raw card data from the form. It is validated here, passed
// to the gateway, and never stored or logged.
type CardInput struct {
	Number   string
	ExpMonth int
	ExpYear  int
	CVV      string
}

// BeginRequest opens a donation attempt.
type BeginRequest struct {
	CampaignID   string
	DonorID      *string
	DonorEmail   string
	AmountInt    int64
	Currency     string
	Message      string
	IsAnonymous  bool
	Card         CardInput
	DonorCountry string
}

// BeginResult is returned to the client so it can run the gateway's
// confirmation step.
type BeginResult struct {
	DonationID    string
	GatewaySecret string
	CardBrand     string
	CardLastFour  string
}

// ConfirmResult reports the terminal outcome of a confirm call.
type ConfirmResult struct {
	Status           domain.DonationStatus
	NewCampaignTotal int64
	AlreadyCompleted bool
	FailureReason    string
}

// Orchestrator coordinates the card validator, the gateway client, the
// donation ledger and the notification dispatcher.
type Orchestrator struct {
	donations domain.DonationRepository
	campaigns domain.CampaignRepository
	gateway   gateway.Client
	notifier  Notifier
	cache     TotalsCache
	brands    *card.BrandTable
	cfg       Config
	logger    zerolog.Logger
	now       func() time.Time
}

// NewOrchestrator wires the orchestrator. notifier and cache may be nil when
// the deployment runs without them.
func NewOrchestrator(
	donations domain.DonationRepository,
	campaigns domain.CampaignRepository,
	gw gateway.Client,
	notifier Notifier,
	cache TotalsCache,
	brands *card.BrandTable,
	cfg Config,
	logger zerolog.Logger,
) *Orchestrator {
	if cfg.SettleRetries <= 0 {
		cfg.SettleRetries = 3
	}
	if cfg.SettleBackoff <= 0 {
		cfg.SettleBackoff = 200 * time.Millisecond
	}
	return &Orchestrator{
		donations: donations,
		campaigns: campaigns,
		gateway:   gw,
		notifier:  notifier,
		cache:     cache,
		brands:    brands,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Begin validates the request, creates a PENDING donation row and opens a
// payment intent with the gateway. No aggregate mutation happens here.
func (o *Orchestrator) Begin(ctx context.Context, req BeginRequest) (*BeginResult, error) {
	campaign, err := o.campaigns.GetByID(ctx, req.CampaignID)
	if err != nil {
		return nil, err
	}
	if !campaign.AcceptsDonations() {
		return nil, fmt.Errorf("campaign %s is not accepting donations: %w", campaign.ID, domain.ErrConflict)
	}
	if req.DonorID != nil && *req.DonorID == campaign.CreatorID {
		return nil, fmt.Errorf("creator cannot donate to own campaign: %w", domain.ErrForbidden)
	}
	if req.Currency != campaign.Currency {
		return nil, fmt.Errorf("campaign accepts %s, not %s: %w", campaign.Currency, req.Currency, domain.ErrValidation)
	}
	if min := o.cfg.minimumFor(req.Currency); req.AmountInt < min {
		return nil, fmt.Errorf("amount %d below minimum %d: %w", req.AmountInt, min, domain.ErrValidation)
	}

	// Server-side re-validation; the client-side check is only a UX
	// optimization.
	number := card.ValidateNumber(req.Card.Number, o.brands)
	if !number.Valid {
		return nil, fmt.Errorf("invalid card number: %w", domain.ErrValidation)
	}
	if !card.ValidateExpiry(req.Card.ExpMonth, req.Card.ExpYear, o.now()) {
		return nil, fmt.Errorf("card expired: %w", domain.ErrValidation)
	}
	if !card.ValidateCVV(req.Card.CVV, number.Brand) {
		return nil, fmt.Errorf("invalid cvv: %w", domain.ErrValidation)
	}

	attempt := NewAttempt()
	if err := attempt.Apply(EventSubmit, ""); err != nil {
		return nil, err
	}

	donation := &domain.Donation{
		CampaignID:   req.CampaignID,
		DonorID:      req.DonorID,
		DonorEmail:   req.DonorEmail,
		AmountInt:    req.AmountInt,
		Currency:     req.Currency,
		CardBrand:    string(number.Brand),
		CardLastFour: number.LastFour,
		Message:      req.Message,
		IsAnonymous:  req.IsAnonymous,
		Properties:   donationProperties(req.DonorCountry),
	}
	if err := o.donations.Create(ctx, donation); err != nil {
		return nil, fmt.Errorf("create donation: %w", err)
	}

	intent, err := o.gateway.CreateIntent(ctx, gateway.IntentRequest{
		DonationID: donation.ID,
		AmountInt:  donation.AmountInt,
		Currency:   donation.Currency,
		CardNumber: req.Card.Number,
		ExpMonth:   req.Card.ExpMonth,
		ExpYear:    req.Card.ExpYear,
		CVV:        req.Card.CVV,
	})
	if err != nil {
		if errors.Is(err, domain.ErrGatewayDeclined) {
			o.failQuietly(ctx, donation.ID, "card declined by processor")
			return nil, err
		}
		o.failQuietly(ctx, donation.ID, "gateway intent creation failed")
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	if err := o.donations.SetGatewayIntent(ctx, donation.ID, intent.ID); err != nil {
		o.failQuietly(ctx, donation.ID, "could not record gateway intent")
		return nil, err
	}
	if err := attempt.Apply(EventIntentCreated, ""); err != nil {
		return nil, err
	}

	o.logger.Info().
		Str("donation_id", donation.ID).
		Str("campaign_id", donation.CampaignID).
		Int64("amount", donation.AmountInt).
		Str("currency", donation.Currency).
		Msg("donation intent opened")

	return &BeginResult{
		DonationID:    donation.ID,
		GatewaySecret: intent.ClientSecret,
		CardBrand:     donation.CardBrand,
		CardLastFour:  donation.CardLastFour,
	}, nil
}

// Confirm drives a donation to a terminal state after the client-side
// gateway step. It is idempotent: repeating a confirm for an already settled
// donation returns the original outcome without touching the aggregate.
func (o *Orchestrator) Confirm(ctx context.Context, donationID, confirmationID string) (*ConfirmResult, error) {
	donation, err := o.donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	if donation.Status.IsTerminal() {
		return o.replayTerminal(ctx, donation)
	}
	if donation.GatewayIntentID == "" {
		return nil, fmt.Errorf("donation %s has no gateway intent: %w", donationID, domain.ErrConflict)
	}

	attempt := &Attempt{State: StateAwaitingGateway, DonationID: donationID}

	if err := o.donations.MarkProcessing(ctx, donationID); err != nil {
		o.logger.Warn().Err(err).Str("donation_id", donationID).Msg("mark processing failed")
	}

	conf, err := o.gateway.ConfirmIntent(ctx, donation.GatewayIntentID, confirmationID)
	if err != nil {
		// A decline reported as an error (processor 402) is a verdict, the
		// same terminal outcome as Approved=false.
		if errors.Is(err, domain.ErrGatewayDeclined) {
			reason := "card declined by processor"
			_ = attempt.Apply(EventGatewayDeclined, reason)
			if mfErr := o.donations.MarkFailed(ctx, donationID, reason); mfErr != nil {
				o.logger.Error().Err(mfErr).Str("donation_id", donationID).Msg("mark failed errored")
			}
			o.logger.Info().Str("donation_id", donationID).Str("reason", reason).Msg("donation declined")
			return &ConfirmResult{Status: domain.DonationStatusFailed, FailureReason: reason}, nil
		}
		// Otherwise the verdict is unknown; the donation stays non-terminal
		// and the caller retries safely under the idempotency guard.
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	if !conf.Approved {
		reason := conf.DeclineReason
		if reason == "" {
			reason = "card declined"
		}
		_ = attempt.Apply(EventGatewayDeclined, reason)
		if err := o.donations.MarkFailed(ctx, donationID, reason); err != nil {
			o.logger.Error().Err(err).Str("donation_id", donationID).Msg("mark failed errored")
		}
		o.logger.Info().Str("donation_id", donationID).Str("reason", reason).Msg("donation declined")
		return &ConfirmResult{Status: domain.DonationStatusFailed, FailureReason: reason}, nil
	}

	if err := attempt.Apply(EventGatewayApproved, ""); err != nil {
		return nil, err
	}

	settle, err := o.settleWithRetry(ctx, donationID, donation.GatewayIntentID)
	if err != nil {
		return nil, err
	}
	if err := attempt.Apply(EventSettled, ""); err != nil {
		return nil, err
	}

	o.afterSettle(ctx, donation, settle)

	return &ConfirmResult{
		Status:           domain.DonationStatusCompleted,
		NewCampaignTotal: settle.NewTotal,
		AlreadyCompleted: settle.AlreadyCompleted,
	}, nil
}

// Cancel honors a donor abort before settlement begins. The PENDING-only
// guard is enforced atomically by the store, not by a read here, so a cancel
// racing a confirm can never fail a donation after gateway approval.
func (o *Orchestrator) Cancel(ctx context.Context, donationID string) error {
	return o.donations.Cancel(ctx, donationID, "cancelled by user")
}

// settleWithRetry retries the ledger commit with doubling backoff. Only
// commit failures are retried; guard conflicts propagate immediately.
func (o *Orchestrator) settleWithRetry(ctx context.Context, donationID, intentID string) (domain.SettleResult, error) {
	var lastErr error
	backoff := o.cfg.SettleBackoff
	for i := 0; i < o.cfg.SettleRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return domain.SettleResult{}, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		settle, err := o.donations.MarkCompleted(ctx, donationID, intentID)
		if err == nil {
			return settle, nil
		}
		if !errors.Is(err, domain.ErrLedgerCommit) {
			return domain.SettleResult{}, err
		}
		lastErr = err
		o.logger.Warn().Err(err).Str("donation_id", donationID).Int("attempt", i+1).Msg("ledger commit retry")
	}
	return domain.SettleResult{}, lastErr
}

// afterSettle runs the off-critical-path work: totals cache write-through and
// receipt dispatch. Failures here are logged, never surfaced; the donation is
// already durably COMPLETED. Duplicate confirms skip dispatch so the donor
// gets exactly one receipt.
func (o *Orchestrator) afterSettle(ctx context.Context, donation *domain.Donation, settle domain.SettleResult) {
	if o.cache != nil {
		if err := o.cache.SetTotal(ctx, donation.CampaignID, settle.NewTotal); err != nil {
			o.logger.Warn().Err(err).Str("campaign_id", donation.CampaignID).Msg("totals cache update failed")
		}
	}
	if settle.AlreadyCompleted || o.notifier == nil {
		return
	}
	campaign, err := o.campaigns.GetByID(ctx, donation.CampaignID)
	if err != nil {
		o.logger.Error().Err(err).Str("donation_id", donation.ID).Msg("load campaign for receipt failed")
		return
	}
	if err := o.notifier.DonationCompleted(ctx, donation, campaign); err != nil {
		o.logger.Error().Err(err).Str("donation_id", donation.ID).Msg("receipt dispatch failed")
	}
}

// replayTerminal reports the stored outcome for a donation that already
// reached a terminal state. Status, failure reason and AlreadyCompleted are
// exactly the original result; the campaign total is the aggregate as read
// now, which under concurrent traffic may exceed the value the first confirm
// returned. The total is a running figure, not part of the settled record.
func (o *Orchestrator) replayTerminal(ctx context.Context, donation *domain.Donation) (*ConfirmResult, error) {
	if donation.Status == domain.DonationStatusFailed {
		return &ConfirmResult{Status: domain.DonationStatusFailed, FailureReason: donation.FailureReason}, nil
	}
	total, err := o.campaigns.CurrentTotal(ctx, donation.CampaignID)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		Status:           domain.DonationStatusCompleted,
		NewCampaignTotal: total,
		AlreadyCompleted: true,
	}, nil
}

func (o *Orchestrator) failQuietly(ctx context.Context, donationID, reason string) {
	if err := o.donations.MarkFailed(ctx, donationID, reason); err != nil {
		o.logger.Error().Err(err).Str("donation_id", donationID).Msg("mark failed errored")
	}
}

func donationProperties(donorCountry string) json.RawMessage {
	if donorCountry == "" {
		return json.RawMessage(`{}`)
	}
	props, err := json.Marshal(map[string]string{"donor_country": donorCountry})
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return props
}
