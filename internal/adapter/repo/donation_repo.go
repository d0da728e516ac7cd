package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/fundlift/donation-server/internal/domain"
	"github.com/fundlift/donation-server/internal/infra"
	"github.com/fundlift/donation-server/internal/sqlinline"
)

// DonationRepositoryPG implements the donation ledger store on PostgreSQL.
// Simple reads and writes go through the marker-logging runner; MarkCompleted
// opens its own transaction on the underlying pool because the status guard
// and the aggregate increment must commit as one unit.
type DonationRepositoryPG struct {
	runner *infra.SQLRunner
}

// NewDonationRepository creates a new donation ledger store.
func NewDonationRepository(runner *infra.SQLRunner) *DonationRepositoryPG {
	return &DonationRepositoryPG{runner: runner}
}

// Create inserts a new PENDING donation row and fills in the generated id
// and creation timestamp.
func (r *DonationRepositoryPG) Create(ctx context.Context, donation *domain.Donation) error {
	donorID := ""
	if donation.DonorID != nil {
		donorID = *donation.DonorID
	}
	row := r.runner.QueryRow(ctx, sqlinline.QInsertDonation,
		donation.CampaignID,
		donorID,
		donation.DonorEmail,
		donation.AmountInt,
		donation.Currency,
		donation.CardBrand,
		donation.CardLastFour,
		donation.Message,
		donation.IsAnonymous,
		donation.Properties,
	)
	if err := row.Scan(&donation.ID, &donation.CreatedAt); err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	donation.Status = domain.DonationStatusPending
	return nil
}

// SetGatewayIntent records the processor's intent id on a PENDING row.
func (r *DonationRepositoryPG) SetGatewayIntent(ctx context.Context, id, gatewayIntentID string) error {
	tag, err := r.runner.Exec(ctx, sqlinline.QSetGatewayIntent, id, gatewayIntentID)
	if err != nil {
		return fmt.Errorf("set gateway intent: %w", err)
	}
	// Zero rows means the donation already left PENDING; a second intent
	// attach is a replayed begin, not a fresh failure.
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set gateway intent on %s: %w", id, domain.ErrDuplicateOperation)
	}
	return nil
}

// GetByID loads a donation row.
func (r *DonationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	row := r.runner.QueryRow(ctx, sqlinline.QSelectDonation, id)
	var d domain.Donation
	err := row.Scan(
		&d.ID,
		&d.CampaignID,
		&d.DonorID,
		&d.DonorEmail,
		&d.AmountInt,
		&d.Currency,
		&d.Status,
		&d.GatewayIntentID,
		&d.CardBrand,
		&d.CardLastFour,
		&d.Message,
		&d.IsAnonymous,
		&d.FailureReason,
		&d.Properties,
		&d.CreatedAt,
		&d.ProcessedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select donation: %w", err)
	}
	return &d, nil
}

// MarkProcessing moves a PENDING row to PROCESSING. Losing the race is not
// an error; the status guard in MarkCompleted is the one that matters.
func (r *DonationRepositoryPG) MarkProcessing(ctx context.Context, id string) error {
	if _, err := r.runner.Exec(ctx, sqlinline.QMarkDonationProcessing, id); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	return nil
}

// MarkCompleted performs the guarded PENDING/PROCESSING -> COMPLETED
// transition and the campaign aggregate increment in a single transaction.
// When the guard matches zero rows because an earlier call already settled
// the donation, the original outcome is reported with AlreadyCompleted set
// instead of incrementing again.
func (r *DonationRepositoryPG) MarkCompleted(ctx context.Context, id, gatewayIntentID string) (domain.SettleResult, error) {
	tx, err := r.runner.Pool.Begin(ctx)
	if err != nil {
		return domain.SettleResult{}, fmt.Errorf("%w: begin: %v", domain.ErrLedgerCommit, err)
	}
	defer tx.Rollback(ctx)

	var campaignID string
	var amount int64
	err = tx.QueryRow(ctx, sqlinline.QCompleteDonation, id, gatewayIntentID).Scan(&campaignID, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.resolveGuardMiss(ctx, id, gatewayIntentID)
	}
	if err != nil {
		return domain.SettleResult{}, fmt.Errorf("%w: complete donation: %v", domain.ErrLedgerCommit, err)
	}

	var newTotal int64
	if err := tx.QueryRow(ctx, sqlinline.QIncrementCampaignTotal, campaignID, amount).Scan(&newTotal); err != nil {
		return domain.SettleResult{}, fmt.Errorf("%w: increment campaign total: %v", domain.ErrLedgerCommit, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.SettleResult{}, fmt.Errorf("%w: commit: %v", domain.ErrLedgerCommit, err)
	}
	return domain.SettleResult{AlreadyCompleted: false, NewTotal: newTotal}, nil
}

// resolveGuardMiss inspects why the completion guard matched nothing. A
// donation already COMPLETED under the same intent is the duplicate-confirm
// case and reports success with the campaign total as read now; the total is
// a running figure and may already include later settlements.
func (r *DonationRepositoryPG) resolveGuardMiss(ctx context.Context, id, gatewayIntentID string) (domain.SettleResult, error) {
	d, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.SettleResult{}, err
	}
	switch {
	case d.Status == domain.DonationStatusCompleted && d.GatewayIntentID == gatewayIntentID:
		var total int64
		if err := r.runner.QueryRow(ctx, sqlinline.QSelectCampaignTotal, d.CampaignID).Scan(&total); err != nil {
			return domain.SettleResult{}, fmt.Errorf("select campaign total: %w", err)
		}
		return domain.SettleResult{AlreadyCompleted: true, NewTotal: total}, nil
	case d.Status == domain.DonationStatusFailed:
		return domain.SettleResult{}, fmt.Errorf("donation %s already failed: %w", id, domain.ErrConflict)
	default:
		// Intent id mismatch: a confirm for a different payment attempt.
		return domain.SettleResult{}, fmt.Errorf("intent mismatch for donation %s: %w", id, domain.ErrConflict)
	}
}

// Cancel closes out a PENDING row as failed. The status guard lives in the
// statement itself, so a cancel racing a confirm loses atomically instead of
// failing a donation the gateway already approved.
func (r *DonationRepositoryPG) Cancel(ctx context.Context, id, reason string) error {
	tag, err := r.runner.Exec(ctx, sqlinline.QCancelDonation, id, reason)
	if err != nil {
		return fmt.Errorf("cancel donation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		d, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return fmt.Errorf("donation %s is %s: %w", id, d.Status, domain.ErrConflict)
	}
	return nil
}

// MarkFailed records a terminal failure. The status guard keeps COMPLETED
// rows untouched, so a late failure report cannot undo a settlement.
func (r *DonationRepositoryPG) MarkFailed(ctx context.Context, id, reason string) error {
	if _, err := r.runner.Exec(ctx, sqlinline.QMarkDonationFailed, id, reason); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ListRecent returns the latest completed donations for the public feed.
func (r *DonationRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Donation, error) {
	return r.list(ctx, sqlinline.QListRecentDonations, limit)
}

// ListUnsettledIntents returns stale non-terminal donations with an open
// gateway intent, the input for a reconciliation pass.
func (r *DonationRepositoryPG) ListUnsettledIntents(ctx context.Context, limit int) ([]domain.Donation, error) {
	return r.list(ctx, sqlinline.QListUnsettledIntents, limit)
}

func (r *DonationRepositoryPG) list(ctx context.Context, query string, limit int) ([]domain.Donation, error) {
	rows, err := r.runner.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		var d domain.Donation
		if err := rows.Scan(&d.ID, &d.CampaignID, &d.DonorID, &d.AmountInt, &d.Currency, &d.CardBrand, &d.CardLastFour, &d.Message, &d.IsAnonymous, &d.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
