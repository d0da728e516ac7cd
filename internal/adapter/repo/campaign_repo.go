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

// CampaignRepositoryPG reads the campaign aggregate and its creator state.
// All writes to current_amount happen inside the donation ledger's settle
// transaction, never here.
type CampaignRepositoryPG struct {
	runner *infra.SQLRunner
}

// NewCampaignRepository creates a new campaign reader.
func NewCampaignRepository(runner *infra.SQLRunner) *CampaignRepositoryPG {
	return &CampaignRepositoryPG{runner: runner}
}

// GetByID loads a campaign with its creator's display data and verification
// flag.
func (r *CampaignRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	row := r.runner.QueryRow(ctx, sqlinline.QSelectCampaign, id)
	var c domain.Campaign
	err := row.Scan(
		&c.ID,
		&c.Title,
		&c.Status,
		&c.CreatorID,
		&c.CreatorName,
		&c.CreatorEmail,
		&c.CreatorVerified,
		&c.Currency,
		&c.GoalAmount,
		&c.CurrentAmount,
		&c.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select campaign: %w", err)
	}
	return &c, nil
}

// CurrentTotal reads the running total straight from the aggregate row.
func (r *CampaignRepositoryPG) CurrentTotal(ctx context.Context, id string) (int64, error) {
	var total int64
	err := r.runner.QueryRow(ctx, sqlinline.QSelectCampaignTotal, id).Scan(&total)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("select campaign total: %w", err)
	}
	return total, nil
}

var (
	_ domain.DonationRepository = (*DonationRepositoryPG)(nil)
	_ domain.CampaignRepository = (*CampaignRepositoryPG)(nil)
)
