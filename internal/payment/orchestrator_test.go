package payment

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundlift/donation-server/internal/card"
	"github.com/fundlift/donation-server/internal/domain"
	"github.com/fundlift/donation-server/internal/gateway"
)

// memStore is an in-memory ledger implementing the repository contracts with
// the same guard semantics as the PostgreSQL adapter.
type memStore struct {
	mu        sync.Mutex
	donations map[string]*domain.Donation
	campaigns map[string]*domain.Campaign
	// commitFailures makes the next N MarkCompleted calls fail with
	// ErrLedgerCommit before succeeding.
	commitFailures int
}

func newMemStore(campaigns ...*domain.Campaign) *memStore {
	s := &memStore{
		donations: make(map[string]*domain.Donation),
		campaigns: make(map[string]*domain.Campaign),
	}
	for _, c := range campaigns {
		s.campaigns[c.ID] = c
	}
	return s
}

func (s *memStore) Create(_ context.Context, d *domain.Donation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = uuid.NewString()
	d.Status = domain.DonationStatusPending
	d.CreatedAt = time.Now()
	copied := *d
	s.donations[d.ID] = &copied
	return nil
}

func (s *memStore) SetGatewayIntent(_ context.Context, id, intentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.GatewayIntentID = intentID
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Donation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (s *memStore) MarkProcessing(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.donations[id]; ok && d.Status == domain.DonationStatusPending {
		d.Status = domain.DonationStatusProcessing
	}
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id, intentID string) (domain.SettleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitFailures > 0 {
		s.commitFailures--
		return domain.SettleResult{}, fmt.Errorf("%w: simulated", domain.ErrLedgerCommit)
	}
	d, ok := s.donations[id]
	if !ok {
		return domain.SettleResult{}, domain.ErrNotFound
	}
	c := s.campaigns[d.CampaignID]
	switch {
	case d.Status == domain.DonationStatusCompleted && d.GatewayIntentID == intentID:
		return domain.SettleResult{AlreadyCompleted: true, NewTotal: c.CurrentAmount}, nil
	case d.Status.IsTerminal():
		return domain.SettleResult{}, domain.ErrConflict
	case d.GatewayIntentID != intentID:
		return domain.SettleResult{}, domain.ErrConflict
	}
	d.Status = domain.DonationStatusCompleted
	now := time.Now()
	d.ProcessedAt = &now
	c.CurrentAmount += d.AmountInt
	return domain.SettleResult{NewTotal: c.CurrentAmount}, nil
}

func (s *memStore) MarkFailed(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.donations[id]; ok && !d.Status.IsTerminal() {
		d.Status = domain.DonationStatusFailed
		d.FailureReason = reason
	}
	return nil
}

func (s *memStore) ListRecent(context.Context, int) ([]domain.Donation, error) { return nil, nil }

func (s *memStore) ListUnsettledIntents(context.Context, int) ([]domain.Donation, error) {
	return nil, nil
}

func (s *memStore) Cancel(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.donations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if d.Status != domain.DonationStatusPending {
		return fmt.Errorf("donation %s is %s: %w", id, d.Status, domain.ErrConflict)
	}
	d.Status = domain.DonationStatusFailed
	d.FailureReason = reason
	now := time.Now()
	d.ProcessedAt = &now
	return nil
}

// campaignView exposes the memStore's campaign map through the campaign
// repository contract; the donation methods stay on memStore itself.
type campaignView struct {
	s *memStore
}

func (v campaignView) GetByID(_ context.Context, id string) (*domain.Campaign, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	c, ok := v.s.campaigns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (v campaignView) CurrentTotal(_ context.Context, id string) (int64, error) {
	return v.s.CurrentTotal(context.Background(), id)
}

func (s *memStore) CurrentTotal(_ context.Context, id string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return c.CurrentAmount, nil
}

var (
	_ domain.DonationRepository = (*memStore)(nil)
	_ domain.CampaignRepository = campaignView{}
)

type countingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *countingNotifier) DonationCompleted(_ context.Context, d *domain.Donation, _ *domain.Campaign) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, d.ID)
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func testCampaign() *domain.Campaign {
	return &domain.Campaign{
		ID:              uuid.NewString(),
		Title:           "Clean water for Harar",
		Status:          domain.CampaignStatusActive,
		CreatorID:       uuid.NewString(),
		CreatorName:     "Amina",
		CreatorEmail:    "amina@example.com",
		CreatorVerified: true,
		Currency:        "USD",
		GoalAmount:      10000,
		CurrentAmount:   0,
	}
}

func newTestOrchestrator(store *memStore, gw gateway.Client, notifier Notifier) *Orchestrator {
	return NewOrchestrator(store, campaignView{store}, gw, notifier, nil, card.DefaultBrandTable(), Config{
		DefaultMinimum: 100,
		SettleRetries:  3,
		SettleBackoff:  time.Millisecond,
	}, zerolog.Nop())
}

func validBegin(campaignID string) BeginRequest {
	return BeginRequest{
		CampaignID:  campaignID,
		AmountInt:   500,
		Currency:    "USD",
		Message:     "good luck!",
		IsAnonymous: false,
		Card: CardInput{
			Number:   "4242424242424242",
			ExpMonth: 12,
			ExpYear:  time.Now().Year() + 1,
			CVV:      "123",
		},
	}
}

func TestBeginAndConfirmHappyPath(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	notifier := &countingNotifier{}
	orch := newTestOrchestrator(store, sim, notifier)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, begin.DonationID)
	assert.NotEmpty(t, begin.GatewaySecret)
	assert.Equal(t, "visa", begin.CardBrand)
	assert.Equal(t, "4242", begin.CardLastFour)

	res, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusCompleted, res.Status)
	assert.Equal(t, int64(500), res.NewCampaignTotal)
	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 1, notifier.count())

	d, err := store.GetByID(ctx, begin.DonationID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusCompleted, d.Status)
	assert.NotNil(t, d.ProcessedAt)
}

func TestConfirmIsIdempotent(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	notifier := &countingNotifier{}
	orch := newTestOrchestrator(store, sim, notifier)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	first, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	second, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)

	assert.Equal(t, domain.DonationStatusCompleted, second.Status)
	assert.True(t, second.AlreadyCompleted)
	assert.Equal(t, first.NewCampaignTotal, second.NewCampaignTotal)

	total, err := store.CurrentTotal(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), total, "aggregate incremented exactly once")
	assert.Equal(t, 1, notifier.count(), "exactly one receipt dispatched")
}

func TestConcurrentConfirmationsDoNotLoseIncrements(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	orch := newTestOrchestrator(store, sim, &countingNotifier{})

	const n = 32
	const amount = int64(500)

	ids := make([]string, n)
	for i := range ids {
		begin, err := orch.Begin(ctx, validBegin(campaign.ID))
		require.NoError(t, err)
		ids[i] = begin.DonationID
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			// Every donation is confirmed twice, racing against itself and
			// against every other donation to the same campaign.
			if _, err := orch.Confirm(ctx, id, "conf"); err != nil {
				errs[i] = err
				return
			}
			_, errs[i] = orch.Confirm(ctx, id, "conf")
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "donation %d", i)
	}
	total, err := store.CurrentTotal(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, amount*n, total)
}

func TestBeginRejectsBelowMinimum(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	orch := newTestOrchestrator(store, gateway.NewSimulator(1, 0), nil)

	req := validBegin(campaign.ID)
	req.AmountInt = 50
	_, err := orch.Begin(ctx, req)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Empty(t, store.donations, "no donation row created")
}

func TestBeginRejectsSelfDonation(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	orch := newTestOrchestrator(store, gateway.NewSimulator(1, 0), nil)

	req := validBegin(campaign.ID)
	req.DonorID = &campaign.CreatorID
	_, err := orch.Begin(ctx, req)
	require.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, store.donations, "no donation row created")
}

func TestBeginRejectsInactiveCampaign(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	campaign.Status = domain.CampaignStatusPaused
	store := newMemStore(campaign)
	orch := newTestOrchestrator(store, gateway.NewSimulator(1, 0), nil)

	_, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.ErrorIs(t, err, domain.ErrConflict)
}

func TestBeginRejectsBadCards(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	orch := newTestOrchestrator(store, gateway.NewSimulator(1, 0), nil)

	tests := []struct {
		name   string
		mutate func(*BeginRequest)
	}{
		{"luhn failure", func(r *BeginRequest) { r.Card.Number = "4242424242424241" }},
		{"expired", func(r *BeginRequest) { r.Card.ExpMonth = 1; r.Card.ExpYear = 2020 }},
		{"cvv too short for amex", func(r *BeginRequest) { r.Card.Number = "378282246310005"; r.Card.CVV = "123" }},
		{"currency mismatch", func(r *BeginRequest) { r.Currency = "EUR" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validBegin(campaign.ID)
			tt.mutate(&req)
			_, err := orch.Begin(ctx, req)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Empty(t, store.donations)
}

func TestConfirmDeclineLeavesAggregateUntouched(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	notifier := &countingNotifier{}
	orch := newTestOrchestrator(store, sim, notifier)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	sim.Script(begin.DonationID, gateway.Outcome{Approved: false, DeclineReason: "insufficient funds"})

	res, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusFailed, res.Status)
	assert.Equal(t, "insufficient funds", res.FailureReason)

	total, err := store.CurrentTotal(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, notifier.count())

	// A repeated confirm for the failed attempt replays the failure.
	res, err = orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusFailed, res.Status)
	assert.Equal(t, "insufficient funds", res.FailureReason)
}

func TestConfirmRetriesLedgerCommit(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	orch := newTestOrchestrator(store, sim, nil)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	store.commitFailures = 2
	res, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusCompleted, res.Status)
	assert.Equal(t, int64(500), res.NewCampaignTotal)
}

func TestConfirmSurfacesExhaustedLedgerRetries(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	orch := newTestOrchestrator(store, sim, nil)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	store.commitFailures = 10
	_, err = orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.ErrorIs(t, err, domain.ErrLedgerCommit)

	// The donation is still not terminal: the caller may retry safely.
	d, err := store.GetByID(ctx, begin.DonationID)
	require.NoError(t, err)
	assert.False(t, d.Status.IsTerminal())

	store.commitFailures = 0
	res, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusCompleted, res.Status)
}

func TestCancelBeforeSettlement(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	orch := newTestOrchestrator(store, gateway.NewSimulator(1, 0), nil)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	require.NoError(t, orch.Cancel(ctx, begin.DonationID))
	d, err := store.GetByID(ctx, begin.DonationID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusFailed, d.Status)
	assert.Equal(t, "cancelled by user", d.FailureReason)

	// Terminal donations cannot be cancelled again.
	require.ErrorIs(t, orch.Cancel(ctx, begin.DonationID), domain.ErrConflict)
}

// confirmErrorGateway registers intents normally but reports the decline as an
// error-typed verdict, the way the HTTP client maps a processor 402.
type confirmErrorGateway struct {
	gateway.Client
}

func (g confirmErrorGateway) ConfirmIntent(context.Context, string, string) (*gateway.Confirmation, error) {
	return nil, fmt.Errorf("gateway: confirm intent: %w", domain.ErrGatewayDeclined)
}

func TestConfirmTreatsDeclineErrorAsVerdict(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	notifier := &countingNotifier{}
	orch := newTestOrchestrator(store, confirmErrorGateway{gateway.NewSimulator(1, 0)}, notifier)

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	res, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err, "a decline is a terminal verdict, not a retryable outage")
	assert.Equal(t, domain.DonationStatusFailed, res.Status)
	assert.Equal(t, "card declined by processor", res.FailureReason)

	d, err := store.GetByID(ctx, begin.DonationID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusFailed, d.Status)

	total, err := store.CurrentTotal(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Zero(t, notifier.count())
}

func TestDuplicateConfirmReplaysCurrentAggregate(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	orch := newTestOrchestrator(store, sim, &countingNotifier{})

	first, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)
	res, err := orch.Confirm(ctx, first.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), res.NewCampaignTotal)

	second, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)
	_, err = orch.Confirm(ctx, second.DonationID, "conf-2")
	require.NoError(t, err)

	// Replaying the first confirm reports the aggregate as it stands now,
	// which includes the settlement that landed in between.
	replay, err := orch.Confirm(ctx, first.DonationID, "conf-1")
	require.NoError(t, err)
	assert.True(t, replay.AlreadyCompleted)
	assert.Equal(t, domain.DonationStatusCompleted, replay.Status)
	assert.Equal(t, int64(1000), replay.NewCampaignTotal)
}

func TestCancelRacingConfirmIsRejected(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	sim := gateway.NewSimulator(1, 0)
	orch := newTestOrchestrator(store, sim, &countingNotifier{})

	begin, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.NoError(t, err)

	// A confirm has claimed the attempt; the late cancel must not fail it.
	require.NoError(t, store.MarkProcessing(ctx, begin.DonationID))
	require.ErrorIs(t, orch.Cancel(ctx, begin.DonationID), domain.ErrConflict)

	d, err := store.GetByID(ctx, begin.DonationID)
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusProcessing, d.Status)

	// The in-flight confirm still settles normally.
	res, err := orch.Confirm(ctx, begin.DonationID, "conf-1")
	require.NoError(t, err)
	assert.Equal(t, domain.DonationStatusCompleted, res.Status)
	assert.Equal(t, int64(500), res.NewCampaignTotal)
}

// decliningGateway rejects every intent the way a processor refusing the
// card at registration would.
type decliningGateway struct {
	gateway.Client
}

func (decliningGateway) CreateIntent(context.Context, gateway.IntentRequest) (*gateway.Intent, error) {
	return nil, fmt.Errorf("gateway: create intent: %w", domain.ErrGatewayDeclined)
}

func TestBeginSurfacesIntentDecline(t *testing.T) {
	ctx := context.Background()
	campaign := testCampaign()
	store := newMemStore(campaign)
	orch := newTestOrchestrator(store, decliningGateway{}, nil)

	_, err := orch.Begin(ctx, validBegin(campaign.ID))
	require.ErrorIs(t, err, domain.ErrGatewayDeclined)

	// The attempt row is closed out and the aggregate never moved.
	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.donations, 1)
	for _, d := range store.donations {
		assert.Equal(t, domain.DonationStatusFailed, d.Status)
	}
	total := store.campaigns[campaign.ID].CurrentAmount
	assert.Equal(t, int64(0), total)
}
