package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

// Outcome scripts a verdict for the simulator.
type Outcome struct {
	Approved      bool
	DeclineReason string
}

// Simulator implements Client without a processor. Tests script outcomes per
// donation reference for deterministic runs; unscripted intents fall back to
// the seeded random decline rate, which is what development environments use.
type Simulator struct {
	mu          sync.Mutex
	rng         *rand.Rand
	declineRate float64
	scripted    map[string]Outcome
	intentRefs  map[string]string
}

// NewSimulator creates a simulator with the given seed and decline rate in
// [0,1]. A decline rate of 0 approves everything unscripted.
func NewSimulator(seed int64, declineRate float64) *Simulator {
	return &Simulator{
		rng:         rand.New(rand.NewSource(seed)),
		declineRate: declineRate,
		scripted:    make(map[string]Outcome),
		intentRefs:  make(map[string]string),
	}
}

// Script fixes the verdict for all intents created with the given donation
// reference.
func (s *Simulator) Script(donationID string, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripted[donationID] = outcome
}

// CreateIntent issues a synthetic intent id and client secret.
func (s *Simulator) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	if req.AmountInt <= 0 {
		return nil, fmt.Errorf("gateway: create intent: non-positive amount %d", req.AmountInt)
	}
	id := "sim_pi_" + uuid.NewString()
	s.mu.Lock()
	s.intentRefs[id] = req.DonationID
	s.mu.Unlock()
	return &Intent{ID: id, ClientSecret: "sim_secret_" + uuid.NewString()}, nil
}

// ConfirmIntent resolves the scripted outcome for the intent's donation, or
// rolls against the decline rate.
func (s *Simulator) ConfirmIntent(_ context.Context, intentID, confirmationID string) (*Confirmation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, ok := s.intentRefs[intentID]
	if !ok {
		return nil, fmt.Errorf("gateway: unknown intent %s", intentID)
	}
	conf := &Confirmation{IntentID: intentID, ConfirmationID: confirmationID}
	if outcome, scripted := s.scripted[ref]; scripted {
		conf.Approved = outcome.Approved
		conf.DeclineReason = outcome.DeclineReason
		return conf, nil
	}
	if s.rng.Float64() < s.declineRate {
		conf.Approved = false
		conf.DeclineReason = "card declined"
		return conf, nil
	}
	conf.Approved = true
	return conf, nil
}

var (
	_ Client = (*HTTPClient)(nil)
	_ Client = (*Simulator)(nil)
)
