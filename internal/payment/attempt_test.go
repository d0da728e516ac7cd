package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptHappyPath(t *testing.T) {
	a := NewAttempt()
	require.Equal(t, StateForm, a.State)

	require.NoError(t, a.Apply(EventSubmit, ""))
	require.Equal(t, StateSubmitting, a.State)

	require.NoError(t, a.Apply(EventIntentCreated, ""))
	require.Equal(t, StateAwaitingGateway, a.State)

	require.NoError(t, a.Apply(EventGatewayApproved, ""))
	require.Equal(t, StateSettling, a.State)

	require.NoError(t, a.Apply(EventSettled, ""))
	require.Equal(t, StateSucceeded, a.State)
}

func TestAttemptDecline(t *testing.T) {
	a := &Attempt{State: StateAwaitingGateway}
	require.NoError(t, a.Apply(EventGatewayDeclined, "insufficient funds"))
	assert.Equal(t, StateFailed, a.State)
	assert.Equal(t, "insufficient funds", a.FailReason)
}

func TestAttemptCancelRules(t *testing.T) {
	form := NewAttempt()
	require.NoError(t, form.Apply(EventCancel, ""))
	assert.Equal(t, StateFailed, form.State)
	assert.Equal(t, "cancelled by user", form.FailReason)

	awaiting := &Attempt{State: StateAwaitingGateway}
	require.NoError(t, awaiting.Apply(EventCancel, ""))
	assert.Equal(t, StateFailed, awaiting.State)

	// Settlement has been requested: the attempt must run to completion.
	settling := &Attempt{State: StateSettling}
	err := settling.Apply(EventCancel, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateSettling, settling.State)
}

// Terminal states must absorb every event without ever leaving.
func TestAttemptTerminalStatesAbsorb(t *testing.T) {
	events := []Event{EventSubmit, EventIntentCreated, EventGatewayApproved, EventGatewayDeclined, EventSettled, EventFail, EventCancel}

	for _, terminal := range []AttemptState{StateSucceeded, StateFailed} {
		for _, ev := range events {
			a := &Attempt{State: terminal}
			err := a.Apply(ev, "x")
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s in %s", ev, terminal)
			assert.Equal(t, terminal, a.State)
		}
	}
}

func TestAttemptRejectsOutOfOrderEvents(t *testing.T) {
	tests := []struct {
		state AttemptState
		ev    Event
	}{
		{StateForm, EventSettled},
		{StateForm, EventGatewayApproved},
		{StateSubmitting, EventSubmit},
		{StateSubmitting, EventSettled},
		{StateAwaitingGateway, EventSubmit},
		{StateSettling, EventGatewayApproved},
	}
	for _, tt := range tests {
		a := &Attempt{State: tt.state}
		err := a.Apply(tt.ev, "")
		assert.ErrorIs(t, err, ErrInvalidTransition, "%s in %s", tt.ev, tt.state)
		assert.Equal(t, tt.state, a.State)
	}
}

func TestAttemptFailFromAnyNonTerminal(t *testing.T) {
	for _, state := range []AttemptState{StateForm, StateSubmitting, StateAwaitingGateway, StateSettling} {
		a := &Attempt{State: state}
		require.NoError(t, a.Apply(EventFail, "boom"))
		assert.Equal(t, StateFailed, a.State)
		assert.Equal(t, "boom", a.FailReason)
	}
}
