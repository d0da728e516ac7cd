package payment

import "fmt"

// AttemptState is one step of a donation attempt. Succeeded and Failed are
// terminal; a donor retry is a brand-new attempt with a new donation row.
type AttemptState string

const (
	StateForm            AttemptState = "FORM"
	StateSubmitting      AttemptState = "SUBMITTING"
	StateAwaitingGateway AttemptState = "AWAITING_GATEWAY"
	StateSettling        AttemptState = "SETTLING"
	StateSucceeded       AttemptState = "SUCCEEDED"
	StateFailed          AttemptState = "FAILED"
)

// IsTerminal reports whether no further events are accepted.
func (s AttemptState) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Event drives the attempt forward.
type Event string

const (
	// EventSubmit leaves the form; the caller emits it only after the card
	// validator has passed.
	EventSubmit Event = "SUBMIT"
	// EventIntentCreated means the gateway accepted the intent request.
	EventIntentCreated Event = "INTENT_CREATED"
	// EventGatewayApproved / EventGatewayDeclined carry the gateway verdict.
	EventGatewayApproved Event = "GATEWAY_APPROVED"
	EventGatewayDeclined Event = "GATEWAY_DECLINED"
	// EventSettled means the ledger commit succeeded.
	EventSettled Event = "SETTLED"
	// EventFail aborts from any non-terminal state.
	EventFail Event = "FAIL"
	// EventCancel is donor-initiated and honored only before settlement
	// begins.
	EventCancel Event = "CANCEL"
)

// ErrInvalidTransition is wrapped into every rejected Apply.
var ErrInvalidTransition = fmt.Errorf("invalid attempt transition")

// Attempt is one pass through the donation flow.
type Attempt struct {
	State      AttemptState
	DonationID string
	FailReason string
}

// NewAttempt starts at the form.
func NewAttempt() *Attempt {
	return &Attempt{State: StateForm}
}

// CanCancel reports whether donor cancellation is still honored. Once
// settlement has been requested the attempt must run to a terminal state, so
// a gateway-approved payment is never orphaned.
func (a *Attempt) CanCancel() bool {
	return a.State == StateForm || a.State == StateAwaitingGateway
}

// Apply advances the state machine. Rejected events leave the state
// untouched and return ErrInvalidTransition; terminal states absorb
// everything.
func (a *Attempt) Apply(ev Event, reason string) error {
	if a.State.IsTerminal() {
		return fmt.Errorf("%w: %s in terminal state %s", ErrInvalidTransition, ev, a.State)
	}

	switch ev {
	case EventFail:
		a.fail(reason)
		return nil
	case EventCancel:
		if !a.CanCancel() {
			return fmt.Errorf("%w: cancel in state %s", ErrInvalidTransition, a.State)
		}
		a.fail("cancelled by user")
		return nil
	}

	switch a.State {
	case StateForm:
		if ev == EventSubmit {
			a.State = StateSubmitting
			return nil
		}
	case StateSubmitting:
		if ev == EventIntentCreated {
			a.State = StateAwaitingGateway
			return nil
		}
	case StateAwaitingGateway:
		switch ev {
		case EventGatewayApproved:
			a.State = StateSettling
			return nil
		case EventGatewayDeclined:
			a.fail(reason)
			return nil
		}
	case StateSettling:
		if ev == EventSettled {
			a.State = StateSucceeded
			return nil
		}
	}
	return fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev, a.State)
}

func (a *Attempt) fail(reason string) {
	a.State = StateFailed
	if reason == "" {
		reason = "payment failed"
	}
	a.FailReason = reason
}
