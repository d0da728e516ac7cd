package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrGatewayDeclined    = errors.New("gateway declined")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrLedgerCommit       = errors.New("ledger commit failed")
	ErrDuplicateOperation = errors.New("duplicate operation")
)
