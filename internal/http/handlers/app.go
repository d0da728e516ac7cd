package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fundlift/donation-server/internal/domain"
	"github.com/fundlift/donation-server/internal/infra/geoip"
	"github.com/fundlift/donation-server/internal/payment"
)

// DonationService is the slice of the payment orchestrator the HTTP layer
// depends on.
type DonationService interface {
	Begin(ctx context.Context, req payment.BeginRequest) (*payment.BeginResult, error)
	Confirm(ctx context.Context, donationID, confirmationID string) (*payment.ConfirmResult, error)
	Cancel(ctx context.Context, donationID string) error
}

// TotalsReader serves cached campaign totals; nil disables the cache path.
type TotalsReader interface {
	GetTotal(ctx context.Context, campaignID string) (int64, error)
}

type App struct {
	Service   DonationService
	Donations domain.DonationRepository
	Campaigns domain.CampaignRepository
	Totals    TotalsReader
	GeoIP     geoip.CountryResolver
	Logger    zerolog.Logger
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// domainError maps domain sentinel errors onto the HTTP taxonomy. Message
// text comes from the wrapped error so validation failures stay actionable.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		a.error(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrDuplicateOperation):
		a.error(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrGatewayDeclined):
		a.error(w, http.StatusPaymentRequired, "card_declined", "card declined by the payment processor")
	case errors.Is(err, domain.ErrGatewayUnavailable):
		a.error(w, http.StatusBadGateway, "gateway_unavailable", "payment gateway unavailable, retry the confirm")
	case errors.Is(err, domain.ErrLedgerCommit):
		// The charge may have succeeded; the client must retry the confirm,
		// not the donation.
		a.error(w, http.StatusServiceUnavailable, "processing_delayed", "settlement delayed, retry the confirm")
	default:
		a.Logger.Error().Err(err).Msg("unhandled handler error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
