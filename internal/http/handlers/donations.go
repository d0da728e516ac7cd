package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fundlift/donation-server/internal/payment"
)

type cardPayload struct {
	Number   string `json:"number"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
	CVV      string `json:"cvv"`
}

type donationCreateRequest struct {
	CampaignID  string      `json:"campaign_id"`
	DonorID     *string     `json:"donor_id"`
	DonorEmail  string      `json:"donor_email"`
	Amount      int64       `json:"amount"`
	Currency    string      `json:"currency"`
	Message     string      `json:"message"`
	IsAnonymous bool        `json:"is_anonymous"`
	Card        cardPayload `json:"card"`
}

func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	var req donationCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.CampaignID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "campaign_id is required")
		return
	}
	if req.Amount <= 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "amount must be positive")
		return
	}

	result, err := a.Service.Begin(r.Context(), payment.BeginRequest{
		CampaignID:  req.CampaignID,
		DonorID:     req.DonorID,
		DonorEmail:  req.DonorEmail,
		AmountInt:   req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		Message:     req.Message,
		IsAnonymous: req.IsAnonymous,
		Card: payment.CardInput{
			Number:   req.Card.Number,
			ExpMonth: req.Card.ExpMonth,
			ExpYear:  req.Card.ExpYear,
			CVV:      req.Card.CVV,
		},
		DonorCountry: a.donorCountry(r),
	})
	if err != nil {
		a.domainError(w, err)
		return
	}

	a.json(w, http.StatusCreated, map[string]any{
		"donation_id":    result.DonationID,
		"gateway_secret": result.GatewaySecret,
		"brand":          result.CardBrand,
		"last_four":      result.CardLastFour,
	})
}

type donationConfirmRequest struct {
	GatewayConfirmationID string `json:"gateway_confirmation_id"`
}

func (a *App) DonationsConfirm(w http.ResponseWriter, r *http.Request) {
	donationID := chi.URLParam(r, "id")
	var req donationConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.GatewayConfirmationID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "gateway_confirmation_id is required")
		return
	}

	result, err := a.Service.Confirm(r.Context(), donationID, req.GatewayConfirmationID)
	if err != nil {
		a.domainError(w, err)
		return
	}

	resp := map[string]any{
		"status":            string(result.Status),
		"already_completed": result.AlreadyCompleted,
	}
	if result.FailureReason != "" {
		resp["failure_reason"] = result.FailureReason
	} else {
		resp["new_campaign_total"] = result.NewCampaignTotal
	}
	a.json(w, http.StatusOK, resp)
}

func (a *App) DonationsCancel(w http.ResponseWriter, r *http.Request) {
	donationID := chi.URLParam(r, "id")
	if err := a.Service.Cancel(r.Context(), donationID); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// DonationsRecent is the public feed of completed donations. Anonymous
// donors are masked; emails never leave this service.
func (a *App) DonationsRecent(w http.ResponseWriter, r *http.Request) {
	donations, err := a.Donations.ListRecent(r.Context(), 20)
	if err != nil {
		a.domainError(w, err)
		return
	}

	items := make([]map[string]any, 0, len(donations))
	for _, d := range donations {
		var donorID any
		if !d.IsAnonymous && d.DonorID != nil {
			donorID = *d.DonorID
		}
		message := d.Message
		if d.IsAnonymous {
			message = ""
		}
		items = append(items, map[string]any{
			"id":          d.ID,
			"campaign_id": d.CampaignID,
			"donor_id":    donorID,
			"amount":      d.AmountInt,
			"currency":    d.Currency,
			"message":     message,
			"created_at":  d.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// donorCountry resolves the client IP to an ISO country code. Best effort
// only; a missing geoip database or an unroutable address yields "".
func (a *App) donorCountry(r *http.Request) string {
	if a.GeoIP == nil {
		return ""
	}
	code, err := a.GeoIP.CountryCode(clientIP(r))
	if err != nil {
		return ""
	}
	return code
}

func clientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if ip := strings.TrimSpace(parts[0]); net.ParseIP(ip) != nil {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
