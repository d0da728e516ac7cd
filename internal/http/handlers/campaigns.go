package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// CampaignTotals serves the public running total for a campaign. The cache is
// consulted first; the ledger row is authoritative on a miss.
func (a *App) CampaignTotals(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")

	if a.Totals != nil {
		if total, err := a.Totals.GetTotal(r.Context(), campaignID); err == nil {
			a.json(w, http.StatusOK, map[string]any{
				"campaign_id":    campaignID,
				"current_amount": total,
				"source":         "cache",
			})
			return
		}
	}

	total, err := a.Campaigns.CurrentTotal(r.Context(), campaignID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"campaign_id":    campaignID,
		"current_amount": total,
		"source":         "ledger",
	})
}
