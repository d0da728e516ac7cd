package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fundlift/donation-server/internal/http/handlers"
	"github.com/fundlift/donation-server/internal/middleware"
)

// RouterOptions carries the pieces of config the router needs.
type RouterOptions struct {
	Logger          zerolog.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.AllowedOrigins),
	)
	if opts.RateLimitPerMin > 0 {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/donations", func(r chi.Router) {
		r.Post("/", app.DonationsCreate)
		r.Get("/recent", app.DonationsRecent)
		r.Post("/{id}/confirm", app.DonationsConfirm)
		r.Post("/{id}/cancel", app.DonationsCancel)
	})

	r.Get("/v1/campaigns/{id}/totals", app.CampaignTotals)

	return r
}
