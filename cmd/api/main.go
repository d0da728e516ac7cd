package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/fundlift/donation-server/internal/adapter/repo"
	"github.com/fundlift/donation-server/internal/cache"
	"github.com/fundlift/donation-server/internal/card"
	"github.com/fundlift/donation-server/internal/gateway"
	"github.com/fundlift/donation-server/internal/http/handlers"
	httpapi "github.com/fundlift/donation-server/internal/http/httpapi"
	"github.com/fundlift/donation-server/internal/infra"
	"github.com/fundlift/donation-server/internal/infra/geoip"
	"github.com/fundlift/donation-server/internal/notify"
	"github.com/fundlift/donation-server/internal/payment"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "api")

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)
	donations := repo.NewDonationRepository(runner)
	campaigns := repo.NewCampaignRepository(runner)

	brands, err := card.LoadBrandTable(cfg.BrandTablePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load card brand table")
	}

	gw := newGatewayClient(cfg)

	dispatcher, err := notify.NewDispatcher(cfg.AmqpURL, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect message broker")
	}
	defer dispatcher.Close()

	var totals *cache.TotalsCache
	if cfg.RedisAddr != "" {
		totals = cache.NewTotalsCache(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	}

	orchestrator := payment.NewOrchestrator(
		donations,
		campaigns,
		gw,
		dispatcher,
		totalsOrNil(totals),
		brands,
		payment.Config{
			Minimums:       cfg.MinDonation,
			DefaultMinimum: cfg.MinDonationDefault,
			SettleRetries:  cfg.SettleRetries,
			SettleBackoff:  cfg.SettleBackoff,
		},
		logger,
	)

	app := &handlers.App{
		Service:   orchestrator,
		Donations: donations,
		Campaigns: campaigns,
		Totals:    totalsReaderOrNil(totals),
		GeoIP:     resolver,
		Logger:    logger,
	}

	router := httpapi.NewRouter(app, httpapi.RouterOptions{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func newGatewayClient(cfg *infra.Config) gateway.Client {
	if cfg.GatewayMode == "http" {
		return gateway.NewHTTPClient(gateway.HTTPClientOptions{
			BaseURL:   cfg.GatewayBaseURL,
			SecretKey: cfg.GatewaySecretKey,
			Timeout:   cfg.GatewayTimeout,
		})
	}
	return gateway.NewSimulator(time.Now().UnixNano(), cfg.GatewayDeclineRate)
}

// totalsOrNil keeps the orchestrator's nil check meaningful; a typed nil
// pointer inside the interface would defeat it.
func totalsOrNil(totals *cache.TotalsCache) payment.TotalsCache {
	if totals == nil {
		return nil
	}
	return totals
}

func totalsReaderOrNil(totals *cache.TotalsCache) handlers.TotalsReader {
	if totals == nil {
		return nil
	}
	return totals
}
