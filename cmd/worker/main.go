package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fundlift/donation-server/internal/infra"
	"github.com/fundlift/donation-server/internal/notify"
)

// The worker drains the receipt queue and delivers thank-you and
// pending-verification emails through the mail provider.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailer := notify.NewHTTPMailer(notify.MailerOptions{
		BaseURL: cfg.MailBaseURL,
		APIKey:  cfg.MailAPIKey,
		From:    cfg.MailFrom,
	})

	sender, err := notify.NewSender(cfg.AmqpURL, mailer, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: broker connection failed")
	}
	defer sender.Close()

	logger.Info().Msg("worker: started")
	if err := sender.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}
