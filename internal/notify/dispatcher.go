package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/fundlift/donation-server/internal/domain"
)

const (
	// ExchangeName and queue topology for receipt dispatch.
	ExchangeName = "donations"
	QueueName    = "donation_receipts"
	RoutingKey   = "donation.completed"
	// PrefetchCount keeps the worker at one in-flight receipt per consumer.
	PrefetchCount = 1
)

// declareTopology sets up the durable exchange/queue pair; both the
// publisher and the consumer call it so either side may start first.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(ExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(QueueName, RoutingKey, ExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Dispatcher publishes receipts to the queue. It implements the
// orchestrator's Notifier contract; a publish failure is returned for
// logging but the donation outcome is already durable at that point.
type Dispatcher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  zerolog.Logger
}

// NewDispatcher connects to the broker and declares the receipt topology.
func NewDispatcher(amqpURL string, logger zerolog.Logger) (*Dispatcher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("notify: connect broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}
	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: %w", err)
	}
	return &Dispatcher{conn: conn, channel: channel, logger: logger}, nil
}

// DonationCompleted builds the receipt for a settled donation and enqueues
// it. Donations without a donor email address are skipped; there is nowhere
// to send the receipt.
func (d *Dispatcher) DonationCompleted(ctx context.Context, donation *domain.Donation, campaign *domain.Campaign) error {
	if donation.DonorEmail == "" {
		d.logger.Debug().Str("donation_id", donation.ID).Msg("no donor email, receipt skipped")
		return nil
	}
	completedAt := time.Now()
	if donation.ProcessedAt != nil {
		completedAt = *donation.ProcessedAt
	}
	receipt := Receipt{
		DonationID:      donation.ID,
		CampaignID:      campaign.ID,
		CampaignTitle:   campaign.Title,
		CreatorName:     campaign.CreatorName,
		CreatorVerified: campaign.CreatorVerified,
		DonorEmail:      donation.DonorEmail,
		AmountInt:       donation.AmountInt,
		Currency:        donation.Currency,
		CardBrand:       donation.CardBrand,
		CardLastFour:    donation.CardLastFour,
		TransactionID:   donation.GatewayIntentID,
		CompletedAt:     completedAt,
	}
	return d.Publish(ctx, receipt)
}

// Publish enqueues one receipt as a persistent message.
func (d *Dispatcher) Publish(ctx context.Context, receipt Receipt) error {
	body, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("notify: marshal receipt: %w", err)
	}
	err = d.channel.PublishWithContext(ctx, ExchangeName, RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    receipt.DonationID,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("notify: publish receipt: %w", err)
	}
	d.logger.Info().Str("donation_id", receipt.DonationID).Msg("receipt enqueued")
	return nil
}

// Close releases the channel and connection.
func (d *Dispatcher) Close() {
	if d.channel != nil {
		d.channel.Close()
	}
	if d.conn != nil {
		d.conn.Close()
	}
}
