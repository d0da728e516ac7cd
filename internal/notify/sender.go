package notify

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Sender is the worker side: it consumes receipts from the queue and
// delivers them through the mail provider. Transient send failures requeue
// the delivery once; a failure on the redelivered copy is logged and
// dropped so one bad receipt cannot wedge the queue.
type Sender struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	mailer  Mailer
	logger  zerolog.Logger
}

// NewSender connects to the broker and declares the receipt topology.
func NewSender(amqpURL string, mailer Mailer, logger zerolog.Logger) (*Sender, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("notify: connect broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("notify: open channel: %w", err)
	}
	if err := channel.Qos(PrefetchCount, 0, false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: set qos: %w", err)
	}
	if err := declareTopology(channel); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("notify: %w", err)
	}
	return &Sender{conn: conn, channel: channel, mailer: mailer, logger: logger}, nil
}

// Run consumes until the context is cancelled or the channel closes.
func (s *Sender) Run(ctx context.Context) error {
	deliveries, err := s.channel.Consume(QueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("notify: consume: %w", err)
	}
	s.logger.Info().Str("queue", QueueName).Msg("sender: started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("notify: delivery channel closed")
			}
			s.handle(ctx, delivery)
		}
	}
}

func (s *Sender) handle(ctx context.Context, delivery amqp.Delivery) {
	var receipt Receipt
	if err := json.Unmarshal(delivery.Body, &receipt); err != nil {
		s.logger.Error().Err(err).Msg("sender: malformed receipt dropped")
		_ = delivery.Reject(false)
		return
	}

	if err := s.Deliver(ctx, receipt); err != nil {
		if delivery.Redelivered {
			s.logger.Error().Err(err).Str("donation_id", receipt.DonationID).Msg("sender: giving up on receipt")
			_ = delivery.Reject(false)
			return
		}
		s.logger.Warn().Err(err).Str("donation_id", receipt.DonationID).Msg("sender: requeueing receipt")
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
}

// Deliver composes and sends every email for the receipt.
func (s *Sender) Deliver(ctx context.Context, receipt Receipt) error {
	for _, email := range Compose(receipt) {
		if err := s.mailer.Send(ctx, email); err != nil {
			return fmt.Errorf("send %q to %s: %w", email.Subject, email.To, err)
		}
		s.logger.Info().Str("donation_id", receipt.DonationID).Str("to", email.To).Str("subject", email.Subject).Msg("sender: receipt delivered")
	}
	return nil
}

// Close releases the channel and connection.
func (s *Sender) Close() {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
