package persistence

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/alpi-dev/alpi/internal/config"
)

// AMQP publishes JSON messages to a durable topic exchange.
type AMQP struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewAMQP dials the broker when a URL is configured. It returns nil, nil
// when AMQP is disabled.
func NewAMQP(cfg config.AMQPConfig, logger *zap.Logger) (*AMQP, error) {
	if cfg.URL == "" {
		logger.Info("AMQP_URL not provided; event exchange disabled")
		return nil, nil
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("connected to amqp", zap.String("exchange", cfg.Exchange))
	return &AMQP{conn: conn, channel: ch, exchange: cfg.Exchange, logger: logger}, nil
}

// Publish serializes the payload to JSON and sends it to the exchange.
func (a *AMQP) Publish(ctx context.Context, routingKey string, payload any) error {
	if a == nil {
		return errors.New("amqp not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return a.channel.PublishWithContext(ctx, a.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Close terminates the channel and connection.
func (a *AMQP) Close() error {
	if a == nil {
		return nil
	}
	if err := a.channel.Close(); err != nil {
		a.logger.Warn("close amqp channel", zap.Error(err))
	}
	return a.conn.Close()
}
