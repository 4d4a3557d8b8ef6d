package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
)

// Notifier delivers one event to the participant.
type Notifier interface {
	Notify(ctx context.Context, ev RegistrationEvent) error
}

// Consumer reads both registration queues and hands each event to a
// Notifier.
type Consumer struct {
	cfg      config.QueueConfig
	notifier Notifier
}

func NewConsumer(cfg config.QueueConfig, n Notifier) *Consumer {
	return &Consumer{cfg: cfg, notifier: n}
}

// Run connects to RabbitMQ and consumes until ctx is cancelled, redialling
// with exponential backoff (capped at 30s) whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.DialConfig(c.cfg.URL, amqp.Config{Dial: amqp.DefaultDial(c.cfg.DialTimeout)})
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("notification consumer: dial failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Msg("notification consumer: consume loop ended, reconnecting")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn().Err(err).Msg("notification consumer: set QoS failed")
	}

	merged := make(chan amqp.Delivery)
	stop := make(chan struct{})
	defer close(stop)
	for _, q := range Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", q, err)
		}
		msgs, err := ch.Consume(q, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", q, err)
		}
		go func(msgs <-chan amqp.Delivery) {
			for d := range msgs {
				select {
				case merged <- d:
				case <-stop:
					return
				}
			}
		}(msgs)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr != nil {
				return amqpErr
			}
			return errors.New("channel closed")
		case d := <-merged:
			if err := c.Handle(ctx, d.Body); err != nil {
				log.Error().Err(err).Str("queue", d.RoutingKey).Msg("notification consumer: handle message failed")
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// Handle decodes one message body and delivers it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var ev RegistrationEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Summary.RegistrationID == "" {
		return errors.New("event without registration id")
	}
	return c.notifier.Notify(ctx, ev)
}
