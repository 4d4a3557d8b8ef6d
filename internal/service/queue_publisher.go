// Package service publishes registration events to RabbitMQ. Publishing is
// fire-and-forget: failures are logged and counted, never returned to the
// request that triggered them.
package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/esplendidez/fest-registration/internal/config"
	"github.com/esplendidez/fest-registration/internal/metrics"
	"github.com/esplendidez/fest-registration/internal/model"
	"github.com/esplendidez/fest-registration/internal/queue"
)

// EventPublisher is what handlers depend on.
type EventPublisher interface {
	RegistrationSubmitted(reg *model.Registration)
	PaymentConfirmed(reg *model.Registration)
}

// QueuePublisher dials the broker per publish; traffic is a handful of
// messages per registration.
type QueuePublisher struct {
	cfg     config.QueueConfig
	timeout time.Duration
}

func NewQueuePublisher(cfg config.QueueConfig) *QueuePublisher {
	return &QueuePublisher{cfg: cfg, timeout: cfg.DialTimeout + 3*time.Second}
}

func (p *QueuePublisher) RegistrationSubmitted(reg *model.Registration) {
	p.async(queue.NewRegistrationSubmitted(reg))
}

func (p *QueuePublisher) PaymentConfirmed(reg *model.Registration) {
	p.async(queue.NewPaymentConfirmed(reg))
}

func (p *QueuePublisher) async(ev queue.RegistrationEvent) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			metrics.EventsPublished.WithLabelValues(ev.Type, "failed").Inc()
			return
		}
		metrics.EventsPublished.WithLabelValues(ev.Type, "ok").Inc()
	}()
}

// Publish sends ev to the queue named by its type. Messages are persistent.
func (p *QueuePublisher) Publish(ctx context.Context, ev queue.RegistrationEvent) error {
	conn, err := amqp.DialConfig(p.cfg.URL, amqp.Config{Dial: amqp.DefaultDial(p.cfg.DialTimeout)})
	if err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(ev.Type, true, false, false, false, nil); err != nil {
		log.Warn().Err(err).Str("queue", ev.Type).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ev.Type, false, false, pub); err != nil {
		log.Warn().Err(err).Str("queue", ev.Type).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}

// NopPublisher drops events; used when the queue is disabled.
type NopPublisher struct{}

func (NopPublisher) RegistrationSubmitted(*model.Registration) {}
func (NopPublisher) PaymentConfirmed(*model.Registration) {}
