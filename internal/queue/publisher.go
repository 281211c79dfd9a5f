package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Publisher publishes order lifecycle events to RabbitMQ. Errors are
// logged and returned so callers can ignore failures without
// interrupting the main request flow; no transition ever waits on or
// rolls back because of the broker.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher that dials the broker at the given
// AMQP URL on each publish. Connections are short-lived on purpose: the
// publish volume here is one message per order transition and a cached
// connection would just be one more thing to heal after broker
// restarts.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// PublishOrderEvent sends the event to the order.notifications queue.
// The queue is declared durable and messages are marked persistent so
// notifications survive broker restarts.
func (p *Publisher) PublishOrderEvent(ctx context.Context, event OrderEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error().Err(err).Msg("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		OrderNotificationsQueue, // name
		true,                    // durable
		false,                   // autoDelete
		false,                   // exclusive
		false,                   // noWait
		nil,                     // args
	); err != nil {
		log.Error().Err(err).Msg("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("rabbitmq: marshal event failed")
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",                      // default exchange
		OrderNotificationsQueue, // routing key = queue name
		false,                   // mandatory
		false,                   // immediate
		pub,
	); err != nil {
		log.Error().Err(err).Str("order_id", event.OrderID).Msg("rabbitmq: publish failed")
		return err
	}
	return nil
}
