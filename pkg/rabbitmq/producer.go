/**
 * @description
 * This package provides a reusable RabbitMQ event producer for the payments
 * service. It abstracts away the complexities of connecting to RabbitMQ,
 * declaring exchanges, and publishing messages.
 *
 * Key features:
 * - Manages the AMQP connection and channel.
 * - Declares a durable topic exchange for route-based delivery (e.g. "split.*").
 * - Provides a `Publish` method that marshals a Go struct into JSON and sends it.
 * - Exposes a Publisher interface plus a NoOpProducer so the service can start
 *   without a broker in local development.
 *
 * @dependencies
 * - context: For managing request-scoped deadlines and cancellations.
 * - encoding/json: To serialize event payloads.
 * - github.com/rabbitmq/amqp091-go: The official Go client for RabbitMQ.
 */
package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/url"
	"strings"

	"github.com/rabbitmq/amqp091-go"
)

// Exchange is the topic exchange every payments event is published to.
const Exchange = "ticketrack.events"

// Routing keys for the events the payments service emits.
const (
	RoutingKeySharePaid      = "split.share.paid"
	RoutingKeySplitCompleted = "split.completed"
	RoutingKeySplitExpired   = "split.expired"
	RoutingKeyOrderPaid      = "order.paid"
)

// Publisher is the interface event consumers depend on, allowing a no-op
// implementation when RabbitMQ is unavailable.
type Publisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
	Close()
}

// EventProducer is a client for publishing events to RabbitMQ.
type EventProducer struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewEventProducer creates and returns a new EventProducer.
func NewEventProducer(amqpURL string) (*EventProducer, error) {
	cleanURL, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp091.Dial(cleanURL)
	if err != nil {
		return nil, err
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &EventProducer{
		conn:    conn,
		channel: channel,
	}, nil
}

// Publish sends an event to a specific exchange with a routing key.
func (p *EventProducer) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	// Declare a topic exchange if it doesn't exist. Topic exchanges allow
	// routing messages based on patterns (e.g., "split.*").
	err := p.channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return err
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx,
		exchange,   // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Body:        jsonBody,
		})
	if err != nil {
		return err
	}

	log.Printf("Published message to exchange '%s' with routing key '%s'", exchange, routingKey)
	return nil
}

// Close gracefully closes the channel and connection.
func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// NoOpProducer satisfies Publisher without a broker connection. Events are
// logged and dropped.
type NoOpProducer struct{}

// Publish logs the dropped event.
func (n *NoOpProducer) Publish(_ context.Context, exchange, routingKey string, _ interface{}) error {
	log.Printf("level=warn component=rabbitmq msg=\"broker unavailable, dropping event\" exchange=%s routing_key=%s", exchange, routingKey)
	return nil
}

// Close is a no-op.
func (n *NoOpProducer) Close() {}
