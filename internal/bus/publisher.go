package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Envelope is the minimal cross-service event form. EventID is a correlation
// id so any future consumer can deduplicate before acting on the event.
type Envelope struct {
	EventID      string    `json:"event_id"`
	Type         string    `json:"type"`
	TargetUserID string    `json:"target_user_id"`
	SourceUserID string    `json:"source_user_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher pushes friend-graph events to a RabbitMQ topic exchange for other
// services to consume. The channel is strictly one-way: nothing published
// here is ever consumed back into this service's own push pipeline.
//
// A nil Publisher is a valid no-op, so an unconfigured bus degrades
// gracefully.
type Publisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	timeout  time.Duration
}

// NewPublisher connects to RabbitMQ and declares the topic exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		exchange, // name
		"topic",  // kind
		true,     // durable
		false,    // auto-delete
		false,    // internal
		false,    // no-wait
		nil,      // args
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		timeout:  2 * time.Second,
	}, nil
}

// Publish sends one event envelope, best effort. Transport failures are
// logged and the event is dropped: the notification store already holds the
// durable copy of intra-service effects, this channel exists only for other
// services' convenience.
func (p *Publisher) Publish(ctx context.Context, routingKey string, eventType string, targetUserID, sourceUserID string) {
	if p == nil || p.channel == nil {
		return
	}

	envelope := Envelope{
		EventID:      uuid.New().String(),
		Type:         eventType,
		TargetUserID: targetUserID,
		SourceUserID: sourceUserID,
		OccurredAt:   time.Now(),
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		logrus.Errorf("failed to marshal event envelope: %v", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    envelope.OccurredAt,
			MessageId:    envelope.EventID,
		},
	)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"routing_key": routingKey,
			"event_type":  eventType,
		}).Warnf("dropping outbound event, publish failed: %v", err)
	}
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}
	return nil
}
