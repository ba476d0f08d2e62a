package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange                = "storefront.events"
	CheckoutInitiatedRoutingKey   = "checkout.initiated.v1"
	EventTypeCheckoutInitiated    = "CheckoutInitiated"
	checkoutInitiatedEventVersion = 1
	producerName                  = "grocery-cart"
)

// EventEnvelope wraps every published event payload.
type EventEnvelope[T any] struct {
	EventName    string    `json:"eventName"`
	EventVersion int       `json:"eventVersion"`
	EventID      string    `json:"eventId"`
	Producer     string    `json:"producer"`
	PartitionKey string    `json:"partitionKey"`
	OccurredAt   time.Time `json:"occurredAt"`
	Payload      T         `json:"payload"`
}

// amqpChannel is the part of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type AMQPPublisher struct {
	ch       amqpChannel
	exchange string
	now      func() time.Time
}

func NewAMQPPublisher(ch amqpChannel, exchange string) *AMQPPublisher {
	if exchange == "" {
		exchange = EventsExchange
	}

	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		now:      time.Now,
	}
}

// DeclareExchange declares the durable topic exchange events go to.
func DeclareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

func (p *AMQPPublisher) Publish(ctx context.Context, snapshot domain.CheckoutSnapshot) error {
	envelope := newCheckoutInitiatedEvent(snapshot, p.now())

	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, CheckoutInitiatedRoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    envelope.EventID,
		Timestamp:    envelope.OccurredAt,
		Type:         envelope.EventName,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("ch.PublishWithContext: %w", err)
	}

	return nil
}

func newCheckoutInitiatedEvent(snapshot domain.CheckoutSnapshot, now time.Time) EventEnvelope[domain.CheckoutSnapshot] {
	return EventEnvelope[domain.CheckoutSnapshot]{
		EventName:    EventTypeCheckoutInitiated,
		EventVersion: checkoutInitiatedEventVersion,
		EventID:      uuid.NewString(),
		Producer:     producerName,
		PartitionKey: snapshot.ID.String(),
		OccurredAt:   now.UTC(),
		Payload:      snapshot,
	}
}
