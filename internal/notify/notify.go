// Package notify publishes settlement notifications to RabbitMQ. Delivery is
// handled by the mail worker consuming the same queue.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gigmatch-dev/settlement/backend/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the dispatcher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQDispatcher struct {
	channel Channel
	queue   string
	now     func() time.Time
}

func NewRabbitMQDispatcher(ch Channel, queue string) *RabbitMQDispatcher {
	return &RabbitMQDispatcher{
		channel: ch,
		queue:   queue,
		now:     time.Now,
	}
}

// DeclareQueue declares the durable queue shared by the API and the mail worker.
func DeclareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	return ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
}

func (d *RabbitMQDispatcher) Notify(ctx context.Context, kind domain.NotificationKind, payload domain.NotificationPayload) error {
	body, err := json.Marshal(domain.Notification{
		Kind:      kind,
		Payload:   payload,
		CreatedAt: d.now(),
	})
	if err != nil {
		return err
	}

	return d.channel.PublishWithContext(
		ctx,
		"",
		d.queue,
		true,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Type:         string(kind),
			Body:         body,
		},
	)
}
