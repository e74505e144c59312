package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
)

type amqpEnvelope struct {
	Type       string `json:"type"`
	Source     string `json:"source"`
	MediaID    string `json:"media_id"`
	OccurredAt string `json:"occurred_at"`
	Data       any    `json:"data,omitempty"`
}

// AMQPPublisher publishes JSON events to a durable topic exchange using the
// event type as routing key.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	source   string
}

func NewAMQPPublisher(url, exchange, source string) (*AMQPPublisher, error) {
	if strings.TrimSpace(exchange) == "" {
		return nil, errors.New("amqp exchange is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		source:   source,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	evt = stamp(evt)

	body, err := json.Marshal(amqpEnvelope{
		Type:       evt.Type,
		Source:     p.source,
		MediaID:    evt.MediaID,
		OccurredAt: evt.OccurredAt.Format("2006-01-02T15:04:05.000Z07:00"),
		Data:       evt.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal amqp event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		p.exchange,
		evt.Type,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.OccurredAt,
			MessageId:    uuid.NewString(),
			Type:         evt.Type,
			AppId:        p.source,
		},
	)
	if err != nil {
		return fmt.Errorf("publish amqp event %s: %w", evt.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return errors.Join(p.channel.Close(), p.conn.Close())
}
