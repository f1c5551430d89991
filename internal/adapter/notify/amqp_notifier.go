package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/streadway/amqp"

	"github.com/okraiev/flavorshop/internal/core/domain"
)

const publishTimeout = 5 * time.Second

// orderPayload is the JSON shape delivered to the operator queue. It carries
// the same facts the operator chat message is built from.
type orderPayload struct {
	OrderID     string             `json:"order_id"`
	UserID      string             `json:"user_id"`
	DisplayName string             `json:"display_name"`
	Username    string             `json:"username,omitempty"`
	Lines       []orderPayloadLine `json:"lines"`
	TotalUnits  int                `json:"total_units"`
	CreatedAt   time.Time          `json:"created_at"`
}

type orderPayloadLine struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// AMQPNotifier publishes each finalized order as one persistent message to a
// durable topic exchange and waits for the broker's publisher confirm.
type AMQPNotifier struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	confirms   chan amqp.Confirmation
	exchange   string
	routingKey string
}

func NewAMQPNotifier(url, exchange, routingKey string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	confirms := channel.NotifyPublish(make(chan amqp.Confirmation, 1))

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPNotifier{
		conn:       conn,
		channel:    channel,
		confirms:   confirms,
		exchange:   exchange,
		routingKey: routingKey,
	}, nil
}

func (n *AMQPNotifier) Notify(ctx context.Context, order domain.Order) error {
	payload := orderPayload{
		OrderID:     order.ID,
		UserID:      order.UserID,
		DisplayName: order.DisplayName,
		Username:    order.Username,
		Lines:       make([]orderPayloadLine, 0, len(order.Lines)),
		TotalUnits:  order.Total(),
		CreatedAt:   order.CreatedAt,
	}
	for _, ln := range order.Lines {
		payload.Lines = append(payload.Lines, orderPayloadLine{
			ItemID:   ln.ItemID.String(),
			Name:     ln.Name,
			Quantity: ln.Quantity,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.ID, err)
	}

	err = n.channel.Publish(
		n.exchange,
		n.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    order.ID,
			Timestamp:    order.CreatedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish order %s: %w", order.ID, err)
	}

	select {
	case confirm := <-n.confirms:
		if confirm.Ack {
			return nil
		}
		return errors.New("order published but not confirmed")
	case <-time.After(publishTimeout):
		return errors.New("publish confirmation timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *AMQPNotifier) Close() error {
	return n.conn.Close()
}
