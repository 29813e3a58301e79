// Package messaging carries order events over RabbitMQ.
package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const QueueOrderConfirmed = "order.confirmed"

// OrderConfirmed is published once per paid order, after its transaction
// committed.
type OrderConfirmed struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      int64     `json:"user_id"`
	EventID     int64     `json:"event_id"`
	EventName   string    `json:"event_name"`
	SeatIDs     []string  `json:"seat_ids"`
	TotalCents  int64     `json:"total_cents"`
	Currency    string    `json:"currency"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}

func decodeOrderConfirmed(body []byte) (OrderConfirmed, error) {
	var msg OrderConfirmed
	if err := json.Unmarshal(body, &msg); err != nil {
		return OrderConfirmed{}, fmt.Errorf("decode %s: %w", QueueOrderConfirmed, err)
	}

	if msg.OrderID == uuid.Nil {
		return OrderConfirmed{}, fmt.Errorf("decode %s: missing order_id", QueueOrderConfirmed)
	}

	return msg, nil
}
