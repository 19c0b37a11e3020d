package events

import (
	"context"
	"time"
)

// Stream carrying all arcade events.
const StreamArcade = "events:arcade"

// Event types
const (
	EventGamePlayed            = "game_played"
	EventCoinsPurchased        = "coins_purchased"
	EventPurchaseStatusChanged = "purchase_status_changed"
)

type Event struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
	At      time.Time      `json:"at"` // stamped by the publisher
}

type Publisher interface {
	Publish(ctx context.Context, stream string, event Event) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, stream string, handler func(Event)) error
}
