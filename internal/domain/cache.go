package domain

import (
	"context"
	"time"
)

// OddsCache provides fast access to the latest odds per (game, market).
type OddsCache interface {
	SetOdds(ctx context.Context, gameID, market string, odds Odds, ts time.Time) error
	GetOdds(ctx context.Context, gameID, market string) (Odds, time.Time, error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for tick, relationship,
// and opportunity events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
