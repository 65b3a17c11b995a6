package domain

import (
	"context"
	"time"
)

// AuctionCache provides fast read-side access to committed auction records.
type AuctionCache interface {
	Set(ctx context.Context, a Auction) error
	Get(ctx context.Context, id AuctionID) (Auction, error)
	Invalidate(ctx context.Context, id AuctionID) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// EventPublisher fans committed events out to downstream consumers.
type EventPublisher interface {
	PublishEvents(ctx context.Context, events []Event) error
}

// RateLimiter provides sliding-window rate limiting keyed by caller.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
