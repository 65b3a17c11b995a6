package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const auctionTTL = 10 * time.Minute

// AuctionCache implements domain.AuctionCache with one JSON string per
// auction under auctionhouse:auction:{id}.
type AuctionCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewAuctionCache creates an AuctionCache backed by the given Client.
func NewAuctionCache(c *Client) *AuctionCache {
	return &AuctionCache{rdb: c.rdb, ttl: auctionTTL}
}

func auctionKey(id domain.AuctionID) string { return key("auction", id.Hex()) }

// Set stores a committed auction record.
func (ac *AuctionCache) Set(ctx context.Context, a domain.Auction) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("redis: marshal auction %s: %w", a.ID.Hex(), err)
	}
	if err := ac.rdb.Set(ctx, auctionKey(a.ID), data, ac.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set auction %s: %w", a.ID.Hex(), err)
	}
	return nil
}

// Get returns the cached record or domain.ErrNotFound.
func (ac *AuctionCache) Get(ctx context.Context, id domain.AuctionID) (domain.Auction, error) {
	data, err := ac.rdb.Get(ctx, auctionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("redis: get auction %s: %w", id.Hex(), err)
	}
	var a domain.Auction
	if err := json.Unmarshal(data, &a); err != nil {
		return domain.Auction{}, fmt.Errorf("redis: unmarshal auction %s: %w", id.Hex(), err)
	}
	return a, nil
}

// Invalidate drops the cached record.
func (ac *AuctionCache) Invalidate(ctx context.Context, id domain.AuctionID) error {
	if err := ac.rdb.Del(ctx, auctionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate auction %s: %w", id.Hex(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AuctionCache = (*AuctionCache)(nil)
