// Package redis implements the read cache, distributed lock, rate limiter and
// event bus on top of go-redis/v9. Every key lives under keyPrefix so the
// engine can share a Redis database with other services.
package redis

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auctionhouse:"

// key joins parts under keyPrefix, e.g. key("lock", "settle") is
// "auctionhouse:lock:settle".
func key(parts ...string) string {
	return keyPrefix + strings.Join(parts, ":")
}

// minStreamsMajor is the first Redis release with XADD and XRANGE, which the
// signal bus relies on for the replayable event stream.
const minStreamsMajor = 5

// ClientConfig holds connection parameters.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client owns the connection pool shared by the cache, lock manager, rate
// limiter and signal bus.
type Client struct {
	rdb     *redis.Client
	version string
}

// New connects and refuses servers too old to carry the event stream.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	rdb := redis.NewClient(opts)

	info, err := rdb.Info(ctx, "server").Result()
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	version, err := checkServer(info)
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, version: version}, nil
}

// checkServer reads redis_version from an INFO server reply and rejects
// versions without streams.
func checkServer(info string) (string, error) {
	var version string
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		if v, ok := strings.CutPrefix(strings.TrimSpace(sc.Text()), "redis_version:"); ok {
			version = v
			break
		}
	}
	if version == "" {
		return "", errors.New("INFO reply has no redis_version")
	}
	major, err := strconv.Atoi(strings.SplitN(version, ".", 2)[0])
	if err != nil {
		return "", fmt.Errorf("unreadable redis_version %q", version)
	}
	if major < minStreamsMajor {
		return "", fmt.Errorf("server %s predates streams; need %d.0 or later", version, minStreamsMajor)
	}
	return version, nil
}

// Version is the server version seen at connect.
func (c *Client) Version() string { return c.version }

// Ping checks the connection for the health endpoint. A failure reports how
// many pooled connections were in use, which separates a dead server from an
// exhausted pool.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		st := c.rdb.PoolStats()
		return fmt.Errorf("redis: ping (pool %d/%d idle, %d timeouts): %w",
			st.IdleConns, st.TotalConns, st.Timeouts, err)
	}
	return nil
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}
