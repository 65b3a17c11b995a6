package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/auction"
	s3blob "github.com/alanyoungcy/auctionhouse/internal/blob/s3"
	"github.com/alanyoungcy/auctionhouse/internal/cache/redis"
	"github.com/alanyoungcy/auctionhouse/internal/config"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
	"github.com/alanyoungcy/auctionhouse/internal/notify"
	"github.com/alanyoungcy/auctionhouse/internal/server/handler"
	"github.com/alanyoungcy/auctionhouse/internal/service"
	"github.com/alanyoungcy/auctionhouse/internal/store/postgres"
	"github.com/alanyoungcy/auctionhouse/internal/stream/natsstream"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Auctions    *postgres.AuctionStore
	Events      *postgres.EventStore
	EngineState *postgres.EngineStateStore
	Ledger      *postgres.LedgerStore
	Commits     *postgres.CommitStore
	// Writer fences the engine so one process writes to the database.
	Writer domain.WriterLease

	// Redis
	Cache       domain.AuctionCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage; nil unless archiving is enabled.
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Publishers receive every committed event batch.
	Publishers []domain.EventPublisher

	// Pingers feed the health check.
	Pingers map[string]handler.Pinger
}

// Wire constructs all concrete dependency implementations from cfg and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Pingers: map[string]handler.Pinger{}}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fail("postgres", err)
	}
	closers = append(closers, pgClient.Close)
	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			return fail("postgres migrations", err)
		}
	}
	pool := pgClient.Pool()
	deps.Auctions = postgres.NewAuctionStore(pool)
	deps.Events = postgres.NewEventStore(pool)
	deps.EngineState = postgres.NewEngineStateStore(pool)
	deps.Ledger = postgres.NewLedgerStore(pool)
	deps.Commits = postgres.NewCommitStore(pool)
	deps.Writer = pgClient
	deps.Pingers["postgres"] = pgClient

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return fail("redis", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	bus := redis.NewSignalBus(redisClient, 0)
	deps.Cache = redis.NewAuctionCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = bus
	deps.Publishers = append(deps.Publishers, redis.NewEventPublisher(bus))
	deps.Pingers["redis"] = redisClient

	// --- NATS JetStream ---
	if cfg.NATS.Enabled {
		pub, err := natsstream.Connect(ctx, natsstream.Config{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		})
		if err != nil {
			return fail("nats", err)
		}
		closers = append(closers, func() { _ = pub.Close() })
		deps.Publishers = append(deps.Publishers, pub)
	}

	// --- S3 archive ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), reader, deps.Events)
		deps.Pingers["s3"] = pingerFunc(s3Client.Health)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 {
		deps.Publishers = append(deps.Publishers, notify.NewNotifier(senders, cfg.Notify.Events, logger))
	}

	return deps, cleanup, nil
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// newEngine takes the writer lease, builds the ledger, house and service and
// restores committed state from Postgres. The caller must call release when
// the engine stops.
func newEngine(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (_ *service.AuctionService, _ func(), err error) {
	unlock := func() {}
	if deps.Writer != nil {
		if unlock, err = deps.Writer.AcquireWriter(ctx); err != nil {
			return nil, nil, fmt.Errorf("engine: %w", err)
		}
	}
	defer func() {
		if err != nil {
			unlock()
		}
	}()

	l := ledger.New(ledger.Options{WrappedAsset: common.HexToAddress(cfg.Engine.WrappedAsset)})

	var royalty common.Address
	if cfg.Engine.RoyaltyCollection != "" {
		royalty = common.HexToAddress(cfg.Engine.RoyaltyCollection)
	}
	house, err := auction.New(auction.Config{
		House:             common.HexToAddress(cfg.Engine.HouseAddress),
		Recovery:          common.HexToAddress(cfg.Engine.RecoveryAddress),
		RoyaltyCollection: royalty,
		DirectTransferGas: cfg.Engine.DirectTransferGas,
	}, l)
	if err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}

	svc := service.NewAuctionService(house, l, service.AuctionServiceConfig{
		Commits:    deps.Commits,
		Events:     deps.Events,
		Cache:      deps.Cache,
		Publishers: deps.Publishers,
	}, logger)
	if err = svc.Restore(ctx, deps.Auctions, deps.EngineState, deps.Ledger); err != nil {
		return nil, nil, fmt.Errorf("engine: %w", err)
	}
	logger.InfoContext(ctx, "engine lease acquired")
	return svc, unlock, nil
}
