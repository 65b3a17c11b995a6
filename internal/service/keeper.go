package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const keeperLockKey = "keeper:settle"

// Settler is what the keeper drives: the in-process AuctionService, or a
// client of a remote server's API.
type Settler interface {
	Settleable(ctx context.Context, limit int) ([]domain.Auction, error)
	Settle(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error)
}

// KeeperConfig configures the settlement sweeper.
type KeeperConfig struct {
	Caller    common.Address
	Interval  time.Duration
	LockTTL   time.Duration
	BatchSize int
}

// Keeper periodically settles auctions whose closing time has passed.
// Settlement is permissionless, so the keeper calls it under its own
// identity. A distributed lock keeps replicas from sweeping together.
type Keeper struct {
	svc    Settler
	locks  domain.LockManager
	cfg    KeeperConfig
	logger *slog.Logger
}

// NewKeeper creates a Keeper. locks may be nil on a single node.
func NewKeeper(svc Settler, locks domain.LockManager, cfg KeeperConfig, logger *slog.Logger) *Keeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	return &Keeper{
		svc:    svc,
		locks:  locks,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "keeper")),
	}
}

// Run sweeps every interval until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	k.logger.InfoContext(ctx, "keeper started",
		slog.String("caller", k.cfg.Caller.Hex()),
		slog.Duration("interval", k.cfg.Interval),
	)
	ticker := time.NewTicker(k.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper stopped")
			return ctx.Err()
		case <-ticker.C:
			if _, err := k.Sweep(ctx); err != nil {
				k.logger.ErrorContext(ctx, "sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep settles one batch of ready auctions and returns how many settled.
// Per-auction failures are logged and skipped.
func (k *Keeper) Sweep(ctx context.Context) (int, error) {
	if k.locks != nil {
		unlock, err := k.locks.Acquire(ctx, keeperLockKey, k.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			k.logger.DebugContext(ctx, "another keeper holds the sweep lock")
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		defer unlock()
	}

	ready, err := k.svc.Settleable(ctx, k.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, a := range ready {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if _, err := k.svc.Settle(ctx, k.cfg.Caller, a.ID); err != nil {
			k.logger.WarnContext(ctx, "settle failed",
				slog.String("auction_id", a.ID.Hex()),
				slog.String("error", err.Error()),
			)
			continue
		}
		settled++
	}
	if settled > 0 {
		k.logger.InfoContext(ctx, "sweep complete", slog.Int("settled", settled))
	}
	return settled, nil
}
