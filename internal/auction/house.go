// Package auction implements the reserve-price auction engine: a registry of
// single-item auctions, the bid processor, the settlement engine, a payment
// path that falls back to the wrapped asset, and an admin recovery lifecycle.
//
// Every state-mutating entry point runs as one atomic operation against the
// host: it either commits all of its effects and returns a receipt, or
// reverts everything and returns an error. A House is not safe for concurrent
// use; callers provide the total order of operations.
package auction

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

const (
	// TimeBuffer is the response window a late bid guarantees, in seconds.
	TimeBuffer = 900
	// MinBidIncrementPercent is the smallest raise over the current bid.
	MinBidIncrementPercent = 10
	// Version is the engine version constant.
	Version = 1
	// DefaultDirectTransferGas bounds recipient receive code on direct payments.
	DefaultDirectTransferGas = 30_000
)

// Config holds the values bound at construction.
type Config struct {
	// House is the engine's own account; it holds escrowed bids and items.
	House common.Address
	// Recovery is the only identity allowed to use admin recovery.
	Recovery common.Address
	// RoyaltyCollection is the one collection with creator-royalty support.
	RoyaltyCollection common.Address
	// DirectTransferGas bounds direct payments. Zero selects the default.
	DirectTransferGas uint64
	// Clock returns the current time. Nil selects time.Now.
	Clock func() time.Time
}

// CommitHook runs after an operation succeeds and before its effects are
// committed. An error reverts the operation.
type CommitHook func(ctx context.Context, r *domain.Receipt) error

// House is the auction engine.
type House struct {
	cfg      Config
	host     domain.Host
	records  map[domain.AuctionID]domain.Auction
	recovery recoveryState
	paused   bool
	guard    guard
	hook     CommitHook
}

// New creates a House with recovery enabled and no auctions.
func New(cfg Config, host domain.Host) (*House, error) {
	if cfg.House == (common.Address{}) {
		return nil, errors.New("auction: house address is required")
	}
	if cfg.Recovery == (common.Address{}) {
		return nil, errors.New("auction: recovery address is required")
	}
	if host == nil {
		return nil, errors.New("auction: host is required")
	}
	if cfg.DirectTransferGas == 0 {
		cfg.DirectTransferGas = DefaultDirectTransferGas
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &House{
		cfg:      cfg,
		host:     host,
		records:  make(map[domain.AuctionID]domain.Auction),
		recovery: recoveryEnabled,
	}, nil
}

// SetCommitHook installs fn as the commit hook. Nil removes it.
func (h *House) SetCommitHook(fn CommitHook) { h.hook = fn }

// DeriveAuctionID returns the id of the auction for (collection, itemID).
func DeriveAuctionID(collection common.Address, itemID *big.Int) domain.AuctionID {
	return domain.NewAuctionID(collection, itemID)
}

// Address returns the engine's own account.
func (h *House) Address() common.Address { return h.cfg.House }

// Version returns the engine version constant.
func (h *House) Version() uint64 { return Version }

// IsPaused reports whether create and bid are halted.
func (h *House) IsPaused() bool { return h.paused }

// IsRecoveryEnabled reports whether admin recovery is still available.
func (h *House) IsRecoveryEnabled() bool { return h.recovery == recoveryEnabled }

// Now returns the engine clock in unix seconds.
func (h *House) Now() uint64 { return uint64(h.cfg.Clock().Unix()) }

// Status returns the flag surface.
func (h *House) Status() domain.EngineStatus {
	return domain.EngineStatus{
		Paused:          h.paused,
		RecoveryEnabled: h.IsRecoveryEnabled(),
		Version:         Version,
		ActiveAuctions:  len(h.records),
	}
}

// Auction returns a copy of the record for id.
func (h *House) Auction(id domain.AuctionID) (domain.Auction, bool) {
	a, ok := h.records[id]
	if !ok {
		return domain.Auction{}, false
	}
	return a.Clone(), true
}

// Auctions returns copies of all active records ordered by id.
func (h *House) Auctions() []domain.Auction {
	out := make([]domain.Auction, 0, len(h.records))
	for _, a := range h.records {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.Cmp(out[j].ID) < 0
	})
	return out
}

// Restore replaces the engine state with previously committed state. It is
// meant for startup. Records without a curator are skipped, and recovery
// cannot be re-enabled by a restore once this House has disabled it.
func (h *House) Restore(records []domain.Auction, flags domain.EngineFlags) {
	h.records = make(map[domain.AuctionID]domain.Auction, len(records))
	for _, a := range records {
		if !a.Exists() {
			continue
		}
		a = a.Clone()
		a.ID = domain.NewAuctionID(a.ItemCollection, a.ItemID)
		h.records[a.ID] = a
	}
	h.paused = flags.Paused
	if !flags.RecoveryEnabled {
		h.recovery = recoveryDisabled
	}
}

// Flags returns the process-wide flags for persistence.
func (h *House) Flags() domain.EngineFlags {
	return domain.EngineFlags{
		Paused:          h.paused,
		RecoveryEnabled: h.IsRecoveryEnabled(),
		UpdatedAt:       h.cfg.Clock().UTC(),
	}
}

// txn is the working state of one operation.
type txn struct {
	h       *House
	ctx     context.Context
	caller  common.Address
	now     uint64
	undo    []func()
	receipt *domain.Receipt
}

// execute runs fn as one atomic guarded operation.
func (h *House) execute(ctx context.Context, op string, caller common.Address, fn func(tx *txn) error) (receipt *domain.Receipt, err error) {
	release, err := h.guard.enter()
	if err != nil {
		return nil, fmt.Errorf("auction: %s: %w", op, err)
	}
	defer release()

	now := h.Now()
	tx := &txn{
		h:      h,
		ctx:    ctx,
		caller: caller,
		now:    now,
		receipt: &domain.Receipt{
			Operation: op,
			Caller:    caller,
			Timestamp: now,
		},
	}
	snap := h.host.Snapshot()

	committed := false
	defer func() {
		if !committed {
			tx.rollback()
			h.host.RevertToSnapshot(snap)
		}
	}()

	if err := fn(tx); err != nil {
		return nil, fmt.Errorf("auction: %s: %w", op, err)
	}
	if h.hook != nil {
		if err := h.hook(ctx, tx.receipt); err != nil {
			return nil, fmt.Errorf("auction: %s: %w", op, err)
		}
	}
	h.host.Commit(snap)
	committed = true
	return tx.receipt, nil
}

func (tx *txn) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *txn) emit(e domain.Event) {
	e.ID = uuid.NewString()
	e.Timestamp = tx.now
	tx.receipt.Events = append(tx.receipt.Events, e)
}

func (tx *txn) touch(id domain.AuctionID) {
	for _, t := range tx.receipt.Touched {
		if t == id {
			return
		}
	}
	tx.receipt.Touched = append(tx.receipt.Touched, id)
}

func (tx *txn) setPaused(v bool) {
	prev := tx.h.paused
	tx.undo = append(tx.undo, func() { tx.h.paused = prev })
	tx.h.paused = v
}
