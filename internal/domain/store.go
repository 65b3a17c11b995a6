package domain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuctionStore persists the committed registry.
type AuctionStore interface {
	Upsert(ctx context.Context, a Auction) error
	Delete(ctx context.Context, id AuctionID) error
	GetByID(ctx context.Context, id AuctionID) (Auction, error)
	ListActive(ctx context.Context, opts ListOpts) ([]Auction, error)
	ListAll(ctx context.Context) ([]Auction, error)
}

// EventStore persists the append-only audit trail.
type EventStore interface {
	Append(ctx context.Context, events []Event) error
	ListByAuction(ctx context.Context, id AuctionID, opts ListOpts) ([]Event, error)
	ListBefore(ctx context.Context, before time.Time) ([]Event, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// EngineFlags is the persisted process-wide flag pair.
type EngineFlags struct {
	Paused          bool
	RecoveryEnabled bool
	UpdatedAt       time.Time
}

// EngineStateStore persists the process-wide flags.
type EngineStateStore interface {
	SaveFlags(ctx context.Context, flags EngineFlags) error
	// LoadFlags returns ErrNotFound on a fresh database.
	LoadFlags(ctx context.Context) (EngineFlags, error)
}

// LedgerAccount is a persisted balance row.
type LedgerAccount struct {
	Address common.Address `json:"address"`
	Native  *big.Int       `json:"native"`
	Wrapped *big.Int       `json:"wrapped"`
}

// ItemRecord is a persisted item custody row.
type ItemRecord struct {
	Collection   common.Address  `json:"collection"`
	ItemID       *big.Int        `json:"item_id"`
	Owner        common.Address  `json:"owner"`
	Approved     common.Address  `json:"approved"`
	Creator      common.Address  `json:"creator"`
	CreatorShare decimal.Decimal `json:"creator_share"`
}

// LedgerStore persists host balances and item custody.
type LedgerStore interface {
	SaveAccounts(ctx context.Context, accounts []LedgerAccount) error
	SaveItems(ctx context.Context, items []ItemRecord) error
	LoadAccounts(ctx context.Context) ([]LedgerAccount, error)
	LoadItems(ctx context.Context) ([]ItemRecord, error)
}

// Commit is everything one committed engine operation changed, written
// atomically so a restart restores a consistent registry and ledger.
type Commit struct {
	Upserts  []Auction
	Deletes  []AuctionID
	Events   []Event
	Accounts []LedgerAccount
	Items    []ItemRecord
	Flags    *EngineFlags
}

// Empty reports whether the commit carries no changes.
func (c Commit) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0 && len(c.Events) == 0 &&
		len(c.Accounts) == 0 && len(c.Items) == 0 && c.Flags == nil
}

// CommitStore writes a Commit in one database transaction.
type CommitStore interface {
	SaveCommit(ctx context.Context, c Commit) error
}

// WriterLease fences ownership of the persisted engine state so only one
// engine writes to a database. AcquireWriter fails with ErrLockHeld while
// another process holds the lease.
type WriterLease interface {
	AcquireWriter(ctx context.Context) (release func(), err error)
}
