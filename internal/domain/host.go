package domain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Host is the environment the engine executes against: the native currency,
// its wrapped form, the item registries and the royalty oracle. Snapshot and
// RevertToSnapshot give every engine operation all-or-nothing semantics;
// Commit releases a snapshot once the operation succeeded.
type Host interface {
	Snapshot() int
	RevertToSnapshot(id int)
	Commit(id int)

	Currency() Currency
	Wrapped() WrappedAsset
	Items() ItemRegistry
	Royalty(collection common.Address) RoyaltyOracle
}

// Currency moves the native settlement currency.
type Currency interface {
	BalanceOf(addr common.Address) *big.Int
	// Transfer moves value from one account to another. If the recipient
	// runs receive code it is executed with the given gas budget, and any
	// failure reverts the transfer and is returned.
	Transfer(ctx context.Context, from, to common.Address, value *big.Int, gas uint64) error
}

// WrappedAsset is the claimable wrapped form of the native currency.
type WrappedAsset interface {
	Address() common.Address
	BalanceOf(addr common.Address) *big.Int
	// Deposit converts native balance of from into wrapped balance of from.
	Deposit(ctx context.Context, from common.Address, value *big.Int) error
	Transfer(ctx context.Context, from, to common.Address, value *big.Int) error
}

// ItemRegistry holds custody of auctionable items.
type ItemRegistry interface {
	OwnerOf(collection common.Address, itemID *big.Int) (common.Address, error)
	// IsApprovedOrOwner reports whether spender may move the item.
	IsApprovedOrOwner(collection common.Address, itemID *big.Int, spender common.Address) bool
	// TransferFrom moves custody of the item from its owner to to. The
	// operator must be the owner or approved for the item.
	TransferFrom(ctx context.Context, operator, from, to, collection common.Address, itemID *big.Int) error
}

// RoyaltyOracle reports how proceeds of the recognized collection are split
// with the item's creator.
type RoyaltyOracle interface {
	Creator(itemID *big.Int) (common.Address, error)
	// CreatorShare is the creator's cut as a percentage (e.g. 10.5).
	CreatorShare(itemID *big.Int) (decimal.Decimal, error)
	// SplitShare returns floor(amount * share / 100).
	SplitShare(share decimal.Decimal, amount *big.Int) *big.Int
}
