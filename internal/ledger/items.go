package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

var hundred = decimal.NewFromInt(100)

type itemKey struct {
	coll common.Address
	id   string
}

type item struct {
	id           *big.Int
	owner        common.Address
	approved     common.Address
	creator      common.Address
	creatorShare decimal.Decimal
}

type collection struct {
	items     map[string]*item
	operators map[common.Address]map[common.Address]bool
}

func (l *Ledger) collection(coll common.Address) *collection {
	c, ok := l.collections[coll]
	if !ok {
		c = &collection{
			items:     make(map[string]*item),
			operators: make(map[common.Address]map[common.Address]bool),
		}
		l.collections[coll] = c
	}
	return c
}

func (l *Ledger) lookup(coll common.Address, itemID *big.Int) (*item, bool) {
	c, ok := l.collections[coll]
	if !ok || itemID == nil {
		return nil, false
	}
	it, ok := c.items[itemID.String()]
	return it, ok
}

// Mint creates an item owned by to. A non-zero creatorShare (percent)
// registers to as the item's creator for royalty purposes.
func (l *Ledger) Mint(coll common.Address, itemID *big.Int, to common.Address, creatorShare decimal.Decimal) error {
	if creatorShare.IsNegative() || creatorShare.GreaterThan(hundred) {
		return fmt.Errorf("ledger: creator share %s out of range", creatorShare)
	}
	c := l.collection(coll)
	key := itemID.String()
	if _, ok := c.items[key]; ok {
		return fmt.Errorf("ledger: mint %s #%s: %w", coll.Hex(), key, domain.ErrAlreadyExists)
	}
	l.record(func() { delete(c.items, key) })
	c.items[key] = &item{
		id:           new(big.Int).Set(itemID),
		owner:        to,
		creator:      to,
		creatorShare: creatorShare,
	}
	l.dirtyItems[itemKey{coll, key}] = struct{}{}
	return nil
}

// Approve lets spender move one item. Only the owner may approve.
func (l *Ledger) Approve(owner, spender, coll common.Address, itemID *big.Int) error {
	it, ok := l.lookup(coll, itemID)
	if !ok {
		return fmt.Errorf("ledger: approve: %w", domain.ErrNotFound)
	}
	if it.owner != owner {
		return fmt.Errorf("ledger: approve: %w", domain.ErrUnauthorized)
	}
	l.setApproved(coll, it, spender)
	return nil
}

// SetApprovalForAll lets operator move every item owner holds in coll.
func (l *Ledger) SetApprovalForAll(owner, operator, coll common.Address, approved bool) {
	c := l.collection(coll)
	ops, ok := c.operators[owner]
	if !ok {
		ops = make(map[common.Address]bool)
		c.operators[owner] = ops
	}
	ops[operator] = approved
}

func (l *Ledger) setApproved(coll common.Address, it *item, spender common.Address) {
	prev := it.approved
	l.record(func() { it.approved = prev })
	it.approved = spender
	l.dirtyItems[itemKey{coll, it.id.String()}] = struct{}{}
}

func (l *Ledger) setOwner(coll common.Address, it *item, owner common.Address) {
	prev := it.owner
	l.record(func() { it.owner = prev })
	it.owner = owner
	l.dirtyItems[itemKey{coll, it.id.String()}] = struct{}{}
}

type itemRegistry struct{ l *Ledger }

func (r itemRegistry) OwnerOf(coll common.Address, itemID *big.Int) (common.Address, error) {
	it, ok := r.l.lookup(coll, itemID)
	if !ok {
		return common.Address{}, fmt.Errorf("ledger: owner of %s #%v: %w", coll.Hex(), itemID, domain.ErrNotFound)
	}
	return it.owner, nil
}

func (r itemRegistry) IsApprovedOrOwner(coll common.Address, itemID *big.Int, spender common.Address) bool {
	it, ok := r.l.lookup(coll, itemID)
	if !ok {
		return false
	}
	if it.owner == spender || (it.approved == spender && spender != common.Address{}) {
		return true
	}
	return r.l.collection(coll).operators[it.owner][spender]
}

func (r itemRegistry) TransferFrom(_ context.Context, operator, from, to, coll common.Address, itemID *big.Int) error {
	it, ok := r.l.lookup(coll, itemID)
	if !ok {
		return fmt.Errorf("ledger: transfer %s #%v: %w", coll.Hex(), itemID, domain.ErrNotFound)
	}
	if it.owner != from {
		return fmt.Errorf("ledger: transfer %s #%v: from is not the owner: %w", coll.Hex(), itemID, domain.ErrUnauthorized)
	}
	if to == (common.Address{}) {
		return fmt.Errorf("ledger: transfer %s #%v: zero recipient: %w", coll.Hex(), itemID, domain.ErrUnauthorized)
	}
	if !r.IsApprovedOrOwner(coll, itemID, operator) {
		return fmt.Errorf("ledger: transfer %s #%v: operator not approved: %w", coll.Hex(), itemID, domain.ErrUnauthorized)
	}
	r.l.setApproved(coll, it, common.Address{})
	r.l.setOwner(coll, it, to)
	return nil
}

type royaltyOracle struct {
	l    *Ledger
	coll common.Address
}

func (o royaltyOracle) Creator(itemID *big.Int) (common.Address, error) {
	it, ok := o.l.lookup(o.coll, itemID)
	if !ok {
		return common.Address{}, fmt.Errorf("ledger: creator of #%v: %w", itemID, domain.ErrNotFound)
	}
	return it.creator, nil
}

func (o royaltyOracle) CreatorShare(itemID *big.Int) (decimal.Decimal, error) {
	it, ok := o.l.lookup(o.coll, itemID)
	if !ok {
		return decimal.Zero, fmt.Errorf("ledger: creator share of #%v: %w", itemID, domain.ErrNotFound)
	}
	return it.creatorShare, nil
}

func (o royaltyOracle) SplitShare(share decimal.Decimal, amount *big.Int) *big.Int {
	return SplitShare(share, amount)
}

// SplitShare returns floor(amount * share / 100).
func SplitShare(share decimal.Decimal, amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || share.Sign() <= 0 {
		return new(big.Int)
	}
	return decimal.NewFromBigInt(amount, 0).Mul(share).Div(hundred).Floor().BigInt()
}
