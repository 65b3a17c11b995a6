package ledger

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Dirty lists the rows changed since the last TakeDirty call.
type Dirty struct {
	Accounts []domain.LedgerAccount
	Items    []domain.ItemRecord
}

// Empty reports whether nothing changed.
func (d Dirty) Empty() bool { return len(d.Accounts) == 0 && len(d.Items) == 0 }

// TakeDirty returns the current value of every touched account and item and
// resets the tracking sets. Reverted touches are reported with their
// restored values.
func (l *Ledger) TakeDirty() Dirty {
	var d Dirty
	for addr := range l.dirtyAccounts {
		d.Accounts = append(d.Accounts, l.account(addr))
	}
	for k := range l.dirtyItems {
		if it, ok := l.collections[k.coll].items[k.id]; ok {
			d.Items = append(d.Items, record(k.coll, it))
		}
	}
	l.dirtyAccounts = make(map[common.Address]struct{})
	l.dirtyItems = make(map[itemKey]struct{})
	sort.Slice(d.Accounts, func(i, j int) bool {
		return d.Accounts[i].Address.Cmp(d.Accounts[j].Address) < 0
	})
	return d
}

// Account returns the balances of addr.
func (l *Ledger) Account(addr common.Address) domain.LedgerAccount {
	return l.account(addr)
}

// Import loads persisted rows. It is meant for startup, before any
// operation runs, and clears dirty tracking.
func (l *Ledger) Import(accounts []domain.LedgerAccount, items []domain.ItemRecord) {
	for _, a := range accounts {
		if a.Native != nil {
			l.native[a.Address] = new(big.Int).Set(a.Native)
		}
		if a.Wrapped != nil {
			l.wrapped[a.Address] = new(big.Int).Set(a.Wrapped)
		}
	}
	for _, r := range items {
		c := l.collection(r.Collection)
		c.items[r.ItemID.String()] = &item{
			id:           new(big.Int).Set(r.ItemID),
			owner:        r.Owner,
			approved:     r.Approved,
			creator:      r.Creator,
			creatorShare: r.CreatorShare,
		}
	}
	l.dirtyAccounts = make(map[common.Address]struct{})
	l.dirtyItems = make(map[itemKey]struct{})
}

func (l *Ledger) account(addr common.Address) domain.LedgerAccount {
	return domain.LedgerAccount{
		Address: addr,
		Native:  new(big.Int).Set(balance(l.native, addr)),
		Wrapped: new(big.Int).Set(balance(l.wrapped, addr)),
	}
}

func record(coll common.Address, it *item) domain.ItemRecord {
	return domain.ItemRecord{
		Collection:   coll,
		ItemID:       new(big.Int).Set(it.id),
		Owner:        it.owner,
		Approved:     it.approved,
		Creator:      it.creator,
		CreatorShare: it.creatorShare,
	}
}
