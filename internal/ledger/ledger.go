// Package ledger is an in-memory, journaled world state that hosts the
// auction engine: native balances, the wrapped asset, item collections, the
// royalty oracle and recipient receive hooks. Every mutation is journaled so
// a snapshot can be reverted, giving callers all-or-nothing semantics.
//
// A Ledger is not safe for concurrent use; callers serialize access.
package ledger

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// ErrTransferFailed is returned when a recipient's receive code rejects a
// direct transfer or runs out of gas.
var ErrTransferFailed = errors.New("ledger: transfer failed")

// NoGasLimit runs receive code without a budget.
const NoGasLimit = ^uint64(0)

// Options configures a Ledger.
type Options struct {
	// WrappedAsset is the account address of the wrapped-asset system. Its
	// native balance backs all wrapped balances.
	WrappedAsset common.Address
}

// Ledger implements domain.Host.
type Ledger struct {
	wrappedAddr common.Address
	native      map[common.Address]*big.Int
	wrapped     map[common.Address]*big.Int
	collections map[common.Address]*collection
	receivers   map[common.Address]Receiver

	journal []func()
	depth   int

	dirtyAccounts map[common.Address]struct{}
	dirtyItems    map[itemKey]struct{}
}

// New returns an empty Ledger.
func New(opts Options) *Ledger {
	return &Ledger{
		wrappedAddr:   opts.WrappedAsset,
		native:        make(map[common.Address]*big.Int),
		wrapped:       make(map[common.Address]*big.Int),
		collections:   make(map[common.Address]*collection),
		receivers:     make(map[common.Address]Receiver),
		dirtyAccounts: make(map[common.Address]struct{}),
		dirtyItems:    make(map[itemKey]struct{}),
	}
}

// Snapshot marks the current journal position.
func (l *Ledger) Snapshot() int {
	l.depth++
	return len(l.journal)
}

// RevertToSnapshot undoes every mutation recorded after the snapshot.
func (l *Ledger) RevertToSnapshot(id int) {
	for i := len(l.journal) - 1; i >= id; i-- {
		l.journal[i]()
	}
	l.journal = l.journal[:id]
	l.release()
}

// Commit keeps the mutations recorded after the snapshot. Once the outermost
// snapshot commits the journal is discarded.
func (l *Ledger) Commit(id int) {
	l.release()
	if l.depth == 0 {
		l.journal = l.journal[:0]
	}
}

func (l *Ledger) release() {
	if l.depth > 0 {
		l.depth--
	}
}

func (l *Ledger) record(undo func()) {
	// Outside any snapshot nothing can be reverted.
	if l.depth == 0 {
		return
	}
	l.journal = append(l.journal, undo)
}

// Currency returns the native currency view.
func (l *Ledger) Currency() domain.Currency { return nativeCurrency{l} }

// Wrapped returns the wrapped-asset view.
func (l *Ledger) Wrapped() domain.WrappedAsset { return wrappedAsset{l} }

// Items returns the item registry view.
func (l *Ledger) Items() domain.ItemRegistry { return itemRegistry{l} }

// Royalty returns the royalty oracle backed by the given collection.
func (l *Ledger) Royalty(coll common.Address) domain.RoyaltyOracle {
	return royaltyOracle{l: l, coll: coll}
}

// SetReceiver installs receive code for addr. A nil receiver removes it.
func (l *Ledger) SetReceiver(addr common.Address, r Receiver) {
	if r == nil {
		delete(l.receivers, addr)
		return
	}
	l.receivers[addr] = r
}

// Fund credits native balance out of thin air. It is the faucet used by
// tests and the dev API.
func (l *Ledger) Fund(addr common.Address, value *big.Int) {
	l.setBalance(l.native, addr, new(big.Int).Add(balance(l.native, addr), value))
}

func (l *Ledger) setBalance(m map[common.Address]*big.Int, addr common.Address, v *big.Int) {
	prev, had := m[addr]
	l.record(func() {
		if had {
			m[addr] = prev
		} else {
			delete(m, addr)
		}
	})
	m[addr] = v
	l.markAccount(addr)
}

func (l *Ledger) markAccount(addr common.Address) {
	l.dirtyAccounts[addr] = struct{}{}
}

func balance(m map[common.Address]*big.Int, addr common.Address) *big.Int {
	if v, ok := m[addr]; ok {
		return v
	}
	return new(big.Int)
}

// move debits from and credits to in m, failing on insufficient balance.
func (l *Ledger) move(m map[common.Address]*big.Int, from, to common.Address, value *big.Int) error {
	if value.Sign() < 0 {
		return domain.ErrZeroAmount
	}
	fromBal := balance(m, from)
	if fromBal.Cmp(value) < 0 {
		return domain.ErrInsufficientFunds
	}
	l.setBalance(m, from, new(big.Int).Sub(fromBal, value))
	l.setBalance(m, to, new(big.Int).Add(balance(m, to), value))
	return nil
}

var _ domain.Host = (*Ledger)(nil)
