package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrOutOfGas is returned by GasMeter.Consume once the budget is exhausted.
var ErrOutOfGas = errors.New("out of gas")

// GasMeter bounds the work a receiver may do during a direct transfer.
type GasMeter struct {
	limit    uint64
	used     uint64
	exceeded bool
}

// NewGasMeter returns a meter with the given budget.
func NewGasMeter(limit uint64) *GasMeter {
	return &GasMeter{limit: limit}
}

// Consume charges n units and fails once the budget is exceeded.
func (g *GasMeter) Consume(n uint64) error {
	if n > g.limit-g.used {
		g.used = g.limit
		g.exceeded = true
		return ErrOutOfGas
	}
	g.used += n
	return nil
}

// Remaining returns the unspent budget.
func (g *GasMeter) Remaining() uint64 { return g.limit - g.used }

// Exceeded reports whether a charge was ever refused. Receive code cannot
// recover from running out of gas by ignoring the error.
func (g *GasMeter) Exceeded() bool { return g.exceeded }

// ReceiveCall describes an incoming native transfer.
type ReceiveCall struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Gas   *GasMeter
}

// Receiver is receive code attached to an account. Returning an error
// rejects the transfer.
type Receiver interface {
	Receive(ctx context.Context, call ReceiveCall) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, call ReceiveCall) error

// Receive calls f.
func (f ReceiverFunc) Receive(ctx context.Context, call ReceiveCall) error { return f(ctx, call) }

type nativeCurrency struct{ l *Ledger }

func (c nativeCurrency) BalanceOf(addr common.Address) *big.Int {
	return new(big.Int).Set(balance(c.l.native, addr))
}

func (c nativeCurrency) Transfer(ctx context.Context, from, to common.Address, value *big.Int, gas uint64) error {
	l := c.l
	snap := l.Snapshot()
	if err := l.move(l.native, from, to, value); err != nil {
		l.RevertToSnapshot(snap)
		return err
	}
	r, ok := l.receivers[to]
	if !ok {
		l.Commit(snap)
		return nil
	}
	meter := NewGasMeter(gas)
	err := r.Receive(ctx, ReceiveCall{From: from, To: to, Value: new(big.Int).Set(value), Gas: meter})
	if err == nil && meter.Exceeded() {
		err = ErrOutOfGas
	}
	if err != nil {
		l.RevertToSnapshot(snap)
		return fmt.Errorf("%w: %s: %w", ErrTransferFailed, to.Hex(), err)
	}
	l.Commit(snap)
	return nil
}

type wrappedAsset struct{ l *Ledger }

func (w wrappedAsset) Address() common.Address { return w.l.wrappedAddr }

func (w wrappedAsset) BalanceOf(addr common.Address) *big.Int {
	return new(big.Int).Set(balance(w.l.wrapped, addr))
}

// Deposit locks native balance in the wrapped-asset account and mints the
// same amount of wrapped balance to from.
func (w wrappedAsset) Deposit(_ context.Context, from common.Address, value *big.Int) error {
	l := w.l
	snap := l.Snapshot()
	if err := l.move(l.native, from, l.wrappedAddr, value); err != nil {
		l.RevertToSnapshot(snap)
		return fmt.Errorf("ledger: wrap deposit: %w", err)
	}
	l.setBalance(l.wrapped, from, new(big.Int).Add(balance(l.wrapped, from), value))
	l.Commit(snap)
	return nil
}

func (w wrappedAsset) Transfer(_ context.Context, from, to common.Address, value *big.Int) error {
	l := w.l
	snap := l.Snapshot()
	if err := l.move(l.wrapped, from, to, value); err != nil {
		l.RevertToSnapshot(snap)
		return fmt.Errorf("ledger: wrapped transfer: %w", err)
	}
	l.Commit(snap)
	return nil
}
