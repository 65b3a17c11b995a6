package auction

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// pay sends value to the recipient. The direct transfer runs recipient code
// under a fixed gas budget; if it fails for any reason the value is wrapped
// and the wrapped balance is transferred instead. Only a failure of the
// wrapped path is returned.
func (tx *txn) pay(to common.Address, value *big.Int) error {
	if value == nil || value.Sign() <= 0 {
		return nil
	}
	h := tx.h
	err := h.host.Currency().Transfer(tx.ctx, h.cfg.House, to, value, h.cfg.DirectTransferGas)
	if err == nil {
		return nil
	}

	wrapped := h.host.Wrapped()
	if werr := wrapped.Deposit(tx.ctx, h.cfg.House, value); werr != nil {
		return fmt.Errorf("pay %s: wrap: %w", to.Hex(), werr)
	}
	if werr := wrapped.Transfer(tx.ctx, h.cfg.House, to, value); werr != nil {
		return fmt.Errorf("pay %s: wrapped transfer: %w", to.Hex(), werr)
	}
	tx.emit(domain.Event{
		Kind:      domain.EventPaymentFallback,
		Recipient: to,
		Amount:    new(big.Int).Set(value),
	})
	return nil
}
