package auction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// recoveryState is a one-way state: enabled can move to disabled, nothing
// moves back.
type recoveryState uint8

const (
	recoveryEnabled recoveryState = iota
	recoveryDisabled
)

func (tx *txn) disableRecovery() error {
	if tx.h.recovery != recoveryEnabled {
		return domain.ErrRecoveryTransition
	}
	prev := tx.h.recovery
	tx.undo = append(tx.undo, func() { tx.h.recovery = prev })
	tx.h.recovery = recoveryDisabled
	return nil
}

func (tx *txn) whenNotPaused() error {
	if tx.h.paused {
		return domain.ErrPaused
	}
	return nil
}

// onlyRecoveryAdmin gates every admin operation.
func (tx *txn) onlyRecoveryAdmin() error {
	if tx.caller != tx.h.cfg.Recovery {
		return domain.ErrNotRecoveryAdmin
	}
	if tx.h.recovery != recoveryEnabled {
		return domain.ErrRecoveryDisabled
	}
	return nil
}

// Pause halts Create and Bid.
func (h *House) Pause(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	return h.execute(ctx, "pause", caller, func(tx *txn) error {
		if err := tx.onlyRecoveryAdmin(); err != nil {
			return err
		}
		if h.paused {
			return domain.ErrPaused
		}
		tx.setPaused(true)
		tx.emit(domain.Event{Kind: domain.EventPaused, Recipient: caller})
		return nil
	})
}

// Unpause resumes Create and Bid.
func (h *House) Unpause(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	return h.execute(ctx, "unpause", caller, func(tx *txn) error {
		if err := tx.onlyRecoveryAdmin(); err != nil {
			return err
		}
		if !h.paused {
			return domain.ErrNotPaused
		}
		tx.setPaused(false)
		tx.emit(domain.Event{Kind: domain.EventUnpaused, Recipient: caller})
		return nil
	})
}

// DisableRecoveryForever permanently removes every admin capability,
// including pause control. A paused engine stays paused.
func (h *House) DisableRecoveryForever(ctx context.Context, caller common.Address) (*domain.Receipt, error) {
	return h.execute(ctx, "disable_recovery", caller, func(tx *txn) error {
		if err := tx.onlyRecoveryAdmin(); err != nil {
			return err
		}
		if err := tx.disableRecovery(); err != nil {
			return err
		}
		tx.emit(domain.Event{Kind: domain.EventRecoveryDisabled, Recipient: caller})
		return nil
	})
}

// RecoverItem moves an escrowed item to the recovery identity and drops its
// auction record, whatever the auction's progress. Escrowed bid funds stay
// with the house and can be pulled with RecoverCurrency.
func (h *House) RecoverItem(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	return h.execute(ctx, "recover_item", caller, func(tx *txn) error {
		if err := tx.onlyRecoveryAdmin(); err != nil {
			return err
		}
		rec, ok := tx.lookup(id)
		if !ok {
			return domain.ErrAuctionNotFound
		}
		if err := h.host.Items().TransferFrom(tx.ctx, h.cfg.House, h.cfg.House, h.cfg.Recovery, rec.ItemCollection, rec.ItemID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrItemTransfer, err)
		}
		tx.remove(id)
		tx.emit(domain.Event{
			Kind:           domain.EventItemRecovered,
			AuctionID:      id,
			ItemCollection: rec.ItemCollection,
			ItemID:         rec.ItemID,
			Curator:        rec.Curator,
			Bidder:         rec.Bidder,
			Recipient:      h.cfg.Recovery,
			Amount:         rec.Amount,
		})
		return nil
	})
}

// RecoverCurrency pays amount of the house's native balance to the recovery
// identity through the normal payment path.
func (h *House) RecoverCurrency(ctx context.Context, caller common.Address, amount *big.Int) (*domain.Receipt, error) {
	return h.execute(ctx, "recover_currency", caller, func(tx *txn) error {
		if err := tx.onlyRecoveryAdmin(); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return domain.ErrZeroAmount
		}
		value := new(big.Int).Set(amount)
		if err := tx.pay(h.cfg.Recovery, value); err != nil {
			return err
		}
		tx.emit(domain.Event{
			Kind:      domain.EventCurrencyRecovered,
			Recipient: h.cfg.Recovery,
			Amount:    value,
		})
		return nil
	})
}
