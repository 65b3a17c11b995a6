package auction

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// CreateParams describes a new auction.
type CreateParams struct {
	ItemCollection    common.Address
	ItemID            *big.Int
	Duration          uint64
	ReservePrice      *big.Int
	CuratorFeePercent uint8
	Curator           common.Address
	FundsRecipient    common.Address
}

// Create registers an auction and pulls the item into the house's custody.
// The caller must own the item or be approved for it.
func (h *House) Create(ctx context.Context, caller common.Address, p CreateParams) (*domain.Receipt, error) {
	return h.execute(ctx, "create", caller, func(tx *txn) error {
		if err := tx.whenNotPaused(); err != nil {
			return err
		}
		id := domain.NewAuctionID(p.ItemCollection, p.ItemID)
		if _, ok := tx.lookup(id); ok {
			return domain.ErrAuctionExists
		}
		if p.Curator == (common.Address{}) {
			return domain.ErrZeroCurator
		}
		if p.FundsRecipient == (common.Address{}) {
			return domain.ErrZeroFundsRecipient
		}
		if p.CuratorFeePercent >= 100 {
			return domain.ErrCuratorFeeTooHigh
		}
		if p.Duration > math.MaxUint64-tx.now-TimeBuffer {
			return domain.ErrDurationTooLong
		}

		items := h.host.Items()
		owner, err := items.OwnerOf(p.ItemCollection, p.ItemID)
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrItemTransfer, err)
		}
		if caller != owner && !items.IsApprovedOrOwner(p.ItemCollection, p.ItemID, caller) {
			return domain.ErrNotItemOwnerOrApprove
		}
		if err := items.TransferFrom(tx.ctx, h.cfg.House, owner, h.cfg.House, p.ItemCollection, p.ItemID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrItemTransfer, err)
		}

		reserve := new(big.Int)
		if p.ReservePrice != nil {
			reserve.Set(p.ReservePrice)
		}
		rec := domain.Auction{
			ID:                id,
			ItemCollection:    p.ItemCollection,
			ItemID:            new(big.Int).Set(p.ItemID),
			Amount:            new(big.Int),
			Duration:          p.Duration,
			ReservePrice:      reserve,
			CuratorFeePercent: p.CuratorFeePercent,
			Curator:           p.Curator,
			FundsRecipient:    p.FundsRecipient,
		}
		tx.put(rec)
		tx.emit(domain.Event{
			Kind:              domain.EventAuctionCreated,
			AuctionID:         id,
			ItemCollection:    rec.ItemCollection,
			ItemID:            rec.ItemID,
			Curator:           rec.Curator,
			FundsRecipient:    rec.FundsRecipient,
			ReservePrice:      rec.ReservePrice,
			Duration:          rec.Duration,
			CuratorFeePercent: rec.CuratorFeePercent,
		})
		return nil
	})
}

// Cancel returns the item to the curator and removes an auction that has no
// bid yet. It is allowed while paused.
func (h *House) Cancel(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	return h.execute(ctx, "cancel", caller, func(tx *txn) error {
		rec, ok := tx.lookup(id)
		if !ok {
			return domain.ErrAuctionNotFound
		}
		if caller != rec.Curator {
			return domain.ErrNotCurator
		}
		if rec.HasBid() {
			return domain.ErrAuctionStarted
		}
		if err := h.host.Items().TransferFrom(tx.ctx, h.cfg.House, h.cfg.House, rec.Curator, rec.ItemCollection, rec.ItemID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrItemTransfer, err)
		}
		tx.remove(id)
		tx.emit(domain.Event{
			Kind:           domain.EventAuctionCanceled,
			AuctionID:      id,
			ItemCollection: rec.ItemCollection,
			ItemID:         rec.ItemID,
			Curator:        rec.Curator,
		})
		return nil
	})
}

// The registry map is only reached through lookup, put and remove so the
// "exists iff curator is set" rule holds in one place.

func (tx *txn) lookup(id domain.AuctionID) (domain.Auction, bool) {
	rec, ok := tx.h.records[id]
	if !ok || !rec.Exists() {
		return domain.Auction{}, false
	}
	return rec.Clone(), true
}

func (tx *txn) put(rec domain.Auction) {
	if !rec.Exists() {
		panic("auction: registry put of a record without curator")
	}
	prev, had := tx.h.records[rec.ID]
	tx.undo = append(tx.undo, func() {
		if had {
			tx.h.records[rec.ID] = prev
		} else {
			delete(tx.h.records, rec.ID)
		}
	})
	tx.h.records[rec.ID] = rec.Clone()
	tx.touch(rec.ID)
}

func (tx *txn) remove(id domain.AuctionID) {
	prev, had := tx.h.records[id]
	if !had {
		return
	}
	tx.undo = append(tx.undo, func() { tx.h.records[id] = prev })
	delete(tx.h.records, id)
	tx.touch(id)
}
