package auction

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// Settle closes a finished auction. Anyone may call it once the closing time
// has passed. The item goes to the winner, the curator fee is paid first,
// then on the royalty collection the creator's share of the remainder, and
// the rest goes to the funds recipient. Settle is allowed while paused.
func (h *House) Settle(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error) {
	return h.execute(ctx, "settle", caller, func(tx *txn) error {
		rec, ok := tx.lookup(id)
		if !ok {
			return domain.ErrAuctionNotFound
		}
		if !rec.HasBid() {
			return domain.ErrAuctionNotStarted
		}
		closing, err := closingTime(rec)
		if err != nil {
			return err
		}
		if tx.now < closing {
			return domain.ErrAuctionNotComplete
		}

		if err := h.host.Items().TransferFrom(tx.ctx, h.cfg.House, h.cfg.House, rec.Bidder, rec.ItemCollection, rec.ItemID); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrItemTransfer, err)
		}

		remainder := new(big.Int).Set(rec.Amount)
		curatorFee := new(big.Int).Mul(rec.Amount, big.NewInt(int64(rec.CuratorFeePercent)))
		curatorFee.Quo(curatorFee, big.NewInt(100))
		if curatorFee.Sign() > 0 {
			if err := tx.pay(rec.Curator, curatorFee); err != nil {
				return fmt.Errorf("curator fee: %w", err)
			}
			remainder.Sub(remainder, curatorFee)
			tx.emit(domain.Event{
				Kind:           domain.EventCuratorFeePaid,
				AuctionID:      id,
				ItemCollection: rec.ItemCollection,
				ItemID:         rec.ItemID,
				Curator:        rec.Curator,
				Recipient:      rec.Curator,
				Amount:         curatorFee,
			})
		}

		if rec.ItemCollection == h.cfg.RoyaltyCollection {
			if err := tx.payWithRoyalty(rec, remainder); err != nil {
				return err
			}
		} else if err := tx.pay(rec.FundsRecipient, remainder); err != nil {
			return fmt.Errorf("proceeds: %w", err)
		}

		tx.emit(domain.Event{
			Kind:           domain.EventAuctionEnded,
			AuctionID:      id,
			ItemCollection: rec.ItemCollection,
			ItemID:         rec.ItemID,
			Curator:        rec.Curator,
			Bidder:         rec.Bidder,
			FundsRecipient: rec.FundsRecipient,
			Amount:         rec.Amount,
		})
		tx.remove(id)
		return nil
	})
}

// payWithRoyalty splits remainder between the item's creator and the funds
// recipient. When they are the same identity it is paid in one transfer.
func (tx *txn) payWithRoyalty(rec domain.Auction, remainder *big.Int) error {
	oracle := tx.h.host.Royalty(rec.ItemCollection)
	creator, err := oracle.Creator(rec.ItemID)
	if err != nil {
		return fmt.Errorf("royalty creator: %w", err)
	}
	if creator == rec.FundsRecipient {
		if err := tx.pay(rec.FundsRecipient, remainder); err != nil {
			return fmt.Errorf("proceeds: %w", err)
		}
		return nil
	}

	share, err := oracle.CreatorShare(rec.ItemID)
	if err != nil {
		return fmt.Errorf("royalty share: %w", err)
	}
	royalty := oracle.SplitShare(share, remainder)
	if royalty.Sign() > 0 {
		if err := tx.pay(creator, royalty); err != nil {
			return fmt.Errorf("creator royalty: %w", err)
		}
		tx.emit(domain.Event{
			Kind:           domain.EventCreatorRoyaltyPaid,
			AuctionID:      rec.ID,
			ItemCollection: rec.ItemCollection,
			ItemID:         rec.ItemID,
			Recipient:      creator,
			Amount:         royalty,
		})
	}
	rest := new(big.Int).Sub(remainder, royalty)
	if err := tx.pay(rec.FundsRecipient, rest); err != nil {
		return fmt.Errorf("proceeds: %w", err)
	}
	return nil
}

// Ready reports whether the auction can be settled at now.
func Ready(a domain.Auction, now uint64) bool {
	return a.Exists() && a.HasBid() && now >= a.ClosingTime()
}
