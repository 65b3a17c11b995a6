package auction

import (
	"context"
	"fmt"
	"math/big"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// MinimumNextBid returns the smallest amount that outbids current.
func MinimumNextBid(current *big.Int) *big.Int {
	inc := new(big.Int).Mul(current, big.NewInt(MinBidIncrementPercent))
	inc.Quo(inc, big.NewInt(100))
	return inc.Add(inc, current)
}

// closingTime is the checked form of Auction.ClosingTime.
func closingTime(a domain.Auction) (uint64, error) {
	c, carry := bits.Add64(a.FirstBidTime, a.Duration, 0)
	if carry != 0 {
		return 0, domain.ErrDurationTooLong
	}
	return c, nil
}

// Bid places a bid of declared, paying with payment. The two must match.
// The first bid starts the clock and must meet the reserve; later bids must
// beat the standing bid by the minimum increment, and the previous bidder is
// refunded before the new bid is recorded. A bid inside the final TimeBuffer
// seconds pushes the closing time out to now+TimeBuffer.
func (h *House) Bid(ctx context.Context, caller common.Address, id domain.AuctionID, declared, payment *big.Int) (*domain.Receipt, error) {
	return h.execute(ctx, "bid", caller, func(tx *txn) error {
		if err := tx.whenNotPaused(); err != nil {
			return err
		}
		rec, ok := tx.lookup(id)
		if !ok {
			return domain.ErrAuctionNotFound
		}
		if rec.HasBid() && tx.now >= rec.ClosingTime() {
			return domain.ErrAuctionExpired
		}
		if declared == nil || payment == nil || declared.Cmp(payment) != 0 {
			return domain.ErrPaymentMismatch
		}
		if declared.Sign() <= 0 {
			return domain.ErrZeroBid
		}
		amount := new(big.Int).Set(declared)

		// The attached payment moves into escrow as part of the call.
		if err := h.host.Currency().Transfer(tx.ctx, caller, h.cfg.House, amount, 0); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
		}

		firstBid := !rec.HasBid()
		if firstBid {
			if amount.Cmp(rec.ReservePrice) < 0 {
				return domain.ErrBelowReserve
			}
			rec.FirstBidTime = tx.now
		} else {
			if amount.Cmp(MinimumNextBid(rec.Amount)) < 0 {
				return domain.ErrBidIncrementTooLow
			}
			if err := tx.pay(rec.Bidder, rec.Amount); err != nil {
				return fmt.Errorf("refund %s: %w", rec.Bidder.Hex(), err)
			}
		}

		rec.Amount = amount
		rec.Bidder = caller

		closing, err := closingTime(rec)
		if err != nil {
			return err
		}
		extended := false
		if horizon := tx.now + TimeBuffer; closing < horizon {
			rec.Duration += horizon - closing
			extended = true
		}
		tx.put(rec)

		tx.emit(domain.Event{
			Kind:           domain.EventAuctionBid,
			AuctionID:      id,
			ItemCollection: rec.ItemCollection,
			ItemID:         rec.ItemID,
			Bidder:         caller,
			Amount:         rec.Amount,
			FirstBid:       firstBid,
			Extended:       extended,
		})
		if extended {
			tx.emit(domain.Event{
				Kind:           domain.EventAuctionDurationExtended,
				AuctionID:      id,
				ItemCollection: rec.ItemCollection,
				ItemID:         rec.ItemID,
				Duration:       rec.Duration,
			})
		}
		return nil
	})
}
