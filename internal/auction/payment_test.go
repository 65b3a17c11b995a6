package auction

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
)

func rejectAll(context.Context, ledger.ReceiveCall) error {
	return errors.New("no thanks")
}

func burnGas(n uint64) ledger.ReceiverFunc {
	return func(_ context.Context, call ledger.ReceiveCall) error {
		return call.Gas.Consume(n)
	}
}

func TestRejectingFundsRecipientIsPaidInWrappedAsset(t *testing.T) {
	f := newFixture(t)
	f.l.SetReceiver(funds, ledger.ReceiverFunc(rejectAll))
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 10)

	_, err := f.bid(alice, id, eth(100))
	assert.NoError(t, err)
	f.advance(3600)

	r, err := f.h.Settle(f.ctx, bob, id)
	assert.NoError(t, err)
	check.Equal(t, []domain.EventKind{
		domain.EventCuratorFeePaid,
		domain.EventPaymentFallback,
		domain.EventAuctionEnded,
	}, kinds(r))
	check.Equal(t, funds, r.Events[1].Recipient)

	check.Equal(t, "0", f.native(funds))
	check.Equal(t, eth(90).String(), f.wrapped(funds))
	check.Equal(t, eth(10).String(), f.native(curator))
	check.Equal(t, eth(90).String(), f.native(wethAddr))
	check.Equal(t, "0", f.native(houseAddr))
	check.Equal(t, "0", f.wrapped(houseAddr))
}

func TestGasBudgetOnDirectTransfer(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 50)
	f.l.SetReceiver(curator, burnGas(DefaultDirectTransferGas-1))
	f.l.SetReceiver(funds, burnGas(DefaultDirectTransferGas+1))

	_, err := f.bid(alice, id, eth(10))
	assert.NoError(t, err)
	f.advance(3600)
	_, err = f.h.Settle(f.ctx, bob, id)
	assert.NoError(t, err)

	check.Equal(t, eth(5).String(), f.native(curator))
	check.Equal(t, "0", f.wrapped(curator))
	check.Equal(t, "0", f.native(funds))
	check.Equal(t, eth(5).String(), f.wrapped(funds))
}

func TestReceiverCannotSwallowOutOfGas(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 0)
	f.l.SetReceiver(funds, ledger.ReceiverFunc(func(_ context.Context, call ledger.ReceiveCall) error {
		_ = call.Gas.Consume(10 * DefaultDirectTransferGas)
		return nil
	}))

	_, err := f.bid(alice, id, eth(2))
	assert.NoError(t, err)
	f.advance(3600)
	_, err = f.h.Settle(f.ctx, bob, id)
	assert.NoError(t, err)

	check.Equal(t, "0", f.native(funds))
	check.Equal(t, eth(2).String(), f.wrapped(funds))
}

func TestOutbidReentrantBidderIsRefundedInWrappedAsset(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, eth(1), 0)

	var reentryErrs []error
	f.l.SetReceiver(alice, ledger.ReceiverFunc(func(ctx context.Context, call ledger.ReceiveCall) error {
		// Try to win the item back with the refund.
		_, err := f.h.Bid(ctx, alice, id, call.Value, call.Value)
		reentryErrs = append(reentryErrs, err)
		return err
	}))

	_, err := f.bid(alice, id, eth(10))
	assert.NoError(t, err)

	r, err := f.bid(bob, id, eth(20))
	assert.NoError(t, err)
	check.Equal(t, []domain.EventKind{domain.EventPaymentFallback, domain.EventAuctionBid}, kinds(r))

	assert.Equal(t, 1, len(reentryErrs))
	check.True(t, errors.Is(reentryErrs[0], domain.ErrReentrant))

	check.Equal(t, eth(990).String(), f.native(alice))
	check.Equal(t, eth(10).String(), f.wrapped(alice))
	a, _ := f.h.Auction(id)
	check.Equal(t, bob, a.Bidder)
	check.Equal(t, eth(20).String(), f.native(houseAddr))

	// The guard is released after the outer call.
	_, err = f.bid(carol, id, eth(30))
	assert.NoError(t, err)
}

func TestReentrantSettleFromRefund(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, eth(1), 0)

	var reentryErr error
	f.l.SetReceiver(alice, ledger.ReceiverFunc(func(ctx context.Context, _ ledger.ReceiveCall) error {
		_, reentryErr = f.h.Settle(ctx, alice, id)
		// Accept the refund regardless.
		return nil
	}))

	_, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)
	_, err = f.bid(bob, id, eth(2))
	assert.NoError(t, err)

	check.True(t, errors.Is(reentryErr, domain.ErrReentrant))
	check.Equal(t, eth(1000).String(), f.native(alice))
}

func TestPaymentFailsWhenHouseCannotCover(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.RecoverCurrency(f.ctx, recoveryAdr, eth(1))
	check.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	check.Equal(t, "0", f.wrapped(recoveryAdr))
	check.Equal(t, "0", f.native(wethAddr))
}
