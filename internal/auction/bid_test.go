package auction

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

func TestMinimumNextBid(t *testing.T) {
	check.Equal(t, "110", MinimumNextBid(big.NewInt(100)).String())
	check.Equal(t, "11", MinimumNextBid(big.NewInt(10)).String())
	check.Equal(t, "1100", MinimumNextBid(big.NewInt(1000)).String())
	// Integer division floors the increment.
	check.Equal(t, "9", MinimumNextBid(big.NewInt(9)).String())
	check.Equal(t, "1", MinimumNextBid(big.NewInt(1)).String())
}

func TestFirstBid(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, eth(1), 0)

	r, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)
	check.Equal(t, []domain.EventKind{domain.EventAuctionBid}, kinds(r))
	check.True(t, r.Events[0].FirstBid)
	check.False(t, r.Events[0].Extended)

	a, _ := f.h.Auction(id)
	check.Equal(t, f.now(), a.FirstBidTime)
	check.Equal(t, alice, a.Bidder)
	check.Equal(t, eth(1).String(), a.Amount.String())
	check.Equal(t, eth(999).String(), f.native(alice))
	check.Equal(t, eth(1).String(), f.native(houseAddr))
}

func TestBidValidation(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, eth(5), 0)

	_, err := f.h.Bid(f.ctx, alice, id, eth(5), eth(6))
	check.True(t, errors.Is(err, domain.ErrPaymentMismatch))

	_, err = f.h.Bid(f.ctx, alice, id, big.NewInt(0), big.NewInt(0))
	check.True(t, errors.Is(err, domain.ErrZeroBid))

	_, err = f.bid(alice, id, eth(4))
	check.True(t, errors.Is(err, domain.ErrBelowReserve))

	_, err = f.bid(alice, DeriveAuctionID(plainColl, big.NewInt(42)), eth(5))
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))

	_, err = f.bid(funds, id, eth(5))
	check.True(t, errors.Is(err, domain.ErrInsufficientFunds))

	check.Equal(t, eth(1000).String(), f.native(alice))
	a, _ := f.h.Auction(id)
	check.False(t, a.HasBid())
}

func TestIncrementGateAtThousand(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, big.NewInt(1000), 0)

	_, err := f.bid(alice, id, big.NewInt(1000))
	assert.NoError(t, err)

	_, err = f.bid(bob, id, big.NewInt(1099))
	check.True(t, errors.Is(err, domain.ErrBidIncrementTooLow))

	_, err = f.bid(bob, id, big.NewInt(1100))
	assert.NoError(t, err)
	a, _ := f.h.Auction(id)
	check.Equal(t, "1100", a.Amount.String())
	check.Equal(t, bob, a.Bidder)
}

func TestZeroReserveAcceptsAnyPositiveBid(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, big.NewInt(0), 0)

	_, err := f.bid(alice, id, big.NewInt(1))
	assert.NoError(t, err)
}

func TestOutbidRefundsPreviousBidder(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, eth(1), 0)

	_, err := f.bid(alice, id, eth(10))
	assert.NoError(t, err)

	_, err = f.bid(bob, id, new(big.Int).Sub(eth(11), big.NewInt(1)))
	check.True(t, errors.Is(err, domain.ErrBidIncrementTooLow))

	r, err := f.bid(bob, id, eth(11))
	assert.NoError(t, err)
	check.False(t, r.Events[0].FirstBid)

	check.Equal(t, eth(1000).String(), f.native(alice))
	check.Equal(t, eth(989).String(), f.native(bob))
	check.Equal(t, eth(11).String(), f.native(houseAddr))

	a, _ := f.h.Auction(id)
	check.Equal(t, bob, a.Bidder)

	// The incumbent may raise their own bid.
	_, err = f.bid(bob, id, eth(20))
	assert.NoError(t, err)
	check.Equal(t, eth(980).String(), f.native(bob))
	check.Equal(t, eth(20).String(), f.native(houseAddr))
}

func TestFirstBidTimeDoesNotMove(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 86400, eth(1), 0)

	_, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)
	start := f.now()

	f.advance(100)
	_, err = f.bid(bob, id, eth(2))
	assert.NoError(t, err)

	a, _ := f.h.Auction(id)
	check.Equal(t, start, a.FirstBidTime)
	check.Equal(t, uint64(86400), a.Duration)
}

func TestLateBidExtendsAuction(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 0)

	_, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)
	start := f.now()

	// 100 seconds before closing.
	f.advance(3500)
	r, err := f.bid(bob, id, eth(2))
	assert.NoError(t, err)
	check.Equal(t, []domain.EventKind{domain.EventAuctionBid, domain.EventAuctionDurationExtended}, kinds(r))
	check.True(t, r.Events[0].Extended)

	a, _ := f.h.Auction(id)
	check.Equal(t, f.now()+TimeBuffer, a.ClosingTime())
	check.Equal(t, uint64(3600+800), a.Duration)
	check.Equal(t, start, a.FirstBidTime)
	check.Equal(t, a.Duration, r.Events[1].Duration)
}

func TestFirstBidOnShortAuctionExtends(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 60, eth(1), 0)

	r, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)
	check.True(t, r.Events[0].FirstBid)
	check.True(t, r.Events[0].Extended)

	a, _ := f.h.Auction(id)
	check.Equal(t, uint64(TimeBuffer), a.Duration)
}

func TestBidAfterClose(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 0)
	_, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)

	f.advance(3600)
	_, err = f.bid(bob, id, eth(5))
	check.True(t, errors.Is(err, domain.ErrAuctionExpired))
}

func TestBidWhilePaused(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 0)
	_, err := f.h.Pause(f.ctx, recoveryAdr)
	assert.NoError(t, err)

	_, err = f.bid(alice, id, eth(1))
	check.True(t, errors.Is(err, domain.ErrPaused))

	_, err = f.h.Unpause(f.ctx, recoveryAdr)
	assert.NoError(t, err)
	_, err = f.bid(alice, id, eth(1))
	assert.NoError(t, err)
}

func TestDurationNearOverflow(t *testing.T) {
	f := newFixture(t)

	_, err := f.h.Create(f.ctx, seller, CreateParams{
		ItemCollection: plainColl,
		ItemID:         f.mint(plainColl, 1, seller),
		Duration:       math.MaxUint64,
		Curator:        curator,
		FundsRecipient: funds,
	})
	check.True(t, errors.Is(err, domain.ErrDurationTooLong))
	check.Equal(t, domain.ClassValidation, domain.Classify(err))
	check.Equal(t, seller, f.owner(plainColl, big.NewInt(1)))

	// The largest accepted duration leaves room for the time buffer.
	longest := math.MaxUint64 - f.now() - TimeBuffer
	id := f.create(plainColl, big.NewInt(1), longest, big.NewInt(1), 0)

	f.advance(1000)
	_, err = f.bid(alice, id, big.NewInt(1))
	check.True(t, errors.Is(err, domain.ErrDurationTooLong))
	a, _ := f.h.Auction(id)
	check.False(t, a.HasBid())
	check.Equal(t, longest, a.Duration)
	check.Equal(t, eth(1000).String(), f.native(alice))

	// A bid that still fits never shrinks the duration and never settles early.
	id2 := f.create(plainColl, f.mint(plainColl, 2, seller), longest-1000, big.NewInt(1), 0)
	r, err := f.bid(alice, id2, big.NewInt(1))
	assert.NoError(t, err)
	check.False(t, r.Events[0].Extended)
	a, _ = f.h.Auction(id2)
	check.Equal(t, longest-1000, a.Duration)

	f.advance(TimeBuffer)
	_, err = f.h.Settle(f.ctx, bob, id2)
	check.True(t, errors.Is(err, domain.ErrAuctionNotComplete))
}

func TestClosingTimeSaturates(t *testing.T) {
	a := domain.Auction{Curator: curator, FirstBidTime: 10, Duration: math.MaxUint64}
	check.Equal(t, uint64(math.MaxUint64), a.ClosingTime())
	check.False(t, Ready(a, math.MaxUint64-1))
}
