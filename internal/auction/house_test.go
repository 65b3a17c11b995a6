package auction

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
	"github.com/alanyoungcy/auctionhouse/internal/ledger"
)

var (
	houseAddr   = common.HexToAddress("0x00000000000000000000000000000000000a0c7e")
	recoveryAdr = common.HexToAddress("0x000000000000000000000000000000000000bead")
	wethAddr    = common.HexToAddress("0x000000000000000000000000000000000000e7e7")
	royaltyColl = common.HexToAddress("0x0000000000000000000000000000000000001001")
	plainColl   = common.HexToAddress("0x0000000000000000000000000000000000002002")

	seller  = common.HexToAddress("0x0000000000000000000000000000000000000511")
	curator = common.HexToAddress("0x0000000000000000000000000000000000000c0c")
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol   = common.HexToAddress("0x00000000000000000000000000000000000ca201")
	funds   = common.HexToAddress("0x000000000000000000000000000000000000f0d5")
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	l     *ledger.Ledger
	h     *House
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		l:     ledger.New(ledger.Options{WrappedAsset: wethAddr}),
		clock: time.Unix(1_700_000_000, 0),
	}
	h, err := New(Config{
		House:             houseAddr,
		Recovery:          recoveryAdr,
		RoyaltyCollection: royaltyColl,
		Clock:             func() time.Time { return f.clock },
	}, f.l)
	assert.NoError(t, err)
	f.h = h
	for _, a := range []common.Address{alice, bob, carol} {
		f.l.Fund(a, eth(1000))
	}
	return f
}

func eth(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18)) }

func (f *fixture) advance(seconds uint64) {
	f.clock = f.clock.Add(time.Duration(seconds) * time.Second)
}

func (f *fixture) now() uint64 { return uint64(f.clock.Unix()) }

// mint creates item id in coll owned by owner with no creator royalty and
// lets the house move the owner's items.
func (f *fixture) mint(coll common.Address, id int64, owner common.Address) *big.Int {
	f.t.Helper()
	itemID := big.NewInt(id)
	assert.NoError(f.t, f.l.Mint(coll, itemID, owner, decimal.Zero))
	f.l.SetApprovalForAll(owner, houseAddr, coll, true)
	return itemID
}

func (f *fixture) create(coll common.Address, itemID *big.Int, duration uint64, reserve *big.Int, fee uint8) domain.AuctionID {
	f.t.Helper()
	_, err := f.h.Create(f.ctx, seller, CreateParams{
		ItemCollection:    coll,
		ItemID:            itemID,
		Duration:          duration,
		ReservePrice:      reserve,
		CuratorFeePercent: fee,
		Curator:           curator,
		FundsRecipient:    funds,
	})
	assert.NoError(f.t, err)
	return DeriveAuctionID(coll, itemID)
}

func (f *fixture) bid(from common.Address, id domain.AuctionID, amount *big.Int) (*domain.Receipt, error) {
	return f.h.Bid(f.ctx, from, id, amount, amount)
}

func (f *fixture) native(addr common.Address) string {
	return f.l.Currency().BalanceOf(addr).String()
}

func (f *fixture) wrapped(addr common.Address) string {
	return f.l.Wrapped().BalanceOf(addr).String()
}

func (f *fixture) owner(coll common.Address, itemID *big.Int) common.Address {
	f.t.Helper()
	o, err := f.l.Items().OwnerOf(coll, itemID)
	assert.NoError(f.t, err)
	return o
}

func kinds(r *domain.Receipt) []domain.EventKind {
	out := make([]domain.EventKind, 0, len(r.Events))
	for _, e := range r.Events {
		out = append(out, e.Kind)
	}
	return out
}

func TestNewValidatesConfig(t *testing.T) {
	l := ledger.New(ledger.Options{WrappedAsset: wethAddr})

	_, err := New(Config{Recovery: recoveryAdr}, l)
	check.Error(t, err)
	_, err = New(Config{House: houseAddr}, l)
	check.Error(t, err)
	_, err = New(Config{House: houseAddr, Recovery: recoveryAdr}, nil)
	check.Error(t, err)

	h, err := New(Config{House: houseAddr, Recovery: recoveryAdr}, l)
	assert.NoError(t, err)
	check.Equal(t, uint64(DefaultDirectTransferGas), h.cfg.DirectTransferGas)
	check.Equal(t, uint64(1), h.Version())
	check.False(t, h.IsPaused())
	check.True(t, h.IsRecoveryEnabled())
}

func TestDeriveAuctionID(t *testing.T) {
	a := DeriveAuctionID(plainColl, big.NewInt(7))
	check.Equal(t, a, DeriveAuctionID(plainColl, big.NewInt(7)))
	check.NotEqual(t, a, DeriveAuctionID(plainColl, big.NewInt(8)))
	check.NotEqual(t, a, DeriveAuctionID(royaltyColl, big.NewInt(7)))

	parsed, err := domain.ParseAuctionID(a.Hex())
	assert.NoError(t, err)
	check.Equal(t, a, parsed)
}

func TestStatusAndRestore(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 0)

	st := f.h.Status()
	check.Equal(t, 1, st.ActiveAuctions)
	check.True(t, st.RecoveryEnabled)

	records := f.h.Auctions()
	h2, err := New(Config{House: houseAddr, Recovery: recoveryAdr}, f.l)
	assert.NoError(t, err)
	h2.Restore(records, domain.EngineFlags{Paused: true, RecoveryEnabled: false})

	got, ok := h2.Auction(id)
	assert.True(t, ok)
	check.Equal(t, curator, got.Curator)
	check.True(t, h2.IsPaused())
	check.False(t, h2.IsRecoveryEnabled())
}

func TestFailedOperationLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, seller)
	id := f.create(plainColl, itemID, 3600, eth(1), 5)

	_, err := f.bid(alice, id, eth(10))
	assert.NoError(t, err)
	before, _ := f.h.Auction(id)

	// One wei short of the 10% increment.
	low := new(big.Int).Sub(eth(11), big.NewInt(1))
	r, err := f.bid(bob, id, low)
	check.True(t, errors.Is(err, domain.ErrBidIncrementTooLow))
	check.Nil(t, r)

	after, _ := f.h.Auction(id)
	check.Equal(t, before.Bidder, after.Bidder)
	check.Equal(t, before.Amount.String(), after.Amount.String())
	check.Equal(t, eth(1000).String(), f.native(bob))
	check.Equal(t, eth(10).String(), f.native(houseAddr))
}

func TestClassify(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.Pause(f.ctx, alice)
	check.Equal(t, domain.ClassAccess, domain.Classify(err))

	_, err = f.h.Settle(f.ctx, alice, DeriveAuctionID(plainColl, big.NewInt(99)))
	check.Equal(t, domain.ClassNotFound, domain.Classify(err))
}

func TestCommitHookErrorReverts(t *testing.T) {
	f := newFixture(t)
	id := f.create(plainColl, f.mint(plainColl, 1, seller), 3600, eth(1), 0)

	var seen []string
	f.h.SetCommitHook(func(_ context.Context, r *domain.Receipt) error {
		seen = append(seen, r.Operation)
		// The hook sees the operation's effects before they commit.
		a, _ := f.h.Auction(id)
		check.Equal(t, alice, a.Bidder)
		return errors.New("disk full")
	})
	r, err := f.bid(alice, id, eth(1))
	check.Error(t, err)
	check.Nil(t, r)
	check.Equal(t, []string{"bid"}, seen)

	a, _ := f.h.Auction(id)
	check.False(t, a.HasBid())
	check.Equal(t, eth(1000).String(), f.native(alice))
	check.Equal(t, "0", f.native(houseAddr))

	f.h.SetCommitHook(nil)
	_, err = f.bid(alice, id, eth(1))
	assert.NoError(t, err)
}
