package auction

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

func TestCreateTakesCustody(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, seller)

	r, err := f.h.Create(f.ctx, seller, CreateParams{
		ItemCollection:    plainColl,
		ItemID:            itemID,
		Duration:          86400,
		ReservePrice:      eth(1),
		CuratorFeePercent: 5,
		Curator:           curator,
		FundsRecipient:    funds,
	})
	assert.NoError(t, err)
	check.Equal(t, []domain.EventKind{domain.EventAuctionCreated}, kinds(r))
	check.Equal(t, houseAddr, f.owner(plainColl, itemID))

	id := DeriveAuctionID(plainColl, itemID)
	check.Equal(t, []domain.AuctionID{id}, r.Touched)

	a, ok := f.h.Auction(id)
	assert.True(t, ok)
	check.Equal(t, curator, a.Curator)
	check.Equal(t, funds, a.FundsRecipient)
	check.Equal(t, uint64(86400), a.Duration)
	check.Equal(t, eth(1).String(), a.ReservePrice.String())
	check.Equal(t, "0", a.Amount.String())
	check.Equal(t, uint64(0), a.FirstBidTime)
	check.Equal(t, common.Address{}, a.Bidder)
	check.Equal(t, uint8(5), r.Events[0].CuratorFeePercent)
}

func TestCreateByApprovedOperator(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, alice)
	assert.NoError(t, f.l.Approve(alice, seller, plainColl, itemID))

	f.create(plainColl, itemID, 3600, eth(1), 0)
	check.Equal(t, houseAddr, f.owner(plainColl, itemID))
}

func TestCreateRejections(t *testing.T) {
	f := newFixture(t)
	owned := f.mint(plainColl, 1, seller)
	foreign := f.mint(plainColl, 2, alice)
	base := CreateParams{
		ItemCollection: plainColl,
		ItemID:         owned,
		Duration:       3600,
		ReservePrice:   eth(1),
		Curator:        curator,
		FundsRecipient: funds,
	}

	cases := []struct {
		name   string
		mutate func(p *CreateParams)
		want   error
	}{
		{"zero curator", func(p *CreateParams) { p.Curator = common.Address{} }, domain.ErrZeroCurator},
		{"zero funds recipient", func(p *CreateParams) { p.FundsRecipient = common.Address{} }, domain.ErrZeroFundsRecipient},
		{"fee of 100", func(p *CreateParams) { p.CuratorFeePercent = 100 }, domain.ErrCuratorFeeTooHigh},
		{"not owner", func(p *CreateParams) { p.ItemID = foreign }, domain.ErrNotItemOwnerOrApprove},
		{"unknown item", func(p *CreateParams) { p.ItemID = big.NewInt(77) }, domain.ErrItemTransfer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base
			tc.mutate(&p)
			_, err := f.h.Create(f.ctx, seller, p)
			check.True(t, errors.Is(err, tc.want))
		})
	}

	// A live auction is reported before field validation.
	f.create(plainColl, owned, 3600, eth(1), 0)
	p := base
	p.Curator = common.Address{}
	_, err := f.h.Create(f.ctx, seller, p)
	check.True(t, errors.Is(err, domain.ErrAuctionExists))
}

func TestCreateWithoutHouseApproval(t *testing.T) {
	f := newFixture(t)
	itemID := big.NewInt(1)
	assert.NoError(t, f.l.Mint(plainColl, itemID, seller, decimal.Zero))

	_, err := f.h.Create(f.ctx, seller, CreateParams{
		ItemCollection: plainColl,
		ItemID:         itemID,
		Duration:       3600,
		Curator:        curator,
		FundsRecipient: funds,
	})
	check.True(t, errors.Is(err, domain.ErrItemTransfer))
	check.Equal(t, seller, f.owner(plainColl, itemID))
	_, ok := f.h.Auction(DeriveAuctionID(plainColl, itemID))
	check.False(t, ok)
}

func TestCreateWhilePaused(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, seller)
	_, err := f.h.Pause(f.ctx, recoveryAdr)
	assert.NoError(t, err)

	_, err = f.h.Create(f.ctx, seller, CreateParams{
		ItemCollection: plainColl,
		ItemID:         itemID,
		Curator:        common.Address{},
	})
	check.True(t, errors.Is(err, domain.ErrPaused))
	check.Equal(t, seller, f.owner(plainColl, itemID))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, seller)
	id := f.create(plainColl, itemID, 3600, eth(1), 0)

	_, err := f.h.Cancel(f.ctx, seller, id)
	check.True(t, errors.Is(err, domain.ErrNotCurator))

	_, err = f.h.Pause(f.ctx, recoveryAdr)
	assert.NoError(t, err)

	r, err := f.h.Cancel(f.ctx, curator, id)
	assert.NoError(t, err)
	check.Equal(t, []domain.EventKind{domain.EventAuctionCanceled}, kinds(r))
	check.Equal(t, curator, f.owner(plainColl, itemID))

	_, ok := f.h.Auction(id)
	check.False(t, ok)

	_, err = f.h.Cancel(f.ctx, curator, id)
	check.True(t, errors.Is(err, domain.ErrAuctionNotFound))
}

func TestCancelAfterBid(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, seller)
	id := f.create(plainColl, itemID, 3600, eth(1), 0)
	_, err := f.bid(alice, id, eth(1))
	assert.NoError(t, err)

	_, err = f.h.Cancel(f.ctx, curator, id)
	check.True(t, errors.Is(err, domain.ErrAuctionStarted))
	check.Equal(t, houseAddr, f.owner(plainColl, itemID))
}

func TestRecreateAfterCancel(t *testing.T) {
	f := newFixture(t)
	itemID := f.mint(plainColl, 1, seller)
	id := f.create(plainColl, itemID, 3600, eth(1), 0)
	_, err := f.h.Cancel(f.ctx, curator, id)
	assert.NoError(t, err)

	// The item went back to the curator, who now lists it.
	f.l.SetApprovalForAll(curator, houseAddr, plainColl, true)
	_, err = f.h.Create(f.ctx, curator, CreateParams{
		ItemCollection: plainColl,
		ItemID:         itemID,
		Duration:       60,
		ReservePrice:   big.NewInt(0),
		Curator:        curator,
		FundsRecipient: curator,
	})
	assert.NoError(t, err)
	a, ok := f.h.Auction(id)
	assert.True(t, ok)
	check.Equal(t, uint64(60), a.Duration)
}
