package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind names an engine event. Values double as notification event
// filters and bus channel suffixes.
type EventKind string

const (
	EventAuctionCreated          EventKind = "auction_created"
	EventAuctionBid              EventKind = "auction_bid"
	EventAuctionDurationExtended EventKind = "auction_duration_extended"
	EventAuctionCanceled         EventKind = "auction_canceled"
	EventCuratorFeePaid          EventKind = "curator_fee_paid"
	EventCreatorRoyaltyPaid      EventKind = "creator_royalty_paid"
	EventAuctionEnded            EventKind = "auction_ended"
	EventPaymentFallback         EventKind = "payment_fallback"
	EventPaused                  EventKind = "paused"
	EventUnpaused                EventKind = "unpaused"
	EventRecoveryDisabled        EventKind = "recovery_disabled"
	EventItemRecovered           EventKind = "item_recovered"
	EventCurrencyRecovered       EventKind = "currency_recovered"
)

// Event is one entry of the audit trail. Only the fields relevant to Kind
// are populated.
type Event struct {
	ID                string         `json:"id"`
	Kind              EventKind      `json:"kind"`
	AuctionID         AuctionID      `json:"auction_id"`
	ItemCollection    common.Address `json:"item_collection"`
	ItemID            *big.Int       `json:"item_id,omitempty"`
	Curator           common.Address `json:"curator"`
	Bidder            common.Address `json:"bidder"`
	FundsRecipient    common.Address `json:"funds_recipient"`
	Recipient         common.Address `json:"recipient"`
	Amount            *big.Int       `json:"amount,omitempty"`
	ReservePrice      *big.Int       `json:"reserve_price,omitempty"`
	Duration          uint64         `json:"duration,omitempty"`
	CuratorFeePercent uint8          `json:"curator_fee_percent,omitempty"`
	FirstBid          bool           `json:"first_bid,omitempty"`
	Extended          bool           `json:"extended,omitempty"`
	Timestamp         uint64         `json:"timestamp"`
}

// Time returns the event timestamp as a UTC time.
func (e Event) Time() time.Time {
	return time.Unix(int64(e.Timestamp), 0).UTC()
}

// Receipt is the outcome of one committed engine operation. Events are only
// ever observed through a receipt, so a failed operation emits nothing.
type Receipt struct {
	Operation string         `json:"operation"`
	Caller    common.Address `json:"caller"`
	Timestamp uint64         `json:"timestamp"`
	Events    []Event        `json:"events"`
	// Touched lists auctions whose record was inserted, changed or deleted.
	Touched []AuctionID `json:"touched"`
}
