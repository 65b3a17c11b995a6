package domain

import (
	"math"
	"math/big"
	"math/bits"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// AuctionID identifies an auction. It is derived from the item collection and
// item identifier and never reused for a different pair.
type AuctionID = common.Hash

// NewAuctionID returns keccak256(abi.encode(collection, itemID)). It needs no
// state, so any party can compute it.
func NewAuctionID(collection common.Address, itemID *big.Int) AuctionID {
	id := itemID
	if id == nil {
		id = new(big.Int)
	}
	return ethcrypto.Keccak256Hash(
		common.LeftPadBytes(collection.Bytes(), 32),
		common.LeftPadBytes(id.Bytes(), 32),
	)
}

// ParseAuctionID parses a 0x-prefixed 32-byte hex string.
func ParseAuctionID(s string) (AuctionID, error) {
	b, err := hexToBytes(s)
	if err != nil || len(b) != common.HashLength {
		return AuctionID{}, ErrInvalidAuctionID
	}
	return common.BytesToHash(b), nil
}

// Auction is the mutable record of one active auction.
//
// Amount, FirstBidTime and Bidder are all zero until the first bid lands,
// and all non-zero afterwards.
type Auction struct {
	ID                AuctionID      `json:"id"`
	ItemCollection    common.Address `json:"item_collection"`
	ItemID            *big.Int       `json:"item_id"`
	Amount            *big.Int       `json:"amount"`
	Duration          uint64         `json:"duration"`
	FirstBidTime      uint64         `json:"first_bid_time"`
	ReservePrice      *big.Int       `json:"reserve_price"`
	CuratorFeePercent uint8          `json:"curator_fee_percent"`
	Curator           common.Address `json:"curator"`
	Bidder            common.Address `json:"bidder"`
	FundsRecipient    common.Address `json:"funds_recipient"`
}

// Exists reports whether the record is live. A record with a zero curator
// is the canonical "auction does not exist" value.
func (a Auction) Exists() bool {
	return a.Curator != (common.Address{})
}

// HasBid reports whether bidding has started.
func (a Auction) HasBid() bool {
	return a.FirstBidTime != 0
}

// ClosingTime is FirstBidTime + Duration, saturating at math.MaxUint64. It is
// meaningless before the first bid.
func (a Auction) ClosingTime() uint64 {
	c, carry := bits.Add64(a.FirstBidTime, a.Duration, 0)
	if carry != 0 {
		return math.MaxUint64
	}
	return c
}

// Clone returns a deep copy so callers never share big.Int storage with the
// registry.
func (a Auction) Clone() Auction {
	out := a
	out.ItemID = cloneInt(a.ItemID)
	out.Amount = cloneInt(a.Amount)
	out.ReservePrice = cloneInt(a.ReservePrice)
	return out
}

// EngineStatus is the read-only flag surface of the engine.
type EngineStatus struct {
	Paused          bool   `json:"paused"`
	RecoveryEnabled bool   `json:"recovery_enabled"`
	Version         uint64 `json:"version"`
	ActiveAuctions  int    `json:"active_auctions"`
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func hexToBytes(s string) ([]byte, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	return hexutil.Decode("0x" + s)
}
