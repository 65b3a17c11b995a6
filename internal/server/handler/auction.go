package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/auction"
	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// AuctionService defines the methods that the auction handler requires from
// the service layer. It is declared locally so the handler package does not
// depend on the concrete service implementation.
type AuctionService interface {
	Create(ctx context.Context, caller common.Address, p auction.CreateParams) (*domain.Receipt, error)
	Bid(ctx context.Context, caller common.Address, id domain.AuctionID, amount, payment *big.Int) (*domain.Receipt, error)
	Settle(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error)
	Cancel(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error)
	Get(ctx context.Context, id domain.AuctionID) (domain.Auction, error)
	ListActive(opts domain.ListOpts) []domain.Auction
	Settleable(ctx context.Context, limit int) ([]domain.Auction, error)
	Events(ctx context.Context, id domain.AuctionID, opts domain.ListOpts) ([]domain.Event, error)
}

// AuctionHandler serves the auction lifecycle endpoints.
type AuctionHandler struct {
	auctions AuctionService
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler.
func NewAuctionHandler(auctions AuctionService, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{auctions: auctions, logger: logger.With(slog.String("handler", "auction"))}
}

type createAuctionRequest struct {
	ItemCollection    string `json:"item_collection"`
	ItemID            string `json:"item_id"`
	Duration          uint64 `json:"duration"`
	ReservePrice      string `json:"reserve_price"`
	CuratorFeePercent uint8  `json:"curator_fee_percent"`
	Curator           string `json:"curator"`
	FundsRecipient    string `json:"funds_recipient"`
}

func (req createAuctionRequest) params() (auction.CreateParams, error) {
	var (
		p   auction.CreateParams
		err error
	)
	if p.ItemCollection, err = parseAddress("item_collection", req.ItemCollection); err != nil {
		return p, err
	}
	if p.ItemID, err = parseAmount("item_id", req.ItemID); err != nil {
		return p, err
	}
	if p.ReservePrice, err = parseAmount("reserve_price", req.ReservePrice); err != nil {
		return p, err
	}
	// Zero addresses are the engine's to reject, so only the format is checked.
	if p.Curator, err = parseAddress("curator", req.Curator); err != nil {
		return p, err
	}
	if p.FundsRecipient, err = parseAddress("funds_recipient", req.FundsRecipient); err != nil {
		return p, err
	}
	p.Duration = req.Duration
	p.CuratorFeePercent = req.CuratorFeePercent
	return p, nil
}

// Create registers a new auction owned by the signed caller.
// POST /api/auctions
func (h *AuctionHandler) Create(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req createAuctionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := req.params()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.auctions.Create(r.Context(), from, p)
	if err != nil {
		writeServiceError(w, r, h.logger, "create auction", err)
		return
	}
	writeJSON(w, http.StatusCreated, receipt)
}

type listAuctionsResponse struct {
	Auctions []domain.Auction `json:"auctions"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// List returns active auctions ordered by id.
// GET /api/auctions?limit=50&offset=0
func (h *AuctionHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	writeJSON(w, http.StatusOK, listAuctionsResponse{
		Auctions: h.auctions.ListActive(opts),
		Limit:    opts.Limit,
		Offset:   opts.Offset,
	})
}

// Settleable returns auctions whose closing time has passed with a bid, for
// keepers that settle over the API.
// GET /api/auctions/settleable?limit=50
func (h *AuctionHandler) Settleable(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)
	ready, err := h.auctions.Settleable(r.Context(), opts.Limit)
	if err != nil {
		writeServiceError(w, r, h.logger, "list settleable", err)
		return
	}
	if ready == nil {
		ready = []domain.Auction{}
	}
	writeJSON(w, http.StatusOK, listAuctionsResponse{Auctions: ready, Limit: opts.Limit})
}

// Get returns one active auction.
// GET /api/auctions/{id}
func (h *AuctionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	a, err := h.auctions.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, "get auction", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// Derive returns the auction id for an item without touching state.
// GET /api/auctions/derive?collection=0x..&item_id=1
func (h *AuctionHandler) Derive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	coll, err := parseAddress("collection", q.Get("collection"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := parseAmount("item_id", q.Get("item_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id": auction.DeriveAuctionID(coll, itemID).Hex(),
	})
}

type bidRequest struct {
	Amount string `json:"amount"`
	// Payment is the value sent with the bid. It defaults to Amount.
	Payment string `json:"payment,omitempty"`
}

// Bid places a bid as the signed caller.
// POST /api/auctions/{id}/bids
func (h *AuctionHandler) Bid(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	var req bidRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	payment := amount
	if req.Payment != "" {
		if payment, err = parseAmount("payment", req.Payment); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	receipt, err := h.auctions.Bid(r.Context(), from, id, amount, payment)
	if err != nil {
		writeServiceError(w, r, h.logger, "bid", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Settle ends a completed auction. Anyone may settle.
// POST /api/auctions/{id}/settle
func (h *AuctionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "settle auction", h.auctions.Settle)
}

// Cancel withdraws an auction before its first bid.
// POST /api/auctions/{id}/cancel
func (h *AuctionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, "cancel auction", h.auctions.Cancel)
}

func (h *AuctionHandler) lifecycle(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, common.Address, domain.AuctionID) (*domain.Receipt, error),
) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	receipt, err := fn(r.Context(), from, id)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// Events returns the persisted audit trail of an auction, including events
// emitted after it was settled or canceled.
// GET /api/auctions/{id}/events?since=&until=&limit=&offset=
func (h *AuctionHandler) Events(w http.ResponseWriter, r *http.Request) {
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	events, err := h.auctions.Events(r.Context(), id, parseListOpts(r))
	if err != nil {
		writeServiceError(w, r, h.logger, "list events", err)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
