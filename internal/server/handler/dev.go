package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// DevService exposes direct ledger mutations for local development.
type DevService interface {
	Fund(ctx context.Context, addr common.Address, value *big.Int) error
	Mint(ctx context.Context, coll common.Address, itemID *big.Int, to common.Address, creatorShare decimal.Decimal) error
	Approve(ctx context.Context, owner, spender, coll common.Address, itemID *big.Int) error
}

// DevHandler serves the faucet, mint and approve endpoints. It is only
// mounted when dev mode is on.
type DevHandler struct {
	dev    DevService
	logger *slog.Logger
}

// NewDevHandler creates a DevHandler.
func NewDevHandler(dev DevService, logger *slog.Logger) *DevHandler {
	return &DevHandler{dev: dev, logger: logger.With(slog.String("handler", "dev"))}
}

type fundRequest struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

// Fund credits native currency.
// POST /api/dev/fund
func (h *DevHandler) Fund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	addr, err := parseAddress("address", req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.dev.Fund(r.Context(), addr, amount); err != nil {
		writeServiceError(w, r, h.logger, "fund", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
}

type mintRequest struct {
	Collection string `json:"collection"`
	ItemID     string `json:"item_id"`
	To         string `json:"to"`
	// CreatorShare is a percentage, e.g. "5" or "2.5".
	CreatorShare string `json:"creator_share,omitempty"`
}

// Mint creates an item.
// POST /api/dev/mint
func (h *DevHandler) Mint(w http.ResponseWriter, r *http.Request) {
	var req mintRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	coll, err := parseAddress("collection", req.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseAddress("to", req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := parseAmount("item_id", req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	share := decimal.Zero
	if req.CreatorShare != "" {
		if share, err = decimal.NewFromString(req.CreatorShare); err != nil {
			writeError(w, http.StatusBadRequest, "creator_share must be a decimal percentage")
			return
		}
	}
	if err := h.dev.Mint(r.Context(), coll, itemID, to, share); err != nil {
		writeServiceError(w, r, h.logger, "mint", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "minted"})
}

type approveRequest struct {
	Spender    string `json:"spender"`
	Collection string `json:"collection"`
	ItemID     string `json:"item_id"`
}

// Approve lets spender move one of the signed caller's items.
// POST /api/dev/approve
func (h *DevHandler) Approve(w http.ResponseWriter, r *http.Request) {
	owner, ok := caller(w, r)
	if !ok {
		return
	}
	var req approveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	spender, err := parseAddress("spender", req.Spender)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	coll, err := parseAddress("collection", req.Collection)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	itemID, err := parseAmount("item_id", req.ItemID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.dev.Approve(r.Context(), owner, spender, coll, itemID); err != nil {
		writeServiceError(w, r, h.logger, "approve", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}
