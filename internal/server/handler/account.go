package handler

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// AccountService reads ledger balances.
type AccountService interface {
	Account(addr common.Address) domain.LedgerAccount
}

// AccountHandler serves balance lookups.
type AccountHandler struct {
	accounts AccountService
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Get returns the native and wrapped balances of an address.
// GET /api/accounts/{address}
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress("address", r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.accounts.Account(addr))
}
