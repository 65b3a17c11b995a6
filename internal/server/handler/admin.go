package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// AdminService is the recovery-admin surface of the service layer.
type AdminService interface {
	Pause(ctx context.Context, caller common.Address) (*domain.Receipt, error)
	Unpause(ctx context.Context, caller common.Address) (*domain.Receipt, error)
	DisableRecovery(ctx context.Context, caller common.Address) (*domain.Receipt, error)
	RecoverItem(ctx context.Context, caller common.Address, id domain.AuctionID) (*domain.Receipt, error)
	RecoverCurrency(ctx context.Context, caller common.Address, amount *big.Int) (*domain.Receipt, error)
}

// AdminHandler serves the pause and recovery endpoints. The engine checks
// that the caller is the recovery address.
type AdminHandler struct {
	admin  AdminService
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{admin: admin, logger: logger.With(slog.String("handler", "admin"))}
}

// Pause handles POST /api/admin/pause.
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.flag(w, r, "pause", h.admin.Pause)
}

// Unpause handles POST /api/admin/unpause.
func (h *AdminHandler) Unpause(w http.ResponseWriter, r *http.Request) {
	h.flag(w, r, "unpause", h.admin.Unpause)
}

// DisableRecovery handles POST /api/admin/disable-recovery. It cannot be undone.
func (h *AdminHandler) DisableRecovery(w http.ResponseWriter, r *http.Request) {
	h.flag(w, r, "disable recovery", h.admin.DisableRecovery)
}

func (h *AdminHandler) flag(w http.ResponseWriter, r *http.Request, op string,
	fn func(context.Context, common.Address) (*domain.Receipt, error),
) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	receipt, err := fn(r.Context(), from)
	if err != nil {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// RecoverItem handles POST /api/admin/recover-item/{id}.
func (h *AdminHandler) RecoverItem(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := auctionID(w, r)
	if !ok {
		return
	}
	receipt, err := h.admin.RecoverItem(r.Context(), from, id)
	if err != nil {
		writeServiceError(w, r, h.logger, "recover item", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type recoverCurrencyRequest struct {
	Amount string `json:"amount"`
}

// RecoverCurrency handles POST /api/admin/recover-currency.
func (h *AdminHandler) RecoverCurrency(w http.ResponseWriter, r *http.Request) {
	from, ok := caller(w, r)
	if !ok {
		return
	}
	var req recoverCurrencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	receipt, err := h.admin.RecoverCurrency(r.Context(), from, amount)
	if err != nil {
		writeServiceError(w, r, h.logger, "recover currency", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}
