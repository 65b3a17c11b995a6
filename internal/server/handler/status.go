package handler

import (
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/auctionhouse/internal/domain"
)

// StatusService reports the engine flag surface.
type StatusService interface {
	Status() domain.EngineStatus
	HouseAddress() common.Address
}

// StatusHandler serves the engine status for dashboards and operators.
type StatusHandler struct {
	engine    StatusService
	mode      string
	startedAt time.Time
}

// NewStatusHandler creates a StatusHandler for the given run mode.
func NewStatusHandler(engine StatusService, mode string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{engine: engine, mode: mode, startedAt: startedAt}
}

type statusResponse struct {
	domain.EngineStatus
	Mode          string         `json:"mode"`
	House         common.Address `json:"house"`
	UptimeSeconds int64          `json:"uptime_seconds"`
}

// GetStatus responds with paused, recovery and version flags.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		EngineStatus:  h.engine.Status(),
		Mode:          h.mode,
		House:         h.engine.HouseAddress(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
	})
}
