package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves backend status for dashboards and probes.
type StatusHandler struct {
	PriceScale   uint64
	BookCapacity int
	DevFaucet    bool
	StartedAt    time.Time
}

// NewStatusHandler creates a StatusHandler with the given runtime metadata.
func NewStatusHandler(priceScale uint64, bookCapacity int, devFaucet bool) *StatusHandler {
	return &StatusHandler{
		PriceScale:   priceScale,
		BookCapacity: bookCapacity,
		DevFaucet:    devFaucet,
		StartedAt:    time.Now().UTC(),
	}
}

// GetStatus responds with the exchange's runtime configuration.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"price_scale":    h.PriceScale,
		"book_capacity":  h.BookCapacity,
		"dev_faucet":     h.DevFaucet,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
