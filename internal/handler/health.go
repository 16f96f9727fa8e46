package handler

import (
	"context"
	"net/http"
	"time"
)

type pinger interface {
	PingContext(ctx context.Context) error
}

type activeCounter interface {
	CountActive(ctx context.Context) (int, error)
}

type healthResponse struct {
	Status      string `json:"status"`
	ActiveItems int    `json:"active_items"`
}

// Health answers {"status":"ok","active_items":N} while the database
// responds and the item table can be read.
func Health(db pinger, items activeCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		n, err := items.CountActive(ctx)
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, healthResponse{Status: "ok", ActiveItems: n})
	}
}
