// ABOUTME: Admin endpoints over the request log.
// ABOUTME: Filtered log listing and aggregate stats with per-area error rates.

package api

import (
	"net/http"
	"strconv"
	"time"

	apierrors "github.com/2389/sitewalk/internal/errors"
	"github.com/2389/sitewalk/internal/store"
)

// Areas are the request areas reported by the stats endpoint.
var Areas = []string{"api", "ui", "ws", "export", "admin"}

func (h *Handlers) requestLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := &store.RequestLogQuery{
		Area:       q.Get("area"),
		Method:     q.Get("method"),
		PathPrefix: q.Get("path"),
		UserID:     q.Get("user"),
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		query.Limit = min(v, 500)
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		query.Offset = v
	}
	if v, err := strconv.Atoi(q.Get("status")); err == nil {
		query.StatusCode = v
	}

	logs, err := h.Store.GetRequestLogs(r.Context(), query)
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (h *Handlers) requestStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Store.GetRequestLogStats(r.Context())
	if err != nil {
		apierrors.WriteStoreError(w, h.Logger, err)
		return
	}

	// Error rates cover the last 24 hours.
	since := time.Now().UTC().Add(-24 * time.Hour)
	rates := make(map[string]float64, len(Areas))
	for _, area := range Areas {
		rate, err := h.Store.GetAreaErrorRate(r.Context(), area, since)
		if err != nil {
			apierrors.WriteStoreError(w, h.Logger, err)
			return
		}
		rates[area] = rate
	}
	apierrors.WriteJSON(w, http.StatusOK, map[string]any{"stats": stats, "error_rates": rates})
}
