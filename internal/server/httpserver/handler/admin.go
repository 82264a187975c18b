package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/tokpool/internal/infra/buildinfo"
)

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	info := buildinfo.Get()
	h.writeJSON(w, r, http.StatusOK, StatusSummary{
		Status:     "running",
		Version:    info.Version,
		Commit:     info.Commit,
		GoVersion:  info.GoVersion,
		TokenCount: snap.Count,
		Time:       time.Now().UTC().Format(time.RFC3339),
	})
}

// handleGCTrigger handles POST /admin/v1/gc/trigger.
func (h *Handler) handleGCTrigger(w http.ResponseWriter, r *http.Request) {
	count, err := h.store.SweepExpired(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	h.log(r).Info("expiry sweep triggered", "cleaned_count", count)
	h.writeJSON(w, r, http.StatusOK, GCTriggerResponse{
		CleanedCount: count,
		TriggeredAt:  time.Now().UTC().Format(time.RFC3339),
	})
}
