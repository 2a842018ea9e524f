package handler

import (
	"net/http"

	"github.com/pitchside/pitchside/internal/activity"
	"github.com/pitchside/pitchside/internal/blob"
)

// SystemHandler serves the operational endpoints: health probes and the
// activity log.
type SystemHandler struct {
	blobs    blob.Store
	recorder *activity.Recorder
	version  string
}

// NewSystemHandler creates the system handler.
func NewSystemHandler(blobs blob.Store, recorder *activity.Recorder, version string) *SystemHandler {
	return &SystemHandler{blobs: blobs, recorder: recorder, version: version}
}

// Health is the liveness probe.
// GET /healthz
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

// Ready is the readiness probe; it fails when the blob store is
// unreachable.
// GET /readyz
func (h *SystemHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.blobs.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ActivityLog returns the audit trail, newest first. The route is
// restricted to super-admins via middleware.
// GET /activity-log
func (h *SystemHandler) ActivityLog(w http.ResponseWriter, r *http.Request) {
	entries, err := h.recorder.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load activity log")
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}
