package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/pitchside/pitchside/internal/blob"
	"github.com/pitchside/pitchside/internal/model"
	"github.com/pitchside/pitchside/internal/server/middleware"
)

// SettingsHandler serves the site settings object. Settings are a single
// JSON object blob; unlike the content collections there is no per-item
// addressing, the whole object is read and replaced.
type SettingsHandler struct {
	blobs    blob.Store
	onChange ChangeListener
}

// NewSettingsHandler creates the settings handler. onChange may be nil.
func NewSettingsHandler(blobs blob.Store, onChange ChangeListener) *SettingsHandler {
	return &SettingsHandler{blobs: blobs, onChange: onChange}
}

// Get returns the settings object. Anonymous callers get a copy with
// credential-bearing keys stripped; authenticated admins see everything.
// GET /site-settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, _, err := h.blobs.Get(r.Context(), model.KeySettings)
	if errors.Is(err, blob.ErrNotFound) {
		writeSuccess(w, http.StatusOK, map[string]any{})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	var settings map[string]any
	if err := json.Unmarshal(data, &settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings")
		return
	}
	if middleware.UserFrom(r.Context()) == nil {
		settings = stripSecretKeys(settings)
	}
	writeSuccess(w, http.StatusOK, settings)
}

// Put replaces the settings object. The route requires authentication and
// the settings permission via middleware.
// PUT /site-settings
func (h *SettingsHandler) Put(w http.ResponseWriter, r *http.Request) {
	var settings map[string]any
	if err := readJSON(r, &settings); err != nil || settings == nil {
		writeError(w, http.StatusBadRequest, "Settings must be a JSON object")
		return
	}
	data, err := json.Marshal(settings)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	if err := h.write(r, data); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings")
		return
	}
	if h.onChange != nil {
		h.onChange(r.Context(), middleware.UserFrom(r.Context()), "settings", "update", model.KeySettings, "site settings")
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Success: true, Message: "Settings saved"})
}

func (h *SettingsHandler) write(r *http.Request, data []byte) error {
	const attempts = 3
	var lastErr error
	for i := 0; i < attempts; i++ {
		_, version, err := h.blobs.Get(r.Context(), model.KeySettings)
		if errors.Is(err, blob.ErrNotFound) {
			version = 0
		} else if err != nil {
			return err
		}
		if _, err := h.blobs.Put(r.Context(), model.KeySettings, data, version); err != nil {
			if errors.Is(err, blob.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

// stripSecretKeys removes keys that carry credentials from the public view
// of the settings object: anything starting with "smtp" or containing
// "secret", "token", "apikey" or "password", case-insensitively.
func stripSecretKeys(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		if isSecretKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}

func isSecretKey(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "smtp") {
		return true
	}
	for _, marker := range []string{"secret", "token", "apikey", "password"} {
		if strings.Contains(k, marker) {
			return true
		}
	}
	return false
}
