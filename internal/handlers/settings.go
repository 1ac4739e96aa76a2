package handlers

import (
	"encoding/json"
	"net/http"

	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/variant"
)

// GetSettings returns the effective settings.
// GET /api/settings
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		logging.Error("Failed to load settings: %v", err)
		writeJSONError(w, "failed to load settings", http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusOK, settings)
}

// UpdateSettings replaces the saved settings.
// PUT /api/settings
func (h *Handlers) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings variant.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if settings.MaxVariantBytes < 0 {
		writeJSONError(w, "maxVariantBytes must not be negative", http.StatusBadRequest)
		return
	}

	if err := h.store.SaveSettings(r.Context(), settings); err != nil {
		logging.Error("Failed to save settings: %v", err)
		writeJSONError(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	logging.Info("Settings updated: enabled=%v maxVariantBytes=%d", settings.Enabled, settings.MaxVariantBytes)
	writeJSONStatus(w, http.StatusOK, settings)
}
