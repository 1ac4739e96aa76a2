package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"avif-everywhere/internal/batch"
	"avif-everywhere/internal/database"
	"avif-everywhere/internal/logging"
)

// maxBatchIDs bounds a single generate request.
const maxBatchIDs = 500

// ScanResponse lists assets without a full set of variants.
type ScanResponse struct {
	Count  int                     `json:"count"`
	Assets []database.MissingAsset `json:"assets"`
}

// GenerateRequest lists the assets to convert.
type GenerateRequest struct {
	IDs []int64 `json:"ids"`
}

// Scan lists assets that still need variants.
// GET /api/scan
func (h *Handlers) Scan(w http.ResponseWriter, r *http.Request) {
	missing, err := h.batch.Scan(r.Context())
	if err != nil {
		logging.Error("Scan failed: %v", err)
		writeJSONError(w, "failed to scan assets", http.StatusInternalServerError)
		return
	}
	if missing == nil {
		missing = []database.MissingAsset{}
	}
	writeJSONStatus(w, http.StatusOK, ScanResponse{Count: len(missing), Assets: missing})
}

// Generate converts the given assets and reports per-asset results.
// POST /api/generate
func (h *Handlers) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.IDs) == 0 {
		writeJSONError(w, "ids array is required", http.StatusBadRequest)
		return
	}
	if len(req.IDs) > maxBatchIDs {
		writeJSONError(w, "too many ids in one request", http.StatusRequestEntityTooLarge)
		return
	}

	summary, err := h.batch.Run(r.Context(), req.IDs)
	switch {
	case errors.Is(err, batch.ErrBusy):
		writeJSONError(w, err.Error(), http.StatusConflict)
		return
	case err != nil && summary == nil:
		writeEngineError(w, err)
		return
	case err != nil:
		logging.Warn("Batch interrupted: %v", err)
	}
	writeJSONStatus(w, http.StatusOK, summary)
}
