package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"avif-everywhere/internal/database"
	"avif-everywhere/internal/logging"
	"avif-everywhere/internal/variant"
)

// RegisterAssetRequest registers an uploaded file. Path is absolute or
// relative to the uploads directory.
type RegisterAssetRequest struct {
	Path string `json:"path"`
}

// RegisterAssetResponse is returned by RegisterAsset.
type RegisterAssetResponse struct {
	Asset     *database.Asset `json:"asset"`
	Scheduled bool            `json:"scheduled"`
}

// resolveUpload returns the absolute path of p inside the uploads directory.
func (h *Handlers) resolveUpload(p string) (string, bool) {
	root := filepath.Clean(h.opts.UploadsDir)
	if !filepath.IsAbs(p) {
		p = filepath.Join(root, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return p, true
}

// RegisterAsset records an upload and schedules its delayed conversion.
// POST /api/assets
func (h *Handlers) RegisterAsset(w http.ResponseWriter, r *http.Request) {
	var req RegisterAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeJSONError(w, "path is required", http.StatusBadRequest)
		return
	}

	path, ok := h.resolveUpload(req.Path)
	if !ok {
		writeJSONError(w, "path must be inside the uploads directory", http.StatusBadRequest)
		return
	}
	if variant.IsIntermediateSize(filepath.Base(path)) {
		writeJSONError(w, "resized copies are not registered", http.StatusBadRequest)
		return
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		writeJSONError(w, "file not found", http.StatusNotFound)
		return
	}

	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		logging.Warn("Failed to detect type of %s: %v", path, err)
		writeJSONError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	mime := mtype.String()

	asset, err := h.store.CreateAsset(r.Context(), path, mime)
	if err != nil {
		logging.Error("Failed to register asset %s: %v", path, err)
		writeJSONError(w, "failed to register asset", http.StatusInternalServerError)
		return
	}

	scheduled := h.uploads.ScheduleUpload(r.Context(), asset.ID, mime)
	writeJSONStatus(w, http.StatusCreated, RegisterAssetResponse{Asset: asset, Scheduled: scheduled})
}

// DeleteAsset removes an asset's variants and its record.
// DELETE /api/assets/{id}
func (h *Handlers) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	h.uploads.Cancel(id)

	removed, err := h.engine.Purge(variant.NewSession(r.Context()), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	if err := h.store.DeleteAsset(r.Context(), id); err != nil {
		if errors.Is(err, variant.ErrAssetNotFound) {
			writeEngineError(w, err)
			return
		}
		logging.Error("Failed to delete asset %d: %v", id, err)
		writeJSONError(w, "failed to delete asset", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, http.StatusOK, map[string]interface{}{
		"deleted":      id,
		"filesRemoved": removed,
	})
}

// GetVariants returns the recorded variants of an asset keyed by format.
// GET /api/assets/{id}/variants
func (h *Handlers) GetVariants(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	records, err := h.engine.Variants(r.Context(), id)
	if err != nil {
		logging.Error("Failed to load variants for asset %d: %v", id, err)
		writeJSONError(w, "failed to load variants", http.StatusInternalServerError)
		return
	}

	byFormat := make(map[variant.Format]variant.VariantRecord, len(records))
	for _, rec := range records {
		byFormat[rec.Format] = rec
	}
	writeJSONStatus(w, http.StatusOK, byFormat)
}

// ConvertAsset runs a synchronous conversion.
// POST /api/assets/{id}/convert?mode=compare|skip
func (h *Handlers) ConvertAsset(w http.ResponseWriter, r *http.Request) {
	id, ok := assetID(r)
	if !ok {
		writeJSONError(w, "invalid asset id", http.StatusBadRequest)
		return
	}

	mode := variant.ModeCompare
	if raw := r.URL.Query().Get("mode"); raw != "" {
		if mode, ok = variant.ParseMode(raw); !ok {
			writeJSONError(w, "mode must be compare or skip", http.StatusBadRequest)
			return
		}
	}

	report, err := h.engine.Convert(variant.NewSession(r.Context()), id, mode)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusOK, report)
}
