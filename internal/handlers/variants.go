package handlers

import (
	"net/http"

	"avif-everywhere/internal/variant"
)

// CapabilitiesResponse is the diagnostics view of the host.
type CapabilitiesResponse struct {
	variant.Capabilities
	VipsVersion     string `json:"vipsVersion,omitempty"`
	UploadsWritable bool   `json:"uploadsWritable"`
	Enabled         bool   `json:"enabled"`
}

// GetCapabilities reports which encoders can run and whether variants can be
// written.
// GET /api/capabilities
func (h *Handlers) GetCapabilities(w http.ResponseWriter, r *http.Request) {
	resp := CapabilitiesResponse{
		Capabilities: h.engine.Capabilities(),
		VipsVersion:  h.opts.VipsVersion,
	}
	if h.opts.UploadsWritable != nil {
		resp.UploadsWritable = h.opts.UploadsWritable()
	}
	if settings, err := h.store.GetSettings(r.Context()); err == nil {
		resp.Enabled = settings.Enabled
	}
	writeJSONStatus(w, http.StatusOK, resp)
}

// GetVariantURL guesses the variant URL for an image URL.
// GET /api/variant-url?url=...&format=avif|webp
func (h *Handlers) GetVariantURL(w http.ResponseWriter, r *http.Request) {
	imageURL := r.URL.Query().Get("url")
	if imageURL == "" {
		writeJSONError(w, "url is required", http.StatusBadRequest)
		return
	}

	format := variant.FormatAVIF
	if raw := r.URL.Query().Get("format"); raw != "" {
		format = variant.Format(raw)
		if !format.Valid() {
			writeJSONError(w, "format must be avif or webp", http.StatusBadRequest)
			return
		}
	}

	guessed, ok := h.resolver.GuessVariantURL(variant.NewSession(r.Context()), imageURL, format)
	if !ok {
		writeJSONError(w, "no variant found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, http.StatusOK, map[string]string{
		"url":    guessed,
		"format": string(format),
	})
}
