package handlers

import (
	"net/http"

	"avif-everywhere/internal/startup"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type versionResponse struct {
	startup.BuildInfo
	VipsVersion string `json:"vipsVersion"`
}

// GetVersion returns build information and the linked libvips version.
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	vips := h.opts.VipsVersion
	if vips == "" {
		vips = "unavailable"
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONStatus(w, http.StatusOK, versionResponse{BuildInfo: startup.GetBuildInfo(), VipsVersion: vips})
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
