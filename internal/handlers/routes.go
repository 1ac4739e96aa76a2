package handlers

import (
	"github.com/gorilla/mux"
)

// Register adds all routes to r.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")
	r.Handle("/metrics", metricsHandler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/assets", h.RegisterAsset).Methods("POST")
	api.HandleFunc("/assets/{id:[0-9]+}", h.DeleteAsset).Methods("DELETE")
	api.HandleFunc("/assets/{id:[0-9]+}/variants", h.GetVariants).Methods("GET")
	api.HandleFunc("/assets/{id:[0-9]+}/convert", h.ConvertAsset).Methods("POST")

	api.HandleFunc("/scan", h.Scan).Methods("GET")
	api.HandleFunc("/generate", h.Generate).Methods("POST")

	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")

	api.HandleFunc("/variant-url", h.GetVariantURL).Methods("GET")
	api.HandleFunc("/capabilities", h.GetCapabilities).Methods("GET")
}
