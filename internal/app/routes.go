package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"oauth-token-cache/internal/handlers"
	"oauth-token-cache/internal/middleware"
)

// SetupRoutes configures all HTTP routes for the token broker. A nil
// registry leaves /metrics unregistered.
func SetupRoutes(router *mux.Router, h *handlers.Handlers, registry *prometheus.Registry) {
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")

	if registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	// Token endpoints
	api := router.PathPrefix("/api/tokens").Subrouter()
	api.HandleFunc("/client-credentials", h.ClientCredentialsToken).Methods("POST")
	api.HandleFunc("/password", h.PasswordToken).Methods("POST")
	api.HandleFunc("/refresh", h.RefreshToken).Methods("POST")
	api.HandleFunc("/invalidate", h.InvalidateToken).Methods("POST")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not found", http.StatusNotFound)
	})
}
