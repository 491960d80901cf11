package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports broker status
// @Summary Health check
// @Description Reports the token store backend, Redis connectivity and the token endpoint circuit breaker
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Failure 503 {object} map[string]interface{} "A backing service is unreachable"
// @Router /health [get]
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
		"uptime":    time.Since(h.startTime).Round(time.Second).String(),
		"cache":     h.cacheType,
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		if err := h.redis.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			health["status"] = "unhealthy"
			health["redis"] = map[string]interface{}{"status": "unreachable", "error": err.Error()}
		} else {
			health["redis"] = map[string]interface{}{"status": "ok"}
		}
	}

	if h.breaker != nil {
		stats := h.breaker.Stats()
		health["token_endpoint"] = stats
		// cached tokens are still served while the breaker is open
		if stats.State == "open" && status == http.StatusOK {
			health["status"] = "degraded"
		}
	}

	h.sendJSONResponse(w, status, health)
}
