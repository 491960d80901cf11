package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"oauth-token-cache/internal/circuitbreaker"
	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/common/logging"
	"oauth-token-cache/internal/models"
	"oauth-token-cache/internal/oauth2"
)

// TokenBroker is the caching client the HTTP API fronts.
type TokenBroker interface {
	oauth2.Client
	Invalidate(ctx context.Context, key string) error
	InvalidateGrant(ctx context.Context, req models.GrantRequest) error
}

// HealthPinger reports whether a backing service is reachable.
type HealthPinger interface {
	Health(ctx context.Context) error
}

type Handlers struct {
	tokens    TokenBroker
	breaker   *circuitbreaker.GoBreakerAdapter
	redis     HealthPinger
	cacheType string
	startTime time.Time
	logger    logging.Logger
}

// Option configures optional handler dependencies
type Option func(*Handlers)

// WithBreaker reports the token endpoint breaker in /health
func WithBreaker(b *circuitbreaker.GoBreakerAdapter) Option {
	return func(h *Handlers) {
		h.breaker = b
	}
}

// WithRedis reports Redis connectivity in /health
func WithRedis(p HealthPinger) Option {
	return func(h *Handlers) {
		h.redis = p
	}
}

// WithCacheType names the token store backend in /health
func WithCacheType(t string) Option {
	return func(h *Handlers) {
		h.cacheType = t
	}
}

func New(tokens TokenBroker, opts ...Option) *Handlers {
	h := &Handlers{
		tokens:    tokens,
		cacheType: "local",
		startTime: time.Now(),
		logger:    logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "handlers"}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ErrorResponse is the body of every failed API call
type ErrorResponse struct {
	Error            string                 `json:"error"`
	Message          string                 `json:"message"`
	Code             string                 `json:"code,omitempty"`
	ErrorDescription string                 `json:"error_description,omitempty"`
	Context          map[string]interface{} `json:"context,omitempty"`
}

func (h *Handlers) sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", err)
	}
}

// sendError writes err with the status its type maps to. Credentials in the
// error context are never echoed back.
func (h *Handlers) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := ErrorResponse{
		Error:   string(errors.GetType(err)),
		Message: err.Error(),
	}

	if appErr, ok := err.(*errors.AppError); ok {
		resp.Message = appErr.Message
		resp.Code = appErr.Code
		resp.ErrorDescription = errors.Description(err)
		if arg, ok := appErr.Context["argument"]; ok {
			resp.Context = map[string]interface{}{"argument": arg}
		}
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("Token request failed", err)
	}

	h.sendJSONResponse(w, status, resp)
}

func statusFor(err error) int {
	switch errors.GetType(err) {
	case errors.ErrTypeValidation:
		return http.StatusBadRequest
	case errors.ErrTypeAuth:
		return http.StatusUnauthorized
	case errors.ErrTypeTransport:
		return http.StatusBadGateway
	case errors.ErrTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
