// Package circuitbreaker protects the token endpoint using Sony's gobreaker
package circuitbreaker

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/common/logging"
)

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before transitioning to half-open
	Timeout time.Duration
	// MaxConcurrentRequests is the number of requests allowed through while half-open
	MaxConcurrentRequests int
	// Interval is the rolling window after which closed-state counts reset
	Interval time.Duration
}

// DefaultConfig returns the configuration used for token endpoints
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
		Interval:              time.Minute,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	if c.Interval < 0 {
		return fmt.Errorf("Interval must not be negative, got %v", c.Interval)
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of breaker counters, served by the health endpoint
type Stats struct {
	Name                string `json:"name"`
	State               string `json:"state"`
	Requests            uint32 `json:"requests"`
	Failures            uint32 `json:"failures"`
	ConsecutiveFailures uint32 `json:"consecutive_failures"`
}

// GoBreakerAdapter wraps Sony's gobreaker
type GoBreakerAdapter struct {
	name    string
	config  Config
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger
}

// NewGoBreaker creates a breaker. An invalid config falls back to DefaultConfig.
func NewGoBreaker(name string, config Config, logger logging.Logger) *GoBreakerAdapter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.Field{Key: "error", Value: err.Error()},
			logging.Field{Key: "name", Value: name},
		)
		config = DefaultConfig()
	}

	g := &GoBreakerAdapter{
		name:   name,
		config: config,
		logger: logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(g.settings())
	return g
}

func (g *GoBreakerAdapter) settings() gobreaker.Settings {
	return gobreaker.Settings{
		Name:        g.name,
		MaxRequests: uint32(g.config.MaxConcurrentRequests),
		Interval:    g.config.Interval,
		Timeout:     g.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(g.config.MaxFailures)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			g.logger.Info("Circuit breaker state changed",
				logging.Field{Key: "breaker", Value: name},
				logging.Field{Key: "from", Value: from.String()},
				logging.Field{Key: "to", Value: to.String()},
			)
		},
		IsSuccessful: IsSuccessful,
	}
}

// IsSuccessful decides what counts against the breaker. A request rejected
// before it was sent, an OAuth error body or a non-5xx status means the
// server is healthy. Only 5xx replies and transport failures count.
func IsSuccessful(err error) bool {
	if err == nil {
		return true
	}

	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		return false
	}

	switch appErr.Type {
	case errors.ErrTypeValidation:
		return true
	case errors.ErrTypeAuth:
		if appErr.Code != "" {
			return true
		}
		status, ok := appErr.Context[errors.StatusCodeKey].(int)
		return ok && status < http.StatusInternalServerError
	}

	return false
}

// Execute runs fn within the breaker. A rejected call returns a transport
// error without invoking fn.
func (g *GoBreakerAdapter) Execute(fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if err == gobreaker.ErrOpenState {
		return errors.TransportError(fmt.Sprintf("circuit breaker '%s' is open", g.name), err)
	}
	if err == gobreaker.ErrTooManyRequests {
		return errors.TransportError(fmt.Sprintf("circuit breaker '%s' has too many requests", g.name), err)
	}

	return err
}

// Name returns the breaker name
func (g *GoBreakerAdapter) Name() string {
	return g.name
}

// State returns the current state of the circuit breaker
func (g *GoBreakerAdapter) State() State {
	switch g.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Stats returns current statistics
func (g *GoBreakerAdapter) Stats() Stats {
	counts := g.breaker.Counts()

	return Stats{
		Name:                g.name,
		State:               g.State().String(),
		Requests:            counts.Requests,
		Failures:            counts.TotalFailures,
		ConsecutiveFailures: counts.ConsecutiveFailures,
	}
}

// IsOpen returns true if the circuit breaker is open
func (g *GoBreakerAdapter) IsOpen() bool {
	return g.breaker.State() == gobreaker.StateOpen
}

// Reset replaces the breaker with a fresh closed one; gobreaker has no reset.
func (g *GoBreakerAdapter) Reset() {
	g.breaker = gobreaker.NewCircuitBreaker(g.settings())
}
