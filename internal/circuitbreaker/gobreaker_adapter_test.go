package circuitbreaker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oauth-token-cache/internal/common/errors"
	"oauth-token-cache/internal/common/logging"
)

func testConfig(maxFailures int, timeout time.Duration) Config {
	return Config{
		MaxFailures:           maxFailures,
		Timeout:               timeout,
		MaxConcurrentRequests: 1,
		Interval:              time.Minute,
	}
}

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.GetGlobalLogger()

	t.Run("basic operation", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", testConfig(2, 100*time.Millisecond), logger)
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "test-basic", cb.Name())

		err := cb.Execute(func() error { return nil })
		assert.NoError(t, err)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("circuit opens after transport failures", func(t *testing.T) {
		cb := NewGoBreaker("test-failures", testConfig(3, time.Second), logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(func() error {
				return errors.TransportError(fmt.Sprintf("failure %d", i), nil)
			})
			assert.Error(t, err)
		}

		assert.Equal(t, StateOpen, cb.State())
		assert.True(t, cb.IsOpen())

		err := cb.Execute(func() error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
		assert.Contains(t, err.Error(), "open")
	})

	t.Run("oauth and validation errors do not open the circuit", func(t *testing.T) {
		cb := NewGoBreaker("test-client-errors", testConfig(2, time.Second), logger)

		for i := 0; i < 5; i++ {
			err := cb.Execute(func() error {
				return errors.OAuthError("invalid_client", "bad secret")
			})
			assert.True(t, errors.IsType(err, errors.ErrTypeAuth))

			err = cb.Execute(func() error {
				return errors.BlankArgument("clientId")
			})
			assert.True(t, errors.IsType(err, errors.ErrTypeValidation))
		}

		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, uint32(0), cb.Stats().Failures)
	})

	t.Run("half-open then closed", func(t *testing.T) {
		cb := NewGoBreaker("test-half-open", testConfig(2, 50*time.Millisecond), logger)

		for i := 0; i < 2; i++ {
			_ = cb.Execute(func() error { return fmt.Errorf("failure") })
		}
		require.Equal(t, StateOpen, cb.State())

		time.Sleep(70 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("reset", func(t *testing.T) {
		cb := NewGoBreaker("test-reset", testConfig(1, time.Hour), logger)
		_ = cb.Execute(func() error { return fmt.Errorf("failure") })
		require.True(t, cb.IsOpen())

		cb.Reset()
		assert.Equal(t, StateClosed, cb.State())
		assert.NoError(t, cb.Execute(func() error { return nil }))
	})

	t.Run("stats", func(t *testing.T) {
		cb := NewGoBreaker("test-stats", testConfig(10, time.Second), logger)
		_ = cb.Execute(func() error { return nil })
		_ = cb.Execute(func() error { return fmt.Errorf("failure") })

		stats := cb.Stats()
		assert.Equal(t, "test-stats", stats.Name)
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, uint32(2), stats.Requests)
		assert.Equal(t, uint32(1), stats.Failures)
		assert.Equal(t, uint32(1), stats.ConsecutiveFailures)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := NewGoBreaker("test-invalid", Config{}, nil)
		assert.Equal(t, DefaultConfig(), cb.config)
	})
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max failures", func(c *Config) { c.MaxFailures = 0 }},
		{"timeout", func(c *Config) { c.Timeout = 0 }},
		{"concurrent requests", func(c *Config) { c.MaxConcurrentRequests = -1 }},
		{"interval", func(c *Config) { c.Interval = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestIsSuccessful(t *testing.T) {
	assert.True(t, IsSuccessful(nil))
	assert.True(t, IsSuccessful(errors.OAuthError("invalid_grant", "")))
	assert.True(t, IsSuccessful(fmt.Errorf("wrapped: %w", errors.ValidationError("bad"))))
	assert.False(t, IsSuccessful(errors.TransportError("timeout", nil)))
	assert.False(t, IsSuccessful(errors.AuthError("Non-success status code: 503. Response body: ")))
	assert.False(t, IsSuccessful(fmt.Errorf("plain")))

	status := func(code int) error {
		return errors.AuthError("Non-success status code").WithContext(errors.StatusCodeKey, code)
	}
	assert.True(t, IsSuccessful(status(401)))
	assert.True(t, IsSuccessful(status(404)))
	assert.False(t, IsSuccessful(status(500)))
	assert.False(t, IsSuccessful(fmt.Errorf("wrapped: %w", status(503))))
}

func TestGoBreaker_OpensOnServerStatusErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxFailures = 2
	breaker := NewGoBreaker("status", cfg, nil)

	serverError := errors.AuthError("Non-success status code: 503. Response body: ").WithContext(errors.StatusCodeKey, 503)
	for i := 0; i < cfg.MaxFailures; i++ {
		assert.Equal(t, serverError, breaker.Execute(func() error { return serverError }))
	}

	err := breaker.Execute(func() error {
		t.Fatal("open breaker must not run the call")
		return nil
	})
	assert.True(t, errors.IsType(err, errors.ErrTypeTransport))
}
