package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultClientConfig(t *testing.T) {
	config := DefaultClientConfig()

	assert.Equal(t, 30*time.Second, config.Timeout)
	assert.Equal(t, 100, config.MaxIdleConns)
	assert.Equal(t, 10, config.MaxIdleConnsPerHost)
	assert.Equal(t, 90*time.Second, config.IdleConnTimeout)
	assert.False(t, config.DisableKeepAlives)
	assert.False(t, config.InsecureSkipVerify)
	assert.Equal(t, DefaultUserAgent, config.UserAgent)
	assert.Nil(t, config.Transport)
}

func TestClientOptions(t *testing.T) {
	tests := []struct {
		name   string
		option ClientOption
		check  func(t *testing.T, c ClientConfig)
	}{
		{"timeout", WithTimeout(5 * time.Second), func(t *testing.T, c ClientConfig) {
			assert.Equal(t, 5*time.Second, c.Timeout)
			assert.Equal(t, 100, c.MaxIdleConns)
		}},
		{"max idle conns", WithMaxIdleConns(50), func(t *testing.T, c ClientConfig) {
			assert.Equal(t, 50, c.MaxIdleConns)
		}},
		{"max idle conns per host", WithMaxIdleConnsPerHost(5), func(t *testing.T, c ClientConfig) {
			assert.Equal(t, 5, c.MaxIdleConnsPerHost)
		}},
		{"idle conn timeout", WithIdleConnTimeout(time.Minute), func(t *testing.T, c ClientConfig) {
			assert.Equal(t, time.Minute, c.IdleConnTimeout)
		}},
		{"without keep-alives", WithoutKeepAlives(), func(t *testing.T, c ClientConfig) {
			assert.True(t, c.DisableKeepAlives)
		}},
		{"user agent", WithUserAgent("billing-service/2.1"), func(t *testing.T, c ClientConfig) {
			assert.Equal(t, "billing-service/2.1", c.UserAgent)
		}},
		{"insecure", WithInsecureSkipVerify(), func(t *testing.T, c ClientConfig) {
			assert.True(t, c.InsecureSkipVerify)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultClientConfig()
			tt.option(&config)
			tt.check(t, config)
		})
	}
}

func TestNewHTTPClient(t *testing.T) {
	t.Run("default transport", func(t *testing.T) {
		client := NewHTTPClient(WithUserAgent(""))
		assert.Equal(t, 30*time.Second, client.Timeout)

		transport, ok := client.Transport.(*http.Transport)
		require.True(t, ok)
		assert.Equal(t, 100, transport.MaxIdleConns)
		assert.Nil(t, transport.TLSClientConfig)
	})

	t.Run("insecure transport", func(t *testing.T) {
		client := NewHTTPClient(WithUserAgent(""), WithInsecureSkipVerify())
		transport := client.Transport.(*http.Transport)
		require.NotNil(t, transport.TLSClientConfig)
		assert.True(t, transport.TLSClientConfig.InsecureSkipVerify)
	})

	t.Run("custom transport", func(t *testing.T) {
		custom := &http.Transport{}
		client := NewHTTPClient(WithTransport(custom), WithUserAgent(""))
		assert.Same(t, custom, client.Transport)
	})

	t.Run("with timeout helper", func(t *testing.T) {
		client := NewHTTPClientWithTimeout(3 * time.Second)
		assert.Equal(t, 3*time.Second, client.Timeout)
	})
}

func TestUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
	}))
	defer server.Close()

	client := NewHTTPClient()
	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, DefaultUserAgent, got)

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "explicit")
	resp, err = client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "explicit", got)
}

func TestReadBody(t *testing.T) {
	resp := &http.Response{Body: io.NopCloser(strings.NewReader(`{"access_token":"abc"}`))}
	body, err := ReadBody(resp, 64)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"abc"}`, string(body))

	resp = &http.Response{Body: io.NopCloser(strings.NewReader(strings.Repeat("x", 65)))}
	_, err = ReadBody(resp, 64)
	assert.Error(t, err)

	resp = &http.Response{Body: io.NopCloser(strings.NewReader("short"))}
	body, err = ReadBody(resp, 0)
	require.NoError(t, err)
	assert.Equal(t, "short", string(body))
}
