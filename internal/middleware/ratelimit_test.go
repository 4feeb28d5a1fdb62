package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{"strips the ephemeral port", "203.0.113.7:49152", "203.0.113.7"},
		{"same host different port shares a key", "203.0.113.7:49153", "203.0.113.7"},
		{"ipv6 with port", "[2001:db8::1]:8080", "2001:db8::1"},
		{"bare ip passes through", "203.0.113.7", "203.0.113.7"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/code/", nil)
			r.RemoteAddr = tc.remoteAddr
			assert.Equal(t, tc.expected, clientKey(r))
		})
	}
}

func TestIPRateLimitMiddlewareBypass(t *testing.T) {
	t.Run("a non-positive limit disables the limiter", func(t *testing.T) {
		m := NewIPRateLimitMiddleware(nil, 0)

		called := false
		h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/code/", nil))

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	})
}
