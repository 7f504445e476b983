package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limited(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()
	return RateLimiter(t.Context(), RateLimitConfig{RequestsPerSecond: rps, Burst: burst})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))
}

func hit(h http.Handler, remote string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/query", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimiter_WithinBurst(t *testing.T) {
	h := limited(t, 100, 10)
	for range 5 {
		rec := hit(h, "10.0.0.1:1000")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRateLimiter_OverBurst(t *testing.T) {
	h := limited(t, 1, 2)
	for range 2 {
		require.Equal(t, http.StatusOK, hit(h, "10.0.0.1:1000").Code)
	}

	rec := hit(h, "10.0.0.1:2000")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.InDelta(t, 429, body["code"], 0.001)
	assert.Equal(t, "RateLimited", body["kind"])

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, hit(h, "10.0.0.2:1000").Code)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remote, xff, want string
	}{
		{"192.168.1.1:12345", "", "192.168.1.1"},
		{"[::1]:12345", "", "::1"},
		{"10.0.0.1:1234", "203.0.113.50", "10.0.0.1"},
		{"no-port", "", "no-port"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remote
		if tt.xff != "" {
			req.Header.Set("X-Forwarded-For", tt.xff)
		}
		assert.Equal(t, tt.want, clientIP(req), tt.remote)
	}
}
