package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/avoss/meetscribe/internal/api/middleware"
	"github.com/avoss/meetscribe/internal/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_PlaintextKey(t *testing.T) {
	auth := mw.NewAuth(config.AuthConfig{APIKey: "secret"})
	protected := auth.Require(okHandler())

	cases := []struct {
		name string
		key  string
		want int
	}{
		{name: "valid key", key: "secret", want: http.StatusOK},
		{name: "wrong key", key: "wrong", want: http.StatusUnauthorized},
		{name: "missing key", key: "", want: http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
			if tc.key != "" {
				req.Header.Set("X-API-Key", tc.key)
			}
			rr := httptest.NewRecorder()
			protected.ServeHTTP(rr, req)
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestAuth_BcryptHashTakesPrecedence(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	auth := mw.NewAuth(config.AuthConfig{APIKey: "something-else", APIKeyHash: string(hash)})
	protected := auth.Require(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
	req.Header.Set("X-API-Key", "secret")
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	// The plaintext key is ignored once a hash is configured.
	req = httptest.NewRequest(http.MethodGet, "/status/x", nil)
	req.Header.Set("X-API-Key", "something-else")
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogger_PassesThroughResponse(t *testing.T) {
	h := mw.Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, "short and stout", rr.Body.String())
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	h := mw.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("handler lost it")
	}))

	req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "An unexpected error occurred")
}

// countingCache returns scripted counter values for IncrWithExpiry.
type countingCache struct {
	count int64
	err   error
}

func (c *countingCache) Ping(context.Context) error { return nil }
func (c *countingCache) SetJobStatus(context.Context, string, string, time.Duration) error {
	return nil
}
func (c *countingCache) GetJobStatus(context.Context, string) (string, bool, error) {
	return "", false, nil
}
func (c *countingCache) IncrWithExpiry(context.Context, string, time.Duration) (int64, error) {
	if c.err != nil {
		return 0, c.err
	}
	c.count++
	return c.count, nil
}
func (c *countingCache) Close() error { return nil }

func TestRateLimit_BlocksAboveLimit(t *testing.T) {
	rl := mw.NewRateLimit(&countingCache{}, 3)
	h := rl.Limit(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		require.Equal(t, http.StatusOK, rr.Code, "request %d should pass", i+1)
		assert.Equal(t, "3", rr.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
	req.RemoteAddr = "10.0.0.1:54321"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_FailsOpenOnCacheError(t *testing.T) {
	rl := mw.NewRateLimit(&countingCache{err: errors.New("redis down")}, 1)
	h := rl.Limit(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/status/x", nil)
		req.RemoteAddr = "10.0.0.1:54321"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	}
}
