package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket(t *testing.T) {
	now := time.Unix(0, 0)
	b := newTokenBucket(2, 3)
	b.now = func() time.Time { return now }
	b.lastRefill = now

	for i := 0; i < 3; i++ {
		assert.True(t, b.allow(), "burst token %d", i)
	}
	assert.False(t, b.allow(), "bucket is empty")

	now = now.Add(500 * time.Millisecond)
	assert.True(t, b.allow(), "one token refilled")
	assert.False(t, b.allow())

	now = now.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, b.allow(), "refill is capped at the burst")
	}
	assert.False(t, b.allow())
}

func TestTokenBucketDisabled(t *testing.T) {
	b := newTokenBucket(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, b.allow())
	}
}

func TestClientLimiter(t *testing.T) {
	l := newClientLimiter(2)

	assert.True(t, l.acquire("a"))
	assert.True(t, l.acquire("a"))
	assert.False(t, l.acquire("a"))
	assert.True(t, l.acquire("b"), "clients are counted separately")

	l.release("a")
	assert.True(t, l.acquire("a"))

	l.release("a")
	l.release("a")
	l.release("a")
	l.release("b")
	assert.Empty(t, l.inFlight)

	unlimited := newClientLimiter(0)
	for i := 0; i < 10; i++ {
		assert.True(t, unlimited.acquire("a"))
	}
}

func TestKeyGenerationIsRateLimited(t *testing.T) {
	s, collector := newTestServer(t, Options{KeyGenRate: 0.001, KeyGenBurst: 2})

	for i := 0; i < 2; i++ {
		rec := do(t, s, http.MethodPost, "/api/generate-keypair", `{"algorithm":"kyber"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, s, http.MethodPost, "/api/full-exchange", `{"algorithm":"kyber"}`)
	requireError(t, rec, http.StatusTooManyRequests, "rate_limited")
	assert.Equal(t, uint64(1), collector.Snapshot().RateLimited)

	// Message endpoints are not throttled.
	rec = do(t, s, http.MethodGet, "/api/security-comparison", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestKeyGenerationPerClientLimit(t *testing.T) {
	s, collector := newTestServer(t, Options{MaxPerClient: 1})

	// Hold the only slot for the test client.
	client := clientAddr(httptest.NewRequest(http.MethodPost, "/", nil))
	require.True(t, s.clients.acquire(client))

	rec := do(t, s, http.MethodPost, "/api/generate-keypair", `{"algorithm":"kyber"}`)
	requireError(t, rec, http.StatusTooManyRequests, "too_many_requests")
	assert.Equal(t, uint64(1), collector.Snapshot().RateLimited)

	// Another address is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/api/generate-keypair", strings.NewReader(`{"algorithm":"kyber"}`))
	req.RemoteAddr = "198.51.100.7:4000"
	other := httptest.NewRecorder()
	s.Handler().ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code, other.Body.String())

	s.clients.release(client)
	rec = do(t, s, http.MethodPost, "/api/generate-keypair", `{"algorithm":"kyber"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:51234"
	assert.Equal(t, "203.0.113.9", clientAddr(req))

	req.RemoteAddr = "not-an-address"
	assert.Equal(t, "not-an-address", clientAddr(req))
}
