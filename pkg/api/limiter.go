package api

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"
)

var (
	// ErrRateLimited is returned when the key generation token bucket is empty.
	ErrRateLimited = errors.New("api: key generation rate exceeded")

	// ErrTooManyRequests is returned when a client already has the maximum
	// number of key generation requests in flight.
	ErrTooManyRequests = errors.New("api: too many concurrent requests from client")
)

// clientLimiter caps in-flight requests per client address.
type clientLimiter struct {
	mu       sync.Mutex
	inFlight map[string]int
	limit    int
}

func newClientLimiter(limit int) *clientLimiter {
	return &clientLimiter{inFlight: make(map[string]int), limit: limit}
}

// acquire reports whether client may start another request and, if so,
// counts it.
func (l *clientLimiter) acquire(client string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[client] >= l.limit {
		return false
	}
	l.inFlight[client]++
	return true
}

func (l *clientLimiter) release(client string) {
	if l.limit <= 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.inFlight[client] > 0 {
		l.inFlight[client]--
		if l.inFlight[client] == 0 {
			delete(l.inFlight, client)
		}
	}
}

// tokenBucket admits rate requests per second with bursts of up to burst.
type tokenBucket struct {
	mu         sync.Mutex
	rate       float64
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	return &tokenBucket{
		rate:       rate,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// allow consumes one token if available.
func (b *tokenBucket) allow() bool {
	if b.rate <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.rate
	if b.tokens > b.burst {
		b.tokens = b.burst
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// limitKeyGen guards handlers that generate key pairs.
func (s *Server) limitKeyGen(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !s.clients.acquire(client) {
			s.collector.RecordRateLimited()
			s.writeError(w, r, ErrTooManyRequests)
			return
		}
		defer s.clients.release(client)

		if !s.keyGenBucket.allow() {
			s.collector.RecordRateLimited()
			s.writeError(w, r, ErrRateLimited)
			return
		}
		next(w, r)
	}
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
