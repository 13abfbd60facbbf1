package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics from exchange sessions and message ciphers.
// Key exchange metrics are kept per algorithm name.
type Collector struct {
	// Session metrics
	sessionsActive atomic.Uint64
	sessionsTotal  atomic.Uint64
	sessionsFailed atomic.Uint64

	// Message metrics
	messagesEncrypted atomic.Uint64
	messagesDecrypted atomic.Uint64
	bytesEncrypted    atomic.Uint64
	bytesDecrypted    atomic.Uint64

	// Security metrics
	authFailures    atomic.Uint64
	malformedInputs atomic.Uint64
	rateLimited     atomic.Uint64

	// Error metrics
	encryptErrors atomic.Uint64
	decryptErrors atomic.Uint64

	// Performance histograms
	encryptLatency *Histogram
	decryptLatency *Histogram

	mu         sync.RWMutex
	algorithms map[string]*algorithmStats

	createdAt time.Time
	labels    Labels
}

// algorithmStats holds the key exchange counters for one algorithm.
type algorithmStats struct {
	keyGens          atomic.Uint64
	keyGenFailures   atomic.Uint64
	keyGenTimeouts   atomic.Uint64
	exchanges        atomic.Uint64
	exchangeFailures atomic.Uint64
	decaps           atomic.Uint64
	decapFailures    atomic.Uint64

	keyGenLatency   *Histogram
	exchangeLatency *Histogram
	decapLatency    *Histogram
}

func newAlgorithmStats() *algorithmStats {
	return &algorithmStats{
		keyGenLatency:   NewHistogram(KeyGenLatencyBuckets),
		exchangeLatency: NewHistogram(ExchangeLatencyBuckets),
		decapLatency:    NewHistogram(ExchangeLatencyBuckets),
	}
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		encryptLatency: NewHistogramIn(time.Microsecond, LatencyBuckets),
		decryptLatency: NewHistogramIn(time.Microsecond, LatencyBuckets),
		algorithms:     make(map[string]*algorithmStats),
		createdAt:      time.Now(),
		labels:         labels,
	}
}

// Default bucket configurations for histograms.
var (
	// KeyGenLatencyBuckets for key generation (milliseconds). RSA-2048 sits
	// in the upper buckets, ML-KEM in the lowest.
	KeyGenLatencyBuckets = []float64{0.1, 0.5, 1, 5, 10, 50, 100, 250, 500, 1000, 5000}

	// ExchangeLatencyBuckets for encapsulation and decapsulation (milliseconds).
	ExchangeLatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25}

	// LatencyBuckets for encrypt/decrypt operations (microseconds).
	LatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

func (c *Collector) stats(algorithm string) *algorithmStats {
	c.mu.RLock()
	s, ok := c.algorithms[algorithm]
	c.mu.RUnlock()
	if ok {
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok = c.algorithms[algorithm]; !ok {
		s = newAlgorithmStats()
		c.algorithms[algorithm] = s
	}
	return s
}

// --- Session Metrics ---

// SessionStarted increments active and total session counters.
func (c *Collector) SessionStarted() {
	c.sessionsActive.Add(1)
	c.sessionsTotal.Add(1)
}

// SessionEnded decrements active session counter.
func (c *Collector) SessionEnded() {
	for {
		current := c.sessionsActive.Load()
		if current == 0 {
			return
		}
		if c.sessionsActive.CompareAndSwap(current, current-1) {
			return
		}
	}
}

// SessionFailed records a session whose exchange did not complete.
func (c *Collector) SessionFailed() {
	c.sessionsFailed.Add(1)
}

// --- Key Exchange Metrics ---

// RecordKeyGeneration records a key generation attempt for algorithm.
// Failed attempts are counted but their latency is not observed.
func (c *Collector) RecordKeyGeneration(algorithm string, d time.Duration, err error) {
	s := c.stats(algorithm)
	if err != nil {
		s.keyGenFailures.Add(1)
		return
	}
	s.keyGens.Add(1)
	s.keyGenLatency.ObserveDuration(d)
}

// RecordKeyGenerationTimeout records a key generation that hit its
// iteration budget or deadline.
func (c *Collector) RecordKeyGenerationTimeout(algorithm string) {
	c.stats(algorithm).keyGenTimeouts.Add(1)
}

// RecordExchange records an encapsulation (or RSA secret transport).
func (c *Collector) RecordExchange(algorithm string, d time.Duration, err error) {
	s := c.stats(algorithm)
	if err != nil {
		s.exchangeFailures.Add(1)
		return
	}
	s.exchanges.Add(1)
	s.exchangeLatency.ObserveDuration(d)
}

// RecordDecapsulation records a decapsulation (or RSA secret recovery).
func (c *Collector) RecordDecapsulation(algorithm string, d time.Duration, err error) {
	s := c.stats(algorithm)
	if err != nil {
		s.decapFailures.Add(1)
		return
	}
	s.decaps.Add(1)
	s.decapLatency.ObserveDuration(d)
}

// --- Message Metrics ---

// RecordEncrypt records a sealed message of n plaintext bytes.
func (c *Collector) RecordEncrypt(n int, d time.Duration) {
	c.messagesEncrypted.Add(1)
	c.bytesEncrypted.Add(uint64(n))
	c.encryptLatency.ObserveDuration(d)
}

// RecordDecrypt records an opened message of n plaintext bytes.
func (c *Collector) RecordDecrypt(n int, d time.Duration) {
	c.messagesDecrypted.Add(1)
	c.bytesDecrypted.Add(uint64(n))
	c.decryptLatency.ObserveDuration(d)
}

// RecordAuthFailure increments the authentication failure counter.
func (c *Collector) RecordAuthFailure() {
	c.authFailures.Add(1)
}

// RecordMalformedInput increments the malformed ciphertext counter.
func (c *Collector) RecordMalformedInput() {
	c.malformedInputs.Add(1)
}

// RecordRateLimited increments the counter of throttled requests.
func (c *Collector) RecordRateLimited() {
	c.rateLimited.Add(1)
}

// RecordEncryptError increments encryption error counter.
func (c *Collector) RecordEncryptError() {
	c.encryptErrors.Add(1)
}

// RecordDecryptError increments decryption error counter.
func (c *Collector) RecordDecryptError() {
	c.decryptErrors.Add(1)
}

// --- Snapshot ---

// AlgorithmSnapshot is the key exchange view of one algorithm.
type AlgorithmSnapshot struct {
	KeyGenerations     uint64
	KeyGenFailures     uint64
	KeyGenTimeouts     uint64
	Exchanges          uint64
	ExchangeFailures   uint64
	Decapsulations     uint64
	DecapFailures      uint64
	KeyGenLatency      HistogramSummary
	ExchangeLatency    HistogramSummary
	DecapsulateLatency HistogramSummary
}

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	// Timestamp of the snapshot
	Timestamp time.Time

	// Uptime since collector creation
	Uptime time.Duration

	// Session metrics
	SessionsActive uint64
	SessionsTotal  uint64
	SessionsFailed uint64

	// Message metrics
	MessagesEncrypted uint64
	MessagesDecrypted uint64
	BytesEncrypted    uint64
	BytesDecrypted    uint64

	// Security metrics
	AuthFailures    uint64
	MalformedInputs uint64
	RateLimited     uint64

	// Error metrics
	EncryptErrors uint64
	DecryptErrors uint64

	// Histogram summaries
	EncryptLatency HistogramSummary
	DecryptLatency HistogramSummary

	// Per-algorithm key exchange metrics
	Algorithms map[string]AlgorithmSnapshot

	// Labels
	Labels Labels
}

// AlgorithmNames returns the algorithms present in the snapshot, sorted.
func (s Snapshot) AlgorithmNames() []string {
	names := make([]string, 0, len(s.Algorithms))
	for name := range s.Algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	algs := make(map[string]AlgorithmSnapshot, len(c.algorithms))
	for name, s := range c.algorithms {
		algs[name] = AlgorithmSnapshot{
			KeyGenerations:     s.keyGens.Load(),
			KeyGenFailures:     s.keyGenFailures.Load(),
			KeyGenTimeouts:     s.keyGenTimeouts.Load(),
			Exchanges:          s.exchanges.Load(),
			ExchangeFailures:   s.exchangeFailures.Load(),
			Decapsulations:     s.decaps.Load(),
			DecapFailures:      s.decapFailures.Load(),
			KeyGenLatency:      s.keyGenLatency.Summary(),
			ExchangeLatency:    s.exchangeLatency.Summary(),
			DecapsulateLatency: s.decapLatency.Summary(),
		}
	}
	uptime := time.Since(c.createdAt)
	c.mu.RUnlock()

	return Snapshot{
		Timestamp:         time.Now(),
		Uptime:            uptime,
		SessionsActive:    c.sessionsActive.Load(),
		SessionsTotal:     c.sessionsTotal.Load(),
		SessionsFailed:    c.sessionsFailed.Load(),
		MessagesEncrypted: c.messagesEncrypted.Load(),
		MessagesDecrypted: c.messagesDecrypted.Load(),
		BytesEncrypted:    c.bytesEncrypted.Load(),
		BytesDecrypted:    c.bytesDecrypted.Load(),
		AuthFailures:      c.authFailures.Load(),
		MalformedInputs:   c.malformedInputs.Load(),
		RateLimited:       c.rateLimited.Load(),
		EncryptErrors:     c.encryptErrors.Load(),
		DecryptErrors:     c.decryptErrors.Load(),
		EncryptLatency:    c.encryptLatency.Summary(),
		DecryptLatency:    c.decryptLatency.Summary(),
		Algorithms:        algs,
		Labels:            c.labels,
	}
}

// Reset clears all metrics (useful for testing).
func (c *Collector) Reset() {
	c.sessionsActive.Store(0)
	c.sessionsTotal.Store(0)
	c.sessionsFailed.Store(0)
	c.messagesEncrypted.Store(0)
	c.messagesDecrypted.Store(0)
	c.bytesEncrypted.Store(0)
	c.bytesDecrypted.Store(0)
	c.authFailures.Store(0)
	c.malformedInputs.Store(0)
	c.rateLimited.Store(0)
	c.encryptErrors.Store(0)
	c.decryptErrors.Store(0)
	c.encryptLatency.Reset()
	c.decryptLatency.Reset()

	c.mu.Lock()
	c.algorithms = make(map[string]*algorithmStats)
	c.createdAt = time.Now()
	c.mu.Unlock()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector.
// Creates one with default settings if not already initialized.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		if globalCollector == nil {
			globalCollector = NewCollector(Labels{"instance": "default"})
		}
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector.
// Should be called during initialization before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
