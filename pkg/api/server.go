// Package api serves the key exchange engine over HTTP/JSON.
//
// Every byte value crosses the boundary as lowercase hex, except encrypted
// messages, which use the hex(nonce) ":" base64(ciphertext ‖ tag) text form.
// Private keys never leave the server; they live in a Session held by the
// in-memory Store and are erased when the session expires or is deleted.
package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/pzverkov/quantum-vault/internal/config"
	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
	"github.com/pzverkov/quantum-vault/pkg/selftest"
	"github.com/pzverkov/quantum-vault/pkg/session"
	"github.com/pzverkov/quantum-vault/pkg/version"
)

// heapWarnBytes is the heap size above which /health reports degraded.
const heapWarnBytes = 1 << 30

// Options configures a Server. Zero values take the defaults of
// config.Default, except the limits, which zero disables.
type Options struct {
	CipherSuite constants.CipherSuite
	RSA         rsakex.Options

	// KeyGenTimeout bounds one key generation attempt.
	KeyGenTimeout time.Duration

	// RetryAttempts is how many times a timed-out RSA generation is retried.
	RetryAttempts int

	// RetryInitialInterval is the first backoff delay between attempts.
	RetryInitialInterval time.Duration

	SessionTTL      time.Duration
	CleanupInterval time.Duration
	MaxSessions     int

	// KeyGenRate and KeyGenBurst shape a token bucket over the key
	// generating endpoints; MaxPerClient caps their in-flight requests per
	// client address. Zero disables either limit.
	KeyGenRate   float64
	KeyGenBurst  int
	MaxPerClient int

	Registry  *kex.Registry
	Logger    *metrics.Logger
	Collector *metrics.Collector
}

// OptionsFromConfig maps the runtime configuration onto server options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CipherSuite:     cfg.Suite(),
		RSA:             cfg.RSAOptions(),
		KeyGenTimeout:   cfg.RSA.KeyGenTimeout,
		RetryAttempts:   cfg.RSA.RetryAttempts,
		SessionTTL:      cfg.Session.TTL,
		CleanupInterval: cfg.Session.CleanupInterval,
		MaxSessions:     cfg.Session.MaxSessions,
		KeyGenRate:      cfg.Limits.KeyGenRate,
		KeyGenBurst:     cfg.Limits.KeyGenBurst,
		MaxPerClient:    cfg.Limits.MaxPerClient,
	}
}

func (o *Options) setDefaults() {
	d := config.Default()
	if o.CipherSuite == 0 {
		o.CipherSuite = d.Suite()
	}
	if o.RSA.Bits == 0 {
		o.RSA = d.RSAOptions()
	}
	if o.KeyGenTimeout == 0 {
		o.KeyGenTimeout = d.RSA.KeyGenTimeout
	}
	if o.RetryInitialInterval == 0 {
		o.RetryInitialInterval = 100 * time.Millisecond
	}
	if o.SessionTTL == 0 {
		o.SessionTTL = d.Session.TTL
	}
	if o.CleanupInterval == 0 {
		o.CleanupInterval = d.Session.CleanupInterval
	}
	if o.MaxSessions == 0 {
		o.MaxSessions = d.Session.MaxSessions
	}
	if o.Registry == nil {
		var rng io.Reader
		if crypto.FIPSMode() {
			rng = crypto.NewContinuousReader(nil)
		}
		o.Registry = kex.NewRegistry(kex.NewKyber(rng), kex.NewRSA(rng, o.RSA))
	}
	if o.Logger == nil {
		o.Logger = metrics.GetLogger()
	}
	if o.Collector == nil {
		o.Collector = metrics.Global()
	}
}

// Server is the HTTP API.
type Server struct {
	opts          Options
	store         *Store
	logger        *metrics.Logger
	collector     *metrics.Collector
	observability *metrics.Server
	mux           *http.ServeMux

	clients      *clientLimiter
	keyGenBucket *tokenBucket
}

// NewServer builds the API and mounts the observability endpoints beside
// it. The cached self-test suite and a live RNG check back /health.
func NewServer(opts Options) *Server {
	opts.setDefaults()

	s := &Server{
		opts:      opts,
		store:     NewStore(opts.SessionTTL, opts.CleanupInterval, opts.MaxSessions),
		logger:    opts.Logger.Named("api"),
		collector: opts.Collector,
		mux:       http.NewServeMux(),

		clients:      newClientLimiter(opts.MaxPerClient),
		keyGenBucket: newTokenBucket(opts.KeyGenRate, opts.KeyGenBurst),
	}

	s.observability = metrics.NewServer(metrics.ServerConfig{
		Collector:        opts.Collector,
		Version:          version.String(),
		EnablePrometheus: true,
		EnableHealth:     true,
	})
	s.observability.AddHealthCheck("selftest", metrics.CachedCheck(selftest.Check))
	s.observability.AddHealthCheck("rng", func() error { return crypto.RNGHealthCheck(nil) })
	s.observability.AddWarningCheck("memory", metrics.MemoryCheck(heapWarnBytes))
	s.observability.Mount(s.mux)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDeleteSession)
	s.mux.HandleFunc("POST /api/generate-keypair", s.limitKeyGen(s.handleGenerateKeyPair))
	s.mux.HandleFunc("POST /api/exchange-key", s.handleExchangeKey)
	s.mux.HandleFunc("POST /api/full-exchange", s.limitKeyGen(s.handleFullExchange))
	s.mux.HandleFunc("POST /api/encrypt", s.handleEncrypt)
	s.mux.HandleFunc("POST /api/decrypt", s.handleDecrypt)
	s.mux.HandleFunc("GET /api/security-comparison", s.handleSecurityComparison)
	s.mux.HandleFunc("GET /api/comparison/{id}", s.handleComparison)
}

// Handler returns the API handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	return s.logRequests(cors(s.mux))
}

// Store returns the session store.
func (s *Server) Store() *Store {
	return s.store
}

// ListenAndServe serves the API on addr until ctx is done, then shuts down
// gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := metrics.NewHTTPServer(addr, s.Handler())

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", metrics.Fields{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.store.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.store.Close()
	s.logger.Info("server stopped")
	return err
}

// Close erases every stored session.
func (s *Server) Close() {
	s.store.Close()
}

func (s *Server) newSession() (*session.Session, error) {
	sess, err := session.New(
		session.WithRegistry(s.opts.Registry),
		session.WithCipherSuite(s.opts.CipherSuite),
		session.WithLogger(s.opts.Logger),
		session.WithCollector(s.collector),
	)
	if err != nil {
		return nil, err
	}
	if err := s.store.Add(sess); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

// sessionFor returns the named session, or a new one when id is empty.
func (s *Server) sessionFor(id string) (*session.Session, error) {
	if id == "" {
		return s.newSession()
	}
	return s.store.Get(id)
}

// generateKeys runs key generation with a per-attempt deadline. Attempts
// that time out are retried with exponential backoff; any other failure
// stops at once.
func (s *Server) generateKeys(ctx context.Context, sess *session.Session, alg kex.Algorithm) (*session.KeyPairResult, error) {
	var res *session.KeyPairResult

	op := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.KeyGenTimeout)
		defer cancel()

		var err error
		res, err = sess.GenerateKeys(attemptCtx, alg)
		if err != nil && !qerrors.Is(err, qerrors.ErrKeyGenerationTimeout) {
			return backoff.Permanent(err)
		}
		return err
	}

	// WithMaxRetries treats zero as unlimited.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if s.opts.RetryAttempts > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.opts.RetryInitialInterval
		b.MaxInterval = 10 * s.opts.RetryInitialInterval
		b.MaxElapsedTime = 0
		policy = backoff.WithMaxRetries(b, uint64(s.opts.RetryAttempts))
	}

	err := backoff.RetryNotify(op, backoff.WithContext(policy, ctx), func(err error, d time.Duration) {
		s.logger.Warn("retrying key generation", metrics.Fields{
			"algorithm": alg.String(),
			"delay":     d.String(),
			"error":     err.Error(),
		})
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", metrics.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rec.status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		})
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// cors allows any origin, as the browser front end may be served from
// anywhere.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
