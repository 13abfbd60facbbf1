// Package session runs key exchange demonstrations.
//
// A Session owns one run per algorithm. A run moves through
// Uninitialized → KeysGenerated → Encapsulated → Decapsulated and never
// backwards; generating keys again starts a fresh run and erases the old one.
// Once a shared secret is established the run carries a message cipher keyed
// from it.
//
// Sessions share no mutable cryptographic state with each other, so
// independent sessions may be driven from different goroutines. A single
// Session is also safe for concurrent use.
package session

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/hybrid"
	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
)

// State is the position of a run in the exchange protocol.
type State int32

const (
	// StateUninitialized means no keys exist for the algorithm
	StateUninitialized State = iota

	// StateKeysGenerated means a key pair is held
	StateKeysGenerated

	// StateEncapsulated means a shared secret was sent to a public key
	StateEncapsulated

	// StateDecapsulated means the shared secret was recovered and verified
	StateDecapsulated
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateKeysGenerated:
		return "KeysGenerated"
	case StateEncapsulated:
		return "Encapsulated"
	case StateDecapsulated:
		return "Decapsulated"
	default:
		return "Unknown"
	}
}

// ExchangeMetrics is the measured record of one run. Times are wall-clock
// milliseconds around the real operations.
type ExchangeMetrics struct {
	Algorithm           string  `json:"algorithm"`
	KeyGenTimeMs        float64 `json:"keyGenTimeMs"`
	ExchangeTimeMs      float64 `json:"exchangeTimeMs"`
	DecapsulationTimeMs float64 `json:"decapsulationTimeMs"`
	KeySizeBytes        int     `json:"keySizeBytes"`
	PrivateKeySizeBytes int     `json:"privateKeySizeBytes"`
	CiphertextSizeBytes int     `json:"ciphertextSizeBytes"`
	SharedSecretBytes   int     `json:"sharedSecretBytes"`
	Verified            bool    `json:"verified"`
}

// KeyPairResult is what GenerateKeys hands back. The private key stays in
// the session.
type KeyPairResult struct {
	Algorithm kex.Algorithm
	PublicKey []byte
	Metrics   ExchangeMetrics
}

// PublicKeyHex returns the public key as lowercase hex.
func (r *KeyPairResult) PublicKeyHex() string {
	return hex.EncodeToString(r.PublicKey)
}

// ExchangeResult is what Exchange hands back. SharedSecret is a copy; the
// session keeps its own.
type ExchangeResult struct {
	Algorithm    kex.Algorithm
	SharedSecret []byte
	Ciphertext   []byte
	Verified     bool
	Metrics      ExchangeMetrics
}

// MessageResult is the outcome of a message operation.
type MessageResult struct {
	Text       string
	Duration   time.Duration
	InputSize  int
	OutputSize int
}

// run is the per-algorithm exchange state.
type run struct {
	state     State
	keyPair   *kex.KeyPair
	sent      *kex.EncapsulatedSecret
	recovered []byte
	cipher    *hybrid.Cipher
	metrics   ExchangeMetrics
}

func (r *run) zeroize() {
	r.keyPair.Zeroize()
	r.sent.Zeroize()
	crypto.Zeroize(r.recovered)
	r.recovered = nil
	r.cipher = nil
}

// advance moves the run forward. Moving backwards or staying put is an
// error.
func (r *run) advance(to State) error {
	if to <= r.state {
		return fmt.Errorf("%w: %s -> %s", qerrors.ErrInvalidState, r.state, to)
	}
	r.state = to
	return nil
}

// Session is one user's set of exchange runs.
type Session struct {
	id        string
	created   time.Time
	registry  *kex.Registry
	suite     constants.CipherSuite
	logger    *metrics.Logger
	collector *metrics.Collector

	mu     sync.Mutex
	closed bool
	runs   map[kex.Algorithm]*run
}

// Option configures a Session.
type Option func(*Session)

// WithRegistry sets the mechanisms the session may use.
func WithRegistry(r *kex.Registry) Option {
	return func(s *Session) { s.registry = r }
}

// WithCipherSuite sets the AEAD for messages.
func WithCipherSuite(suite constants.CipherSuite) Option {
	return func(s *Session) { s.suite = suite }
}

// WithLogger sets the logger. The session adds its own id field.
func WithLogger(l *metrics.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithCollector sets the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Session) { s.collector = c }
}

// WithID overrides the random session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New creates a session. Unset options fall back to kex.DefaultRegistry,
// AES-256-GCM, the global logger and the global collector.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		created: time.Now(),
		suite:   hybrid.DefaultSuite,
		runs:    make(map[kex.Algorithm]*run),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.id == "" {
		raw, err := crypto.SecureRandomBytes(16)
		if err != nil {
			return nil, err
		}
		s.id = hex.EncodeToString(raw)
	}
	if s.registry == nil {
		s.registry = kex.DefaultRegistry()
	}
	if s.logger == nil {
		s.logger = metrics.GetLogger()
	}
	if s.collector == nil {
		s.collector = metrics.Global()
	}
	s.logger = s.logger.Named("session").With(metrics.Fields{"session_id": s.id})

	s.collector.SessionStarted()
	s.logger.Debug("session created", metrics.Fields{"cipher_suite": s.suite.String()})
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.created }

// Suite returns the message AEAD.
func (s *Session) Suite() constants.CipherSuite { return s.suite }

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (s *Session) spanAttrs(alg kex.Algorithm) metrics.SpanAttributes {
	return metrics.SpanAttributes{SessionID: s.id, Algorithm: alg.String()}
}

// GenerateKeys creates a fresh key pair for alg, replacing and erasing any
// previous run. RSA generation honours ctx.
func (s *Session) GenerateKeys(ctx context.Context, alg kex.Algorithm) (res *KeyPairResult, err error) {
	mech, err := s.registry.Get(alg)
	if err != nil {
		return nil, err
	}
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	ctx, end := metrics.StartSpan(ctx, metrics.SpanKeyGen, metrics.WithAttributes(s.spanAttrs(alg).ToMap()))
	defer func() { end(err) }()

	start := time.Now()
	kp, err := mech.GenerateKeyPair(ctx)
	elapsed := time.Since(start)

	if qerrors.Is(err, qerrors.ErrKeyGenerationTimeout) {
		s.collector.RecordKeyGenerationTimeout(alg.String())
	}
	s.collector.RecordKeyGeneration(alg.String(), elapsed, err)
	if err != nil {
		s.logger.Warn("key generation failed", metrics.Fields{"algorithm": alg.String(), "error": err.Error()})
		return nil, qerrors.NewSessionError(alg.String(), "keygen", err)
	}

	r := &run{
		keyPair: kp,
		metrics: ExchangeMetrics{
			Algorithm:           alg.String(),
			KeyGenTimeMs:        ms(elapsed),
			KeySizeBytes:        len(kp.PublicKey),
			PrivateKeySizeBytes: len(kp.PrivateKey),
		},
	}
	if err := r.advance(StateKeysGenerated); err != nil {
		kp.Zeroize()
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		kp.Zeroize()
		return nil, qerrors.ErrSessionClosed
	}
	if old, ok := s.runs[alg]; ok {
		old.zeroize()
	}
	s.runs[alg] = r
	s.mu.Unlock()

	s.logger.Info("keys generated", metrics.Fields{
		"algorithm":      alg.String(),
		"public_key_len": len(kp.PublicKey),
		"public_key_fp":  fingerprint(kp.PublicKey),
		"duration_ms":    r.metrics.KeyGenTimeMs,
	})

	return &KeyPairResult{
		Algorithm: alg,
		PublicKey: append([]byte(nil), kp.PublicKey...),
		Metrics:   r.metrics,
	}, nil
}

// Exchange encapsulates a fresh secret to publicKey.
//
// When publicKey is empty or is the session's own key for alg, the session
// also decapsulates with its private key, compares both views in constant
// time and ends in Decapsulated. Any other key is foreign: the session only
// encapsulates, ends in Encapsulated and keys its cipher from the sent
// secret.
func (s *Session) Exchange(ctx context.Context, alg kex.Algorithm, publicKey []byte) (res *ExchangeResult, err error) {
	mech, err := s.registry.Get(alg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, qerrors.ErrSessionClosed
	}

	r := s.runs[alg]
	own := r != nil && r.keyPair != nil && (len(publicKey) == 0 || bytes.Equal(publicKey, r.keyPair.PublicKey))
	if own {
		if r.state != StateKeysGenerated {
			return nil, qerrors.NewSessionError(alg.String(), "exchange",
				fmt.Errorf("%w: exchange needs fresh keys, run is %s", qerrors.ErrInvalidState, r.state))
		}
		publicKey = r.keyPair.PublicKey
	} else if len(publicKey) == 0 {
		return nil, qerrors.NewSessionError(alg.String(), "exchange",
			fmt.Errorf("%w: no keys generated", qerrors.ErrInvalidState))
	}

	ctx, end := metrics.StartSpan(ctx, metrics.SpanExchange, metrics.WithAttributes(s.spanAttrs(alg).ToMap()))
	defer func() { end(err) }()

	_, endEncap := metrics.StartSpan(ctx, metrics.SpanEncapsulate)
	start := time.Now()
	sent, err := mech.Encapsulate(publicKey)
	exchangeTime := time.Since(start)
	endEncap(err)
	s.collector.RecordExchange(alg.String(), exchangeTime, err)
	if err != nil {
		s.collector.SessionFailed()
		s.logger.Warn("encapsulation failed", metrics.Fields{"algorithm": alg.String(), "error": err.Error()})
		return nil, qerrors.NewSessionError(alg.String(), "encapsulate", err)
	}

	if !own {
		return s.finishForeign(alg, r, publicKey, sent, exchangeTime)
	}

	if err := r.advance(StateEncapsulated); err != nil {
		sent.Zeroize()
		return nil, err
	}
	r.sent = sent
	r.metrics.ExchangeTimeMs = ms(exchangeTime)
	r.metrics.CiphertextSizeBytes = len(sent.Ciphertext)
	r.metrics.SharedSecretBytes = len(sent.SharedSecret)

	if err := s.decapsulateLocked(ctx, mech, alg, r, sent.Ciphertext); err != nil {
		return nil, err
	}

	s.logger.Info("key exchange complete", metrics.Fields{
		"algorithm":      alg.String(),
		"ciphertext_fp":  fingerprint(sent.Ciphertext),
		"ciphertext_len": len(sent.Ciphertext),
		"exchange_ms":    r.metrics.ExchangeTimeMs,
		"decap_ms":       r.metrics.DecapsulationTimeMs,
	})

	return &ExchangeResult{
		Algorithm:    alg,
		SharedSecret: append([]byte(nil), sent.SharedSecret...),
		Ciphertext:   append([]byte(nil), sent.Ciphertext...),
		Verified:     r.metrics.Verified,
		Metrics:      r.metrics,
	}, nil
}

// finishForeign records an encapsulate-only exchange to a peer's key. It
// replaces any previous run for alg.
func (s *Session) finishForeign(alg kex.Algorithm, old *run, publicKey []byte, sent *kex.EncapsulatedSecret, exchangeTime time.Duration) (*ExchangeResult, error) {
	cipher, err := hybrid.NewCipherFromSecret(s.suite, sent.SharedSecret)
	if err != nil {
		sent.Zeroize()
		return nil, qerrors.NewSessionError(alg.String(), "exchange", err)
	}

	r := &run{
		sent:   sent,
		cipher: cipher,
		metrics: ExchangeMetrics{
			Algorithm:           alg.String(),
			ExchangeTimeMs:      ms(exchangeTime),
			KeySizeBytes:        len(publicKey),
			CiphertextSizeBytes: len(sent.Ciphertext),
			SharedSecretBytes:   len(sent.SharedSecret),
		},
	}
	if err := r.advance(StateEncapsulated); err != nil {
		return nil, err
	}
	if old != nil {
		old.zeroize()
	}
	s.runs[alg] = r

	s.logger.Info("encapsulated to peer key", metrics.Fields{
		"algorithm":      alg.String(),
		"peer_key_fp":    fingerprint(publicKey),
		"ciphertext_len": len(sent.Ciphertext),
		"exchange_ms":    r.metrics.ExchangeTimeMs,
	})

	return &ExchangeResult{
		Algorithm:    alg,
		SharedSecret: append([]byte(nil), sent.SharedSecret...),
		Ciphertext:   append([]byte(nil), sent.Ciphertext...),
		Metrics:      r.metrics,
	}, nil
}

// Decapsulate recovers a secret that a peer encapsulated to the session's
// key for alg and keys the message cipher from it. A ciphertext of the wrong
// length fails with ErrInvalidCiphertext and leaves the run unchanged.
func (s *Session) Decapsulate(ctx context.Context, alg kex.Algorithm, ciphertext []byte) (err error) {
	mech, err := s.registry.Get(alg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return qerrors.ErrSessionClosed
	}
	r := s.runs[alg]
	if r == nil || r.keyPair == nil || r.state != StateKeysGenerated {
		state := StateUninitialized
		if r != nil {
			state = r.state
		}
		return qerrors.NewSessionError(alg.String(), "decapsulate",
			fmt.Errorf("%w: run is %s", qerrors.ErrInvalidState, state))
	}
	r.metrics.CiphertextSizeBytes = len(ciphertext)
	return s.decapsulateLocked(ctx, mech, alg, r, ciphertext)
}

// decapsulateLocked recovers the secret in r and, when r.sent is set,
// verifies it against the sent one. Callers hold s.mu.
func (s *Session) decapsulateLocked(ctx context.Context, mech kex.Mechanism, alg kex.Algorithm, r *run, ciphertext []byte) (err error) {
	_, end := metrics.StartSpan(ctx, metrics.SpanDecapsulate, metrics.WithAttributes(metrics.SpanAttributes{
		SessionID:  s.id,
		Algorithm:  alg.String(),
		Ciphertext: len(ciphertext),
	}.ToMap()))
	defer func() { end(err) }()

	start := time.Now()
	recovered, err := mech.Decapsulate(r.keyPair.PrivateKey, ciphertext)
	elapsed := time.Since(start)
	s.collector.RecordDecapsulation(alg.String(), elapsed, err)
	if err != nil {
		if qerrors.Is(err, qerrors.ErrInvalidCiphertext) {
			s.collector.RecordMalformedInput()
		}
		s.collector.SessionFailed()
		s.logger.Warn("decapsulation failed", metrics.Fields{"algorithm": alg.String(), "error": err.Error()})
		return qerrors.NewSessionError(alg.String(), "decapsulate", err)
	}

	if r.sent != nil && !crypto.ConstantTimeCompare(recovered, r.sent.SharedSecret) {
		crypto.Zeroize(recovered)
		s.collector.SessionFailed()
		s.logger.Error("shared secrets differ", metrics.Fields{"algorithm": alg.String()})
		return qerrors.NewSessionError(alg.String(), "decapsulate", qerrors.ErrDecapsulationFailed)
	}

	cipher, err := hybrid.NewCipherFromSecret(s.suite, recovered)
	if err != nil {
		crypto.Zeroize(recovered)
		return qerrors.NewSessionError(alg.String(), "decapsulate", err)
	}
	if err := r.advance(StateDecapsulated); err != nil {
		crypto.Zeroize(recovered)
		return err
	}

	r.recovered = recovered
	r.cipher = cipher
	r.metrics.DecapsulationTimeMs = ms(elapsed)
	r.metrics.SharedSecretBytes = len(recovered)
	r.metrics.Verified = r.sent != nil
	return nil
}

// RunFullExchange generates fresh keys for alg and exchanges against them.
// Every call produces new keys.
func (s *Session) RunFullExchange(ctx context.Context, alg kex.Algorithm) (*KeyPairResult, *ExchangeResult, error) {
	kp, err := s.GenerateKeys(ctx, alg)
	if err != nil {
		return nil, nil, err
	}
	ex, err := s.Exchange(ctx, alg, kp.PublicKey)
	if err != nil {
		return kp, nil, err
	}
	return kp, ex, nil
}

func (s *Session) cipherFor(alg kex.Algorithm, phase string) (*hybrid.Cipher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, qerrors.ErrSessionClosed
	}
	r := s.runs[alg]
	if r == nil || r.cipher == nil {
		return nil, qerrors.NewSessionError(alg.String(), phase,
			fmt.Errorf("%w: no shared secret established", qerrors.ErrInvalidState))
	}
	return r.cipher, nil
}

// EncryptMessage seals plaintext under the message key of alg's run. The
// result text is hex(nonce) ":" base64(ciphertext ‖ tag).
func (s *Session) EncryptMessage(ctx context.Context, alg kex.Algorithm, plaintext string) (res *MessageResult, err error) {
	c, err := s.cipherFor(alg, "encrypt")
	if err != nil {
		return nil, err
	}

	_, end := metrics.StartSpan(ctx, metrics.SpanEncrypt, metrics.WithAttributes(metrics.SpanAttributes{
		SessionID:   s.id,
		Algorithm:   alg.String(),
		CipherSuite: c.Suite().String(),
		MessageSize: len(plaintext),
	}.ToMap()))
	defer func() { end(err) }()

	start := time.Now()
	out, err := c.EncryptString(plaintext)
	elapsed := time.Since(start)
	if err != nil {
		s.collector.RecordEncryptError()
		return nil, err
	}
	s.collector.RecordEncrypt(len(plaintext), elapsed)

	return &MessageResult{Text: out, Duration: elapsed, InputSize: len(plaintext), OutputSize: len(out)}, nil
}

// DecryptMessage opens an encoding produced by EncryptMessage under the same
// run. Tampering yields ErrAuthenticationFailed; a string that does not
// parse yields ErrMalformedInput.
func (s *Session) DecryptMessage(ctx context.Context, alg kex.Algorithm, encoded string) (res *MessageResult, err error) {
	c, err := s.cipherFor(alg, "decrypt")
	if err != nil {
		return nil, err
	}

	_, end := metrics.StartSpan(ctx, metrics.SpanDecrypt, metrics.WithAttributes(metrics.SpanAttributes{
		SessionID:   s.id,
		Algorithm:   alg.String(),
		CipherSuite: c.Suite().String(),
		MessageSize: len(encoded),
	}.ToMap()))
	defer func() { end(err) }()

	start := time.Now()
	out, err := c.DecryptString(encoded)
	elapsed := time.Since(start)
	switch {
	case err == nil:
		s.collector.RecordDecrypt(len(out), elapsed)
	case qerrors.Is(err, qerrors.ErrAuthenticationFailed):
		s.collector.RecordAuthFailure()
		s.logger.Warn("message authentication failed", metrics.Fields{"algorithm": alg.String()})
		return nil, err
	case qerrors.Is(err, qerrors.ErrMalformedInput):
		s.collector.RecordMalformedInput()
		return nil, err
	default:
		s.collector.RecordDecryptError()
		return nil, err
	}

	return &MessageResult{Text: out, Duration: elapsed, InputSize: len(encoded), OutputSize: len(out)}, nil
}

// State returns the state of alg's run.
func (s *Session) State(alg kex.Algorithm) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.runs[alg]; ok {
		return r.state
	}
	return StateUninitialized
}

// Metrics returns a copy of alg's run metrics.
func (s *Session) Metrics(alg kex.Algorithm) (ExchangeMetrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[alg]
	if !ok {
		return ExchangeMetrics{}, false
	}
	return r.metrics, true
}

// AlgorithmReport is one row of a Comparison.
type AlgorithmReport struct {
	Algorithm        string           `json:"algorithm"`
	DisplayName      string           `json:"display_name"`
	QuantumResistant bool             `json:"quantum_resistant"`
	State            string           `json:"state"`
	Sizes            kex.Sizes        `json:"sizes"`
	Metrics          *ExchangeMetrics `json:"metrics,omitempty"`
}

// Comparison sets the measured runs side by side.
type Comparison struct {
	SessionID  string            `json:"session_id"`
	Algorithms []AlgorithmReport `json:"algorithms"`
}

// Compare reports every registered algorithm in display order. Algorithms
// without a run carry no metrics.
func (s *Session) Compare() Comparison {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmp := Comparison{SessionID: s.id}
	for _, alg := range kex.Algorithms {
		mech, err := s.registry.Get(alg)
		if err != nil {
			continue
		}
		rep := AlgorithmReport{
			Algorithm:        alg.String(),
			DisplayName:      alg.DisplayName(),
			QuantumResistant: alg.IsQuantumResistant(),
			State:            StateUninitialized.String(),
			Sizes:            mech.Sizes(),
		}
		if r, ok := s.runs[alg]; ok {
			m := r.metrics
			rep.Metrics = &m
			rep.State = r.state.String()
		}
		cmp.Algorithms = append(cmp.Algorithms, rep)
	}
	return cmp
}

// Close erases every key and secret the session holds. Further operations
// fail with ErrSessionClosed. Close is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for alg, r := range s.runs {
		r.zeroize()
		delete(s.runs, alg)
	}
	s.collector.SessionEnded()
	s.logger.Debug("session closed")
	return nil
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return qerrors.ErrSessionClosed
	}
	return nil
}

// fingerprint labels key material in logs without echoing it.
func fingerprint(b []byte) string {
	return hex.EncodeToString(crypto.Fingerprint(b)[:8])
}
