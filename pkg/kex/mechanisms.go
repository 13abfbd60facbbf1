package kex

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/kyber"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
)

// kyberMechanism adapts pkg/kyber.
type kyberMechanism struct {
	rand io.Reader
}

// NewKyber returns the ML-KEM-768 mechanism drawing randomness from rand
// (crypto.Reader when nil).
func NewKyber(rand io.Reader) Mechanism {
	return &kyberMechanism{rand: rand}
}

func (m *kyberMechanism) Algorithm() Algorithm { return Kyber }

func (m *kyberMechanism) Sizes() Sizes {
	return Sizes{
		PublicKey:    kyber.PublicKeySize,
		PrivateKey:   kyber.PrivateKeySize,
		Ciphertext:   kyber.CiphertextSize,
		SharedSecret: kyber.SharedSecretSize,
	}
}

func (m *kyberMechanism) GenerateKeyPair(ctx context.Context) (*KeyPair, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kp, err := kyber.GenerateKeyPair(m.rand)
	if err != nil {
		return nil, err
	}
	return &KeyPair{Algorithm: Kyber, PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey}, nil
}

func (m *kyberMechanism) Encapsulate(publicKey []byte) (*EncapsulatedSecret, error) {
	ct, ss, err := kyber.Encapsulate(publicKey, m.rand)
	if err != nil {
		return nil, err
	}
	return &EncapsulatedSecret{Algorithm: Kyber, SharedSecret: ss, Ciphertext: ct}, nil
}

func (m *kyberMechanism) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	return kyber.Decapsulate(privateKey, ciphertext)
}

// rsaMechanism adapts pkg/rsakex.
type rsaMechanism struct {
	rand io.Reader
	opts rsakex.Options
}

// NewRSA returns the RSA key transport mechanism. Zero-valued options fall
// back to rsakex.DefaultOptions.
func NewRSA(rand io.Reader, opts rsakex.Options) Mechanism {
	def := rsakex.DefaultOptions()
	if opts.Bits == 0 {
		opts.Bits = def.Bits
	}
	if opts.MaxIterations == 0 {
		opts.MaxIterations = def.MaxIterations
	}
	return &rsaMechanism{rand: rand, opts: opts}
}

func (m *rsaMechanism) Algorithm() Algorithm { return RSA }

func (m *rsaMechanism) Sizes() Sizes {
	k := m.opts.Bits / 8
	return Sizes{
		PublicKey:    k,
		PrivateKey:   3 * k,
		Ciphertext:   k,
		SharedSecret: rsakex.SecretSize,
	}
}

func (m *rsaMechanism) GenerateKeyPair(ctx context.Context) (*KeyPair, error) {
	priv, err := rsakex.GenerateKey(ctx, m.rand, m.opts)
	if err != nil {
		return nil, err
	}
	defer priv.Zeroize()
	return &KeyPair{Algorithm: RSA, PublicKey: priv.Public().Bytes(), PrivateKey: priv.Bytes()}, nil
}

func (m *rsaMechanism) Encapsulate(publicKey []byte) (*EncapsulatedSecret, error) {
	if len(publicKey) != m.opts.Bits/8 {
		return nil, qerrors.NewCryptoError("rsakex.Exchange", qerrors.ErrInvalidPublicKey)
	}
	ct, secret, err := rsakex.Exchange(publicKey, m.rand)
	if err != nil {
		return nil, err
	}
	return &EncapsulatedSecret{Algorithm: RSA, SharedSecret: secret, Ciphertext: ct}, nil
}

func (m *rsaMechanism) Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != m.opts.Bits/8 {
		return nil, qerrors.NewCryptoError("rsakex.Recover", qerrors.ErrInvalidCiphertext)
	}
	return rsakex.Recover(privateKey, ciphertext)
}

// Registry maps algorithms to mechanisms. It is read-mostly and safe for
// concurrent use.
type Registry struct {
	mu         sync.RWMutex
	mechanisms map[Algorithm]Mechanism
}

// NewRegistry returns a registry holding the given mechanisms.
func NewRegistry(mechanisms ...Mechanism) *Registry {
	r := &Registry{mechanisms: make(map[Algorithm]Mechanism)}
	for _, m := range mechanisms {
		r.Register(m)
	}
	return r
}

// DefaultRegistry returns a registry with Kyber and RSA-2048 using the
// system randomness source.
func DefaultRegistry() *Registry {
	return NewRegistry(NewKyber(nil), NewRSA(nil, rsakex.DefaultOptions()))
}

// Register adds or replaces the mechanism for its algorithm.
func (r *Registry) Register(m Mechanism) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mechanisms[m.Algorithm()] = m
}

// Get returns the mechanism for alg or ErrUnsupportedAlgorithm.
func (r *Registry) Get(alg Algorithm) (Mechanism, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mechanisms[alg]
	if !ok {
		return nil, fmt.Errorf("%w: %s", qerrors.ErrUnsupportedAlgorithm, alg)
	}
	return m, nil
}

// ExpectedSizes returns the canonical sizes for the standard parameter sets.
func ExpectedSizes(alg Algorithm) (Sizes, bool) {
	switch alg {
	case Kyber:
		return Sizes{
			PublicKey:    constants.KyberPublicKeySize,
			PrivateKey:   constants.KyberPrivateKeySize,
			Ciphertext:   constants.KyberCiphertextSize,
			SharedSecret: constants.KyberSharedSecretSize,
		}, true
	case RSA:
		return Sizes{
			PublicKey:    constants.RSAPublicKeySize,
			PrivateKey:   constants.RSAPrivateKeySize,
			Ciphertext:   constants.RSACiphertextSize,
			SharedSecret: constants.RSASharedSecretSize,
		}, true
	default:
		return Sizes{}, false
	}
}
