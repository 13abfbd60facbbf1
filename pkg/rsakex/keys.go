// Package rsakex implements classical RSA key transport for comparison with the
// post-quantum KEM.
//
// Mathematical Foundation:
//
// Key generation picks two random probable primes p, q of half the modulus
// length (Miller-Rabin via math/big), sets n = pq, e = 65537 and
// d = e^-1 mod lcm(p-1, q-1). A 32-byte secret is transported by padding it as
//
//	EM = 0x00 || 0x02 || PS || 0x00 || secret     (PS: non-zero random bytes)
//
// and computing c = EM^e mod n. The holder of d recovers EM = c^d mod n using
// the Chinese Remainder Theorem.
//
// Security Note: this is textbook RSA with type-2 padding, kept deliberately
// simple to show the classical construction next to ML-KEM. Production code
// should use crypto/rsa with OAEP. Shor's algorithm breaks it outright.
package rsakex

import (
	"context"
	"fmt"
	"io"
	"math/big"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

var (
	bigOne = big.NewInt(1)
	bigE   = big.NewInt(constants.RSAPublicExponent)
)

// Options bounds key generation.
type Options struct {
	// Bits is the modulus length; it must be a multiple of 16 and at least 1024.
	Bits int

	// MaxIterations caps the total number of prime candidates drawn for both
	// primes. Exceeding it fails with ErrKeyGenerationTimeout.
	MaxIterations int
}

// DefaultOptions returns RSA-2048 options with the default iteration cap.
func DefaultOptions() Options {
	return Options{
		Bits:          constants.RSADefaultBits,
		MaxIterations: constants.RSADefaultMaxIterations,
	}
}

func (o Options) validate() error {
	if o.Bits < constants.RSAMinBits || o.Bits%16 != 0 {
		return qerrors.NewCryptoError("rsakex.Options", fmt.Errorf("%w: %d-bit modulus", qerrors.ErrInvalidKeySize, o.Bits))
	}
	if o.MaxIterations <= 0 {
		return qerrors.NewCryptoError("rsakex.Options", fmt.Errorf("%w: max iterations must be positive", qerrors.ErrKeyGenerationTimeout))
	}
	return nil
}

// PublicKey is an RSA public key with the fixed exponent 65537.
type PublicKey struct {
	N *big.Int
	E int
}

// Size returns the modulus length in bytes.
func (pub *PublicKey) Size() int {
	return (pub.N.BitLen() + 7) / 8
}

// Bytes encodes the public key as the big-endian modulus, Size() bytes long.
func (pub *PublicKey) Bytes() []byte {
	return pub.N.FillBytes(make([]byte, pub.Size()))
}

// PrivateKey is an RSA private key with precomputed CRT values.
type PrivateKey struct {
	PublicKey
	D *big.Int
	P *big.Int
	Q *big.Int

	dp, dq, qInv *big.Int
}

// Bytes encodes the private key as n || d || p || q with widths k, k, k/2, k/2
// where k is the modulus length in bytes.
func (priv *PrivateKey) Bytes() []byte {
	k := priv.Size()
	out := make([]byte, 3*k)
	priv.N.FillBytes(out[:k])
	priv.D.FillBytes(out[k : 2*k])
	priv.P.FillBytes(out[2*k : 2*k+k/2])
	priv.Q.FillBytes(out[2*k+k/2:])
	return out
}

// Public returns the public half of the key.
func (priv *PrivateKey) Public() *PublicKey {
	return &priv.PublicKey
}

// Zeroize clears the secret values.
func (priv *PrivateKey) Zeroize() {
	for _, x := range []*big.Int{priv.D, priv.P, priv.Q, priv.dp, priv.dq, priv.qInv} {
		if x != nil {
			x.SetInt64(0)
		}
	}
}

// ParsePublicKey decodes a big-endian modulus. The modulus must use its full
// byte width, be odd and be at least RSAMinBits long.
func ParsePublicKey(b []byte) (*PublicKey, error) {
	if len(b)*8 < constants.RSAMinBits || len(b)%2 != 0 || b[0]&0x80 == 0 || b[len(b)-1]&1 == 0 {
		return nil, qerrors.NewCryptoError("rsakex.ParsePublicKey", qerrors.ErrInvalidPublicKey)
	}
	return &PublicKey{N: new(big.Int).SetBytes(b), E: constants.RSAPublicExponent}, nil
}

// ParsePrivateKey decodes the n || d || p || q encoding produced by Bytes and
// checks that n = p·q.
func ParsePrivateKey(b []byte) (*PrivateKey, error) {
	if len(b) == 0 || len(b)%6 != 0 {
		return nil, qerrors.NewCryptoError("rsakex.ParsePrivateKey", qerrors.ErrInvalidPrivateKey)
	}
	k := len(b) / 3

	pub, err := ParsePublicKey(b[:k])
	if err != nil {
		return nil, qerrors.NewCryptoError("rsakex.ParsePrivateKey", qerrors.ErrInvalidPrivateKey)
	}

	priv := &PrivateKey{
		PublicKey: *pub,
		D:         new(big.Int).SetBytes(b[k : 2*k]),
		P:         new(big.Int).SetBytes(b[2*k : 2*k+k/2]),
		Q:         new(big.Int).SetBytes(b[2*k+k/2:]),
	}
	if new(big.Int).Mul(priv.P, priv.Q).Cmp(priv.N) != 0 || priv.D.Sign() <= 0 {
		return nil, qerrors.NewCryptoError("rsakex.ParsePrivateKey", qerrors.ErrInvalidPrivateKey)
	}
	if err := priv.precompute(); err != nil {
		return nil, err
	}
	return priv, nil
}

func (priv *PrivateKey) precompute() error {
	pm1 := new(big.Int).Sub(priv.P, bigOne)
	qm1 := new(big.Int).Sub(priv.Q, bigOne)
	priv.dp = new(big.Int).Mod(priv.D, pm1)
	priv.dq = new(big.Int).Mod(priv.D, qm1)
	priv.qInv = new(big.Int).ModInverse(priv.Q, priv.P)
	if priv.qInv == nil {
		return qerrors.NewCryptoError("rsakex.precompute", qerrors.ErrInvalidPrivateKey)
	}
	return nil
}

// GenerateKey generates an RSA key pair.
//
// Prime candidates are drawn from rand (crypto.Reader when nil) with the top
// two bits set, so n always has exactly opts.Bits bits. The search is bounded:
// once opts.MaxIterations candidates have been drawn, or ctx's deadline
// passes, it fails with ErrKeyGenerationTimeout. Cancelling ctx stops it with
// context.Canceled.
func GenerateKey(ctx context.Context, rand io.Reader, opts Options) (*PrivateKey, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	budget := opts.MaxIterations
	half := opts.Bits / 2

	for {
		p, err := generatePrime(ctx, rand, half, &budget)
		if err != nil {
			return nil, err
		}
		q, err := generatePrime(ctx, rand, half, &budget)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}
		if p.Cmp(q) < 0 {
			p, q = q, p
		}

		priv, err := NewPrivateKey(p, q, constants.RSAPublicExponent)
		if err != nil {
			continue
		}
		return priv, nil
	}
}

// NewPrivateKey builds a key from two distinct primes and a public exponent,
// with d = e^-1 mod lcm(p-1, q-1). It fails with ErrInvalidPrivateKey when e is
// not invertible.
func NewPrivateKey(p, q *big.Int, e int) (*PrivateKey, error) {
	n := new(big.Int).Mul(p, q)
	pm1 := new(big.Int).Sub(p, bigOne)
	qm1 := new(big.Int).Sub(q, bigOne)
	gcd := new(big.Int).GCD(nil, nil, pm1, qm1)
	lambda := new(big.Int).Div(new(big.Int).Mul(pm1, qm1), gcd)

	d := new(big.Int).ModInverse(big.NewInt(int64(e)), lambda)
	if d == nil {
		return nil, qerrors.NewCryptoError("rsakex.NewPrivateKey", qerrors.ErrInvalidPrivateKey)
	}

	priv := &PrivateKey{
		PublicKey: PublicKey{N: n, E: e},
		D:         d,
		P:         new(big.Int).Set(p),
		Q:         new(big.Int).Set(q),
	}
	if err := priv.precompute(); err != nil {
		return nil, err
	}
	return priv, nil
}

// generatePrime draws odd bits-long candidates with the two top bits set until
// one is a probable prime with p mod e != 1, spending one unit of budget per
// candidate.
func generatePrime(ctx context.Context, rand io.Reader, bits int, budget *int) (*big.Int, error) {
	buf := make([]byte, (bits+7)/8)
	defer crypto.Zeroize(buf)

	p := new(big.Int)
	r := new(big.Int)
	for {
		if err := ctxErr(ctx); err != nil {
			return nil, err
		}
		if *budget <= 0 {
			return nil, qerrors.NewCryptoError("rsakex.GenerateKey",
				fmt.Errorf("%w: prime search exceeded iteration cap", qerrors.ErrKeyGenerationTimeout))
		}
		*budget--

		if err := crypto.ReadRandom(rand, buf); err != nil {
			return nil, qerrors.NewCryptoError("rsakex.GenerateKey", err)
		}

		// bits is a multiple of 8, so the top two bits live in buf[0].
		buf[0] |= 0xc0
		buf[len(buf)-1] |= 1
		p.SetBytes(buf)

		if r.Mod(p, bigE).Cmp(bigOne) == 0 {
			continue
		}
		if p.ProbablyPrime(constants.RSAMillerRabinRounds) {
			return new(big.Int).Set(p), nil
		}
	}
}

// ctxErr maps a finished context to the key generation error taxonomy.
func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return qerrors.NewCryptoError("rsakex.GenerateKey",
				fmt.Errorf("%w: %v", qerrors.ErrKeyGenerationTimeout, ctx.Err()))
		}
		return qerrors.NewCryptoError("rsakex.GenerateKey", ctx.Err())
	default:
		return nil
	}
}
