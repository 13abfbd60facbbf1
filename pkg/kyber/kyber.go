// Package kyber implements the ML-KEM-768 key encapsulation mechanism (NIST
// FIPS 203), the standardized form of CRYSTALS-Kyber-768, on top of pkg/ring.
//
// Mathematical Foundation:
//
// Security rests on Module Learning With Errors over R_q = Z_q[X]/(X^256 + 1),
// q = 3329, module rank k = 3. The public key is (Â, t̂ = Â∘ŝ + ê) with small
// s, e drawn from the centered binomial distribution. The IND-CPA scheme
// K-PKE is lifted to IND-CCA2 with the Fujisaki-Okamoto transform and
// implicit rejection: decapsulation re-encrypts and, on mismatch, returns
// J(z || c) instead of an error.
//
// Sizes (bytes):
//
//	public key     1184
//	private key    2400
//	ciphertext     1088
//	shared secret    32
//
// Keys and ciphertexts are byte-compatible with every FIPS 203 implementation.
//
// Security Note: this implementation is written for clarity. It does not
// attempt to be free of timing side channels beyond the constant-time
// selection in Decapsulate.
package kyber

import (
	"crypto/subtle"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/ring"
)

// Sizes re-exported for callers that only import this package.
const (
	PublicKeySize    = constants.KyberPublicKeySize
	PrivateKeySize   = constants.KyberPrivateKeySize
	CiphertextSize   = constants.KyberCiphertextSize
	SharedSecretSize = constants.KyberSharedSecretSize
	SeedSize         = constants.KyberKeySeedSize
	MessageSize      = constants.KyberSeedSize
)

// private key layout: dk_pke || ek || H(ek) || z
const (
	dkPKEEnd = encodedVecSize
	ekEnd    = dkPKEEnd + PublicKeySize
	hashEnd  = ekEnd + 32
)

// KeyPair is an ML-KEM-768 key pair in its standard byte encoding.
type KeyPair struct {
	// PublicKey is the encapsulation key ek.
	PublicKey []byte

	// PrivateKey is the decapsulation key dk.
	PrivateKey []byte
}

// GenerateKeyPair generates a key pair from 64 bytes of rand
// (crypto.Reader when rand is nil).
//
// The key generation process (FIPS 203, Algorithm 16):
//  1. Sample seeds d, z ← {0,1}^256
//  2. (ρ, σ) = G(d || k)
//  3. Expand Â from ρ, sample s, e from CBD(η1) under σ
//  4. ek = Encode12(Â∘ŝ + ê) || ρ
//  5. dk = Encode12(ŝ) || ek || H(ek) || z
//
// Fails only with ErrRandomnessUnavailable.
func GenerateKeyPair(rand io.Reader) (*KeyPair, error) {
	seed := make([]byte, SeedSize)
	defer crypto.Zeroize(seed)

	if err := crypto.ReadRandom(rand, seed); err != nil {
		return nil, qerrors.NewCryptoError("kyber.GenerateKeyPair", err)
	}
	return NewKeyPairFromSeed(seed)
}

// NewKeyPairFromSeed deterministically derives a key pair from the 64-byte
// seed d || z. The same seed always yields the same key pair.
func NewKeyPairFromSeed(seed []byte) (*KeyPair, error) {
	if len(seed) != SeedSize {
		return nil, qerrors.NewCryptoError("kyber.NewKeyPairFromSeed", qerrors.ErrInvalidKeySize)
	}
	d, z := seed[:32], seed[32:]

	g := sha3.Sum512(append(append([]byte{}, d...), byte(k)))
	ek, dkPKE := pkeKeyGen(g[:32], g[32:])
	h := sha3.Sum256(ek)

	dk := make([]byte, 0, PrivateKeySize)
	dk = append(dk, dkPKE...)
	dk = append(dk, ek...)
	dk = append(dk, h[:]...)
	dk = append(dk, z...)

	crypto.Zeroize(dkPKE)
	crypto.Zeroize(g[:])

	return &KeyPair{PublicKey: ek, PrivateKey: dk}, nil
}

// Encapsulate generates a shared secret and its ciphertext for publicKey,
// drawing the 32-byte message m from rand (crypto.Reader when nil).
//
// Returns ErrInvalidPublicKey if the key has the wrong length or fails the
// FIPS 203 modulus check, ErrRandomnessUnavailable if rand fails.
func Encapsulate(publicKey []byte, rand io.Reader) (ciphertext, sharedSecret []byte, err error) {
	if err := checkPublicKey(publicKey); err != nil {
		return nil, nil, err
	}

	m := make([]byte, MessageSize)
	defer crypto.Zeroize(m)
	if err := crypto.ReadRandom(rand, m); err != nil {
		return nil, nil, qerrors.NewCryptoError("kyber.Encapsulate", err)
	}

	ciphertext, sharedSecret = encapsulate(publicKey, m)
	return ciphertext, sharedSecret, nil
}

// EncapsulateDeterministic is Encapsulate with a caller-chosen message m.
// It exists to reproduce test vectors.
func EncapsulateDeterministic(publicKey, m []byte) (ciphertext, sharedSecret []byte, err error) {
	if err := checkPublicKey(publicKey); err != nil {
		return nil, nil, err
	}
	if len(m) != MessageSize {
		return nil, nil, qerrors.NewCryptoError("kyber.Encapsulate", qerrors.ErrInvalidKeySize)
	}

	ciphertext, sharedSecret = encapsulate(publicKey, m)
	return ciphertext, sharedSecret, nil
}

// encapsulate is ML-KEM.Encaps_internal (FIPS 203, Algorithm 17).
func encapsulate(ek, m []byte) (c, key []byte) {
	h := sha3.Sum256(ek)
	g := sha3.Sum512(append(append(make([]byte, 0, 64), m...), h[:]...))

	c = pkeEncrypt(ek, m, g[32:])
	key = append([]byte(nil), g[:32]...)
	crypto.Zeroize(g[:])
	return c, key
}

// Decapsulate recovers the shared secret from ciphertext.
//
// Decapsulation process (FIPS 203, Algorithm 18):
//  1. m' = K-PKE.Decrypt(dk_pke, c)
//  2. (K', r') = G(m' || h)
//  3. c' = K-PKE.Encrypt(ek, m', r')
//  4. If c == c' return K', otherwise return J(z || c)
//
// A ciphertext of the correct length never produces an error: tampered input
// yields a pseudorandom secret that is a deterministic function of the
// private key and the ciphertext.
//
// Returns ErrInvalidCiphertext on a wrong ciphertext length and
// ErrInvalidPrivateKey on a malformed private key.
func Decapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != CiphertextSize {
		return nil, qerrors.NewCryptoError("kyber.Decapsulate", qerrors.ErrInvalidCiphertext)
	}
	if err := checkPrivateKey(privateKey); err != nil {
		return nil, err
	}

	dkPKE := privateKey[:dkPKEEnd]
	ek := privateKey[dkPKEEnd:ekEnd]
	h := privateKey[ekEnd:hashEnd]
	z := privateKey[hashEnd:]

	m := pkeDecrypt(dkPKE, ciphertext)
	g := sha3.Sum512(append(m, h...))
	key := g[:32]

	reject := make([]byte, SharedSecretSize)
	j := sha3.NewShake256()
	j.Write(z)
	j.Write(ciphertext)
	_, _ = j.Read(reject)

	c := pkeEncrypt(ek, m, g[32:])
	equal := subtle.ConstantTimeCompare(c, ciphertext)
	subtle.ConstantTimeCopy(1-equal, key, reject)

	out := append([]byte(nil), key...)
	crypto.ZeroizeMultiple(m, g[:], reject)
	return out, nil
}

// checkPublicKey performs the FIPS 203 encapsulation key checks.
func checkPublicKey(ek []byte) error {
	if len(ek) != PublicKeySize {
		return qerrors.NewCryptoError("kyber.Encapsulate", qerrors.ErrInvalidPublicKey)
	}
	for i := 0; i < k; i++ {
		poly := ek[i*constants.RingEncodedSize : (i+1)*constants.RingEncodedSize]
		if !ring.IsCanonical(poly) {
			return qerrors.NewCryptoError("kyber.Encapsulate", qerrors.ErrInvalidPublicKey)
		}
	}
	return nil
}

// checkPrivateKey performs the FIPS 203 decapsulation key checks.
func checkPrivateKey(dk []byte) error {
	if len(dk) != PrivateKeySize {
		return qerrors.NewCryptoError("kyber.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	h := sha3.Sum256(dk[dkPKEEnd:ekEnd])
	if subtle.ConstantTimeCompare(h[:], dk[ekEnd:hashEnd]) != 1 {
		return qerrors.NewCryptoError("kyber.Decapsulate", qerrors.ErrInvalidPrivateKey)
	}
	return nil
}

// PublicKeyFromPrivate extracts ek from an encoded private key.
func PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	if err := checkPrivateKey(privateKey); err != nil {
		return nil, err
	}
	return append([]byte(nil), privateKey[dkPKEEnd:ekEnd]...), nil
}

// Zeroize erases the private key.
func (kp *KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	crypto.Zeroize(kp.PrivateKey)
	kp.PrivateKey = nil
}
