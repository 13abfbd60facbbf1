// aead.go implements Authenticated Encryption with Associated Data (AEAD).
//
// Two algorithms are supported:
//   - AES-256-GCM: FIPS-approved, hardware-accelerated on modern CPUs
//   - ChaCha20-Poly1305: High performance without hardware support
//
// Both take a 256-bit key and a 96-bit nonce and produce a 128-bit tag.
//
// CRITICAL: Nonce reuse completely breaks security. Each (key, nonce) pair
// MUST be used at most once. Nonces here are drawn at random from the
// randomness source and every nonce issued under a key is remembered, so a
// repeated draw is rejected and redrawn instead of being used.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// maxNonceDraws is how many consecutive colliding nonces are tolerated before
// the randomness source is considered broken.
const maxNonceDraws = 4

// AEAD represents an authenticated encryption cipher bound to a single key.
type AEAD struct {
	cipher cipher.AEAD
	suite  constants.CipherSuite
	rand   io.Reader

	// Nonce state management
	mu       sync.Mutex
	used     map[[constants.AESNonceSize]byte]struct{}
	sealed   uint64
	maxSeals uint64
}

// NewAEAD creates a new AEAD cipher with the specified suite and key, drawing
// nonces from the package Reader.
//
// Parameters:
//   - suite: CipherSuiteAES256GCM or CipherSuiteChaCha20Poly1305
//   - key: 32-byte encryption key
func NewAEAD(suite constants.CipherSuite, key []byte) (*AEAD, error) {
	return NewAEADWithReader(suite, key, Reader)
}

// NewAEADWithReader is NewAEAD with an explicit nonce source.
func NewAEADWithReader(suite constants.CipherSuite, key []byte, r io.Reader) (*AEAD, error) {
	if len(key) != constants.AESKeySize {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrInvalidKeySize)
	}
	if FIPSMode() && !suite.IsFIPSApproved() {
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrUnsupportedCipherSuite)
	}

	var aeadCipher cipher.AEAD

	switch suite {
	case constants.CipherSuiteAES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}
		aeadCipher, err = cipher.NewGCM(block)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	case constants.CipherSuiteChaCha20Poly1305:
		var err error
		aeadCipher, err = chacha20poly1305.New(key)
		if err != nil {
			return nil, qerrors.NewCryptoError("NewAEAD", err)
		}

	default:
		return nil, qerrors.NewCryptoError("NewAEAD", qerrors.ErrUnsupportedCipherSuite)
	}

	if r == nil {
		r = Reader
	}

	return &AEAD{
		cipher:   aeadCipher,
		suite:    suite,
		rand:     r,
		used:     make(map[[constants.AESNonceSize]byte]struct{}),
		maxSeals: constants.MaxMessagesPerKey,
	}, nil
}

// Seal encrypts and authenticates plaintext under a fresh random nonce.
//
// Returns:
//   - nonce: the 12-byte nonce used, never issued before under this key
//   - ciphertext: encrypted_data || auth_tag
//   - error: ErrNonceExhausted once the per-key message budget is spent,
//     ErrRandomnessUnavailable if no fresh nonce could be drawn
func (a *AEAD) Seal(plaintext, additionalData []byte) (nonce, ciphertext []byte, err error) {
	nonce, err = a.nextNonce()
	if err != nil {
		return nil, nil, err
	}

	ciphertext = a.cipher.Seal(nil, nonce, plaintext, additionalData)
	return nonce, ciphertext, nil
}

// SealWithNonce encrypts using an explicit nonce. The nonce is recorded and
// a nonce already used under this key is refused.
func (a *AEAD) SealWithNonce(nonce, plaintext, additionalData []byte) ([]byte, error) {
	if len(nonce) != constants.AESNonceSize {
		return nil, qerrors.ErrInvalidNonce
	}

	var n [constants.AESNonceSize]byte
	copy(n[:], nonce)

	a.mu.Lock()
	if _, dup := a.used[n]; dup {
		a.mu.Unlock()
		return nil, qerrors.NewCryptoError("SealWithNonce", qerrors.ErrInvalidNonce)
	}
	if a.sealed >= a.maxSeals {
		a.mu.Unlock()
		return nil, qerrors.ErrNonceExhausted
	}
	a.used[n] = struct{}{}
	a.sealed++
	a.mu.Unlock()

	return a.cipher.Seal(nil, nonce, plaintext, additionalData), nil
}

// Open verifies and decrypts ciphertext (encrypted_data || auth_tag).
//
// The tag comparison happens inside the underlying AEAD in constant time, and
// no plaintext is returned unless it succeeds.
func (a *AEAD) Open(nonce, ciphertext, additionalData []byte) ([]byte, error) {
	if len(nonce) != a.cipher.NonceSize() {
		return nil, qerrors.ErrInvalidNonce
	}
	if len(ciphertext) < a.cipher.Overhead() {
		return nil, qerrors.ErrMalformedInput
	}

	plaintext, err := a.cipher.Open(nil, nonce, ciphertext, additionalData)
	if err != nil {
		return nil, qerrors.ErrAuthenticationFailed
	}

	return plaintext, nil
}

// nextNonce draws a random nonce not yet used under this key.
func (a *AEAD) nextNonce() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.sealed >= a.maxSeals {
		return nil, qerrors.ErrNonceExhausted
	}

	var n [constants.AESNonceSize]byte
	for i := 0; i < maxNonceDraws; i++ {
		if err := ReadRandom(a.rand, n[:]); err != nil {
			return nil, err
		}
		if _, dup := a.used[n]; dup {
			continue
		}
		a.used[n] = struct{}{}
		a.sealed++
		nonce := make([]byte, constants.AESNonceSize)
		copy(nonce, n[:])
		return nonce, nil
	}

	return nil, qerrors.NewCryptoError("AEAD.nextNonce", qerrors.ErrRandomnessUnavailable)
}

// Sealed returns how many messages have been sealed under this key.
func (a *AEAD) Sealed() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sealed
}

// NonceUsed reports whether nonce has already been issued under this key.
func (a *AEAD) NonceUsed(nonce []byte) bool {
	if len(nonce) != constants.AESNonceSize {
		return false
	}
	var n [constants.AESNonceSize]byte
	copy(n[:], nonce)

	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.used[n]
	return ok
}

// Suite returns the cipher suite identifier.
func (a *AEAD) Suite() constants.CipherSuite {
	return a.suite
}

// Overhead returns the number of bytes of overhead added by encryption,
// excluding the separately carried nonce.
func (a *AEAD) Overhead() int {
	return a.cipher.Overhead()
}

// NonceSize returns the required nonce size in bytes.
func (a *AEAD) NonceSize() int {
	return a.cipher.NonceSize()
}
