// Package errors defines custom error types for the Quantum-Vault engine.
// These errors provide detailed information for debugging while maintaining
// security by not leaking key material or secrets in error messages.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for randomness and key material
var (
	// ErrRandomnessUnavailable indicates the system entropy source failed
	ErrRandomnessUnavailable = errors.New("random: randomness unavailable")

	// ErrInvalidKeySize indicates that a key or secret has an incorrect size
	ErrInvalidKeySize = errors.New("crypto: invalid key size")
)

// Sentinel errors for key exchange operations (KEM and RSA)
var (
	// ErrInvalidPublicKey indicates that a public key is malformed or has the wrong length
	ErrInvalidPublicKey = errors.New("kex: invalid public key")

	// ErrInvalidPrivateKey indicates that a private key is malformed or has the wrong length
	ErrInvalidPrivateKey = errors.New("kex: invalid private key")

	// ErrInvalidCiphertext indicates that a key-exchange ciphertext is malformed
	ErrInvalidCiphertext = errors.New("kex: invalid ciphertext")

	// ErrDecapsulationFailed indicates the two parties did not agree on a secret
	ErrDecapsulationFailed = errors.New("kex: decapsulation failed")

	// ErrKeyGenerationTimeout indicates prime search exceeded its iteration cap or deadline
	ErrKeyGenerationTimeout = errors.New("kex: key generation timeout")

	// ErrUnsupportedAlgorithm indicates an unknown key exchange algorithm
	ErrUnsupportedAlgorithm = errors.New("kex: unsupported algorithm")
)

// Sentinel errors for AEAD operations
var (
	// ErrAuthenticationFailed indicates AEAD tag verification failed
	ErrAuthenticationFailed = errors.New("aead: authentication failed")

	// ErrMalformedInput indicates an encrypted message could not be parsed
	ErrMalformedInput = errors.New("aead: malformed input")

	// ErrInvalidNonce indicates the nonce size is incorrect
	ErrInvalidNonce = errors.New("aead: invalid nonce size")

	// ErrNonceExhausted indicates the message budget for the current key is spent
	ErrNonceExhausted = errors.New("aead: nonce space exhausted, rekey required")

	// ErrUnsupportedCipherSuite indicates an unsupported cipher suite
	ErrUnsupportedCipherSuite = errors.New("aead: unsupported cipher suite")
)

// Sentinel errors for exchange sessions
var (
	// ErrInvalidState indicates an operation was attempted out of order
	ErrInvalidState = errors.New("session: invalid state")

	// ErrSessionClosed indicates the session has been closed and its keys erased
	ErrSessionClosed = errors.New("session: closed")

	// ErrSessionNotFound indicates an unknown or expired session identifier
	ErrSessionNotFound = errors.New("session: not found")
)

// CryptoError wraps a cryptographic error with additional context
type CryptoError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// SessionError wraps a failure inside an exchange session step.
type SessionError struct {
	Algorithm string // Key exchange algorithm, e.g. "kyber"
	Phase     string // Step that failed, e.g. "keygen", "exchange"
	Err       error  // Underlying error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("session %s %s: %v", e.Algorithm, e.Phase, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new SessionError
func NewSessionError(algorithm, phase string, err error) *SessionError {
	return &SessionError{Algorithm: algorithm, Phase: phase, Err: err}
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
