// Package kex puts the post-quantum KEM and RSA key transport behind one
// capability interface so sessions can run either without knowing which.
package kex

import (
	"context"
	"fmt"
	"strings"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// Algorithm identifies a key exchange algorithm.
type Algorithm uint8

const (
	// Kyber is ML-KEM-768 (CRYSTALS-Kyber-768).
	Kyber Algorithm = iota + 1

	// RSA is RSA-2048 key transport.
	RSA
)

// Algorithms lists every supported algorithm in display order.
var Algorithms = []Algorithm{Kyber, RSA}

// String returns the wire name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case Kyber:
		return "kyber"
	case RSA:
		return "rsa"
	default:
		return "unknown"
	}
}

// DisplayName returns a human-readable name including the parameter set.
func (a Algorithm) DisplayName() string {
	switch a {
	case Kyber:
		return "CRYSTALS-Kyber-768 (ML-KEM-768)"
	case RSA:
		return "RSA-2048"
	default:
		return "Unknown"
	}
}

// IsQuantumResistant reports whether the algorithm resists known quantum attacks.
func (a Algorithm) IsQuantumResistant() bool {
	return a == Kyber
}

// ParseAlgorithm accepts "kyber", "ml-kem-768", "rsa" and "rsa-2048", case-insensitively.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "kyber", "kyber768", "kyber-768", "ml-kem-768", "mlkem768":
		return Kyber, nil
	case "rsa", "rsa2048", "rsa-2048":
		return RSA, nil
	default:
		return 0, fmt.Errorf("%w: %q", qerrors.ErrUnsupportedAlgorithm, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Algorithm) MarshalText() ([]byte, error) {
	if a != Kyber && a != RSA {
		return nil, fmt.Errorf("%w: %d", qerrors.ErrUnsupportedAlgorithm, a)
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Algorithm) UnmarshalText(b []byte) error {
	parsed, err := ParseAlgorithm(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sizes are the fixed encoded sizes of an algorithm's artifacts, in bytes.
type Sizes struct {
	PublicKey    int `json:"public_key"`
	PrivateKey   int `json:"private_key"`
	Ciphertext   int `json:"ciphertext"`
	SharedSecret int `json:"shared_secret"`
}

// KeyPair is an encoded key pair. The private key never leaves the session
// that generated it.
type KeyPair struct {
	Algorithm  Algorithm
	PublicKey  []byte
	PrivateKey []byte
}

// Zeroize erases the private key.
func (kp *KeyPair) Zeroize() {
	if kp == nil {
		return
	}
	crypto.Zeroize(kp.PrivateKey)
	kp.PrivateKey = nil
}

// EncapsulatedSecret is the result of encapsulating to a public key: the
// 32-byte shared secret and the ciphertext that transports it.
type EncapsulatedSecret struct {
	Algorithm    Algorithm
	SharedSecret []byte
	Ciphertext   []byte
}

// Zeroize erases the shared secret.
func (es *EncapsulatedSecret) Zeroize() {
	if es == nil {
		return
	}
	crypto.Zeroize(es.SharedSecret)
	es.SharedSecret = nil
}

// Mechanism is the capability every key exchange algorithm provides.
//
// For KEMs Encapsulate/Decapsulate are the native operations; for RSA they
// are secret transport (Exchange) and recovery (Recover).
type Mechanism interface {
	// Algorithm identifies the mechanism.
	Algorithm() Algorithm

	// Sizes reports the fixed artifact sizes.
	Sizes() Sizes

	// GenerateKeyPair creates a fresh key pair. It honours ctx cancellation
	// where generation can take long.
	GenerateKeyPair(ctx context.Context) (*KeyPair, error)

	// Encapsulate produces a fresh shared secret for publicKey.
	Encapsulate(publicKey []byte) (*EncapsulatedSecret, error)

	// Decapsulate recovers the shared secret from ciphertext.
	Decapsulate(privateKey, ciphertext []byte) ([]byte, error)
}
