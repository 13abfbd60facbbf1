// Package constants defines security parameters and size invariants for the
// Quantum-Vault key exchange comparison engine.
//
// Two parameter sets are compared side by side: ML-KEM-768 (the standardized
// form of CRYSTALS-Kyber-768, NIST Category 3) and RSA-2048 key transport.
package constants

// Product identification
const (
	// ProductName is used for domain separation in key derivation
	ProductName = "Quantum-Vault-v1"
)

// Polynomial ring parameters shared by every ML-KEM parameter set
const (
	// RingDegree is n, the degree of X^n + 1
	RingDegree = 256

	// RingModulus is q, the coefficient modulus
	RingModulus = 3329

	// RingEncodedSize is the size of a polynomial encoded with 12 bits per coefficient
	RingEncodedSize = RingDegree * 12 / 8
)

// ML-KEM-768 Parameters (NIST FIPS 203)
const (
	// KyberK is the module rank
	KyberK = 3

	// KyberEta1 is the noise parameter for secret and error vectors
	KyberEta1 = 2

	// KyberEta2 is the noise parameter for encryption errors
	KyberEta2 = 2

	// KyberDU is the compression width for the u vector
	KyberDU = 10

	// KyberDV is the compression width for v
	KyberDV = 4

	// KyberSeedSize is the size of d, z, m, rho and sigma
	KyberSeedSize = 32

	// KyberPublicKeySize is the size of the encapsulation key in bytes
	KyberPublicKeySize = KyberK*RingEncodedSize + KyberSeedSize // 1184

	// KyberPKEPrivateKeySize is the size of the inner K-PKE decryption key
	KyberPKEPrivateKeySize = KyberK * RingEncodedSize // 1152

	// KyberPrivateKeySize is the size of the decapsulation key in bytes
	KyberPrivateKeySize = KyberPKEPrivateKeySize + KyberPublicKeySize + 2*KyberSeedSize // 2400

	// KyberCiphertextSize is the size of a ciphertext in bytes
	KyberCiphertextSize = KyberK*RingDegree*KyberDU/8 + RingDegree*KyberDV/8 // 1088

	// KyberSharedSecretSize is the size of the shared secret in bytes
	KyberSharedSecretSize = 32

	// KyberKeySeedSize is the size of the d || z seed used for deterministic key generation
	KyberKeySeedSize = 2 * KyberSeedSize
)

// RSA key exchange parameters
const (
	// RSADefaultBits is the default modulus length
	RSADefaultBits = 2048

	// RSAMinBits is the smallest modulus accepted by key generation
	RSAMinBits = 1024

	// RSAPublicExponent is e
	RSAPublicExponent = 65537

	// RSADefaultMaxIterations caps the number of prime candidates drawn per key
	RSADefaultMaxIterations = 100000

	// RSAMillerRabinRounds is the number of Miller-Rabin rounds per candidate
	RSAMillerRabinRounds = 20

	// RSAPublicKeySize is the encoded modulus length for RSA-2048
	RSAPublicKeySize = RSADefaultBits / 8 // 256

	// RSACiphertextSize is the ciphertext length for RSA-2048
	RSACiphertextSize = RSADefaultBits / 8 // 256

	// RSAPrivateKeySize is the encoded n || d || p || q length for RSA-2048
	RSAPrivateKeySize = 3 * RSADefaultBits / 8 // 768

	// RSASharedSecretSize is the size of the transported secret
	RSASharedSecretSize = 32

	// RSAMinPaddingSize is the minimum number of non-zero padding bytes
	RSAMinPaddingSize = 8
)

// Symmetric Encryption Parameters
const (
	// AESKeySize is the size of AES-256 keys in bytes
	AESKeySize = 32

	// AESNonceSize is the size of AES-GCM nonce in bytes (96 bits)
	AESNonceSize = 12

	// AESTagSize is the size of AES-GCM authentication tag in bytes
	AESTagSize = 16

	// ChaCha20KeySize is the size of ChaCha20-Poly1305 keys in bytes
	ChaCha20KeySize = 32

	// ChaCha20NonceSize is the size of ChaCha20-Poly1305 nonce in bytes
	ChaCha20NonceSize = 12

	// MaxMessagesPerKey bounds messages sealed under one key. It is far below
	// the 2^32 random-nonce limit of NIST SP 800-38D and also bounds the
	// per-key nonce set a long-lived session keeps in memory.
	MaxMessagesPerKey = 1 << 20

	// MaxMessageSize is the largest plaintext accepted by the message layer
	MaxMessageSize = 1 << 20
)

// Key Derivation Parameters (SHAKE-256)
const (
	// KDFOutputSize is the default output size for key derivation in bytes
	KDFOutputSize = 32

	// SharedSecretSize is the size every key exchange must agree on
	SharedSecretSize = 32

	// DomainSeparatorMessageKey is used when deriving message keys from a shared secret
	DomainSeparatorMessageKey = "Quantum-Vault-v1-MessageKey"

	// DomainSeparatorSampler is used to expand a seed into a deterministic stream
	DomainSeparatorSampler = "Quantum-Vault-v1-Sampler"
)

// Session Parameters
const (
	// SessionIDSize is the size of session identifiers in bytes
	SessionIDSize = 16
)

// CipherSuite identifiers
type CipherSuite uint16

const (
	// CipherSuiteAES256GCM uses AES-256-GCM for symmetric encryption
	CipherSuiteAES256GCM CipherSuite = 0x0001

	// CipherSuiteChaCha20Poly1305 uses ChaCha20-Poly1305 for symmetric encryption
	CipherSuiteChaCha20Poly1305 CipherSuite = 0x0002
)

// String returns a human-readable name for the cipher suite
func (cs CipherSuite) String() string {
	switch cs {
	case CipherSuiteAES256GCM:
		return "AES-256-GCM"
	case CipherSuiteChaCha20Poly1305:
		return "ChaCha20-Poly1305"
	default:
		return "Unknown"
	}
}

// IsSupported returns true if the cipher suite is supported
func (cs CipherSuite) IsSupported() bool {
	return cs == CipherSuiteAES256GCM || cs == CipherSuiteChaCha20Poly1305
}

// IsFIPSApproved returns true if the cipher suite is FIPS 140-3 approved.
// Only AES-256-GCM is; ChaCha20-Poly1305 is not.
func (cs CipherSuite) IsFIPSApproved() bool {
	return cs == CipherSuiteAES256GCM
}

// ParseCipherSuite maps a configuration name to a CipherSuite.
// It accepts the String form as well as the short names "aes" and "chacha".
func ParseCipherSuite(name string) (CipherSuite, bool) {
	switch name {
	case "AES-256-GCM", "aes-256-gcm", "aes":
		return CipherSuiteAES256GCM, true
	case "ChaCha20-Poly1305", "chacha20-poly1305", "chacha":
		return CipherSuiteChaCha20Poly1305, true
	default:
		return 0, false
	}
}
