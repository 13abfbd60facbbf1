// Package hybrid implements the symmetric half of the hybrid scheme: a shared
// secret from either key exchange is turned into a message key with SHAKE-256,
// and messages are sealed with an AEAD under fresh random nonces.
//
// Encrypted messages travel as text:
//
//	hex(nonce) ":" base64(ciphertext || tag)
package hybrid

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// DefaultSuite is the AEAD used when none is configured.
const DefaultSuite = constants.CipherSuiteAES256GCM

// CipherText is a sealed message. Tag is kept apart from Payload so the
// parts can be displayed separately.
type CipherText struct {
	Nonce   []byte
	Payload []byte
	Tag     []byte
}

// Encode renders the ciphertext as hex(nonce):base64(payload||tag).
func (ct *CipherText) Encode() string {
	sealed := make([]byte, 0, len(ct.Payload)+len(ct.Tag))
	sealed = append(sealed, ct.Payload...)
	sealed = append(sealed, ct.Tag...)
	return hex.EncodeToString(ct.Nonce) + ":" + base64.StdEncoding.EncodeToString(sealed)
}

// Size returns the total number of encrypted bytes, nonce included.
func (ct *CipherText) Size() int {
	return len(ct.Nonce) + len(ct.Payload) + len(ct.Tag)
}

// ParseCipherText decodes the text form produced by Encode. Any structural
// problem is reported as ErrMalformedInput.
func ParseCipherText(s string) (*CipherText, error) {
	nonceHex, body, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return nil, malformed("missing ':' separator")
	}

	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, malformed("nonce is not hex")
	}
	if len(nonce) != constants.AESNonceSize {
		return nil, malformed(fmt.Sprintf("nonce is %d bytes, want %d", len(nonce), constants.AESNonceSize))
	}

	sealed, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, malformed("payload is not base64")
	}
	if len(sealed) < constants.AESTagSize {
		return nil, malformed("payload shorter than the authentication tag")
	}

	split := len(sealed) - constants.AESTagSize
	return &CipherText{
		Nonce:   nonce,
		Payload: sealed[:split],
		Tag:     sealed[split:],
	}, nil
}

func malformed(reason string) error {
	return qerrors.NewCryptoError("hybrid.ParseCipherText", fmt.Errorf("%w: %s", qerrors.ErrMalformedInput, reason))
}

// DeriveKey derives the 32-byte message key from a key-exchange shared secret.
func DeriveKey(sharedSecret []byte) ([]byte, error) {
	return crypto.DeriveMessageKey(sharedSecret)
}

// Cipher seals and opens messages under one message key. Every nonce it
// issues is remembered, so a nonce is never used twice under the key.
// A Cipher is safe for concurrent use.
type Cipher struct {
	aead *crypto.AEAD
}

// NewCipher builds a Cipher from a 32-byte message key.
func NewCipher(suite constants.CipherSuite, key []byte) (*Cipher, error) {
	return NewCipherWithReader(suite, key, nil)
}

// NewCipherWithReader is NewCipher with an explicit nonce source.
func NewCipherWithReader(suite constants.CipherSuite, key []byte, r io.Reader) (*Cipher, error) {
	aead, err := crypto.NewAEADWithReader(suite, key, r)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromSecret derives the message key from sharedSecret and builds a Cipher.
func NewCipherFromSecret(suite constants.CipherSuite, sharedSecret []byte) (*Cipher, error) {
	key, err := DeriveKey(sharedSecret)
	if err != nil {
		return nil, err
	}
	defer crypto.Zeroize(key)
	return NewCipher(suite, key)
}

// Encrypt seals plaintext under a fresh nonce. aad is authenticated but not
// encrypted and may be nil.
func (c *Cipher) Encrypt(plaintext, aad []byte) (*CipherText, error) {
	if len(plaintext) > constants.MaxMessageSize {
		return nil, qerrors.NewCryptoError("hybrid.Encrypt", fmt.Errorf("%w: message too large", qerrors.ErrMalformedInput))
	}

	nonce, sealed, err := c.aead.Seal(plaintext, aad)
	if err != nil {
		return nil, err
	}

	split := len(sealed) - c.aead.Overhead()
	return &CipherText{
		Nonce:   nonce,
		Payload: sealed[:split],
		Tag:     sealed[split:],
	}, nil
}

// Decrypt verifies and opens ct. The plaintext is returned only if the tag
// verifies; otherwise the error is ErrAuthenticationFailed.
func (c *Cipher) Decrypt(ct *CipherText, aad []byte) ([]byte, error) {
	if ct == nil || len(ct.Nonce) != c.aead.NonceSize() || len(ct.Tag) != c.aead.Overhead() {
		return nil, qerrors.NewCryptoError("hybrid.Decrypt", qerrors.ErrMalformedInput)
	}

	sealed := make([]byte, 0, len(ct.Payload)+len(ct.Tag))
	sealed = append(sealed, ct.Payload...)
	sealed = append(sealed, ct.Tag...)

	plaintext, err := c.aead.Open(ct.Nonce, sealed, aad)
	if err != nil {
		return nil, qerrors.NewCryptoError("hybrid.Decrypt", err)
	}
	return plaintext, nil
}

// EncryptString encrypts a UTF-8 message and returns its text encoding.
func (c *Cipher) EncryptString(message string) (string, error) {
	ct, err := c.Encrypt([]byte(message), nil)
	if err != nil {
		return "", err
	}
	return ct.Encode(), nil
}

// DecryptString parses and decrypts a text-encoded message.
func (c *Cipher) DecryptString(encoded string) (string, error) {
	ct, err := ParseCipherText(encoded)
	if err != nil {
		return "", err
	}
	plaintext, err := c.Decrypt(ct, nil)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(plaintext) {
		return "", qerrors.NewCryptoError("hybrid.DecryptString", fmt.Errorf("%w: plaintext is not UTF-8", qerrors.ErrMalformedInput))
	}
	return string(plaintext), nil
}

// Suite returns the AEAD in use.
func (c *Cipher) Suite() constants.CipherSuite {
	return c.aead.Suite()
}

// Sealed returns how many messages this Cipher has encrypted.
func (c *Cipher) Sealed() uint64 {
	return c.aead.Sealed()
}

// NonceUsed reports whether nonce was issued by this Cipher.
func (c *Cipher) NonceUsed(nonce []byte) bool {
	return c.aead.NonceUsed(nonce)
}

// EncryptMessage is the stateless form: derive the key from sharedSecret and
// encrypt message with the default suite. Each call uses a fresh Cipher, and
// the nonce is fresh randomness.
func EncryptMessage(message string, sharedSecret []byte) (string, error) {
	c, err := NewCipherFromSecret(DefaultSuite, sharedSecret)
	if err != nil {
		return "", err
	}
	return c.EncryptString(message)
}

// DecryptMessage is the stateless inverse of EncryptMessage.
func DecryptMessage(encoded string, sharedSecret []byte) (string, error) {
	c, err := NewCipherFromSecret(DefaultSuite, sharedSecret)
	if err != nil {
		return "", err
	}
	return c.DecryptString(encoded)
}
