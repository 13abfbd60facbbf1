package hybrid_test

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/hybrid"
)

func newSecret(t *testing.T) []byte {
	t.Helper()
	s, err := crypto.SecureRandomBytes(32)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestHelloQuantumWorld(t *testing.T) {
	secret := newSecret(t)

	enc, err := hybrid.EncryptMessage("hello quantum world", secret)
	if err != nil {
		t.Fatalf("EncryptMessage failed: %v", err)
	}
	if strings.Contains(enc, "hello") {
		t.Error("encoded message leaks plaintext")
	}

	got, err := hybrid.DecryptMessage(enc, secret)
	if err != nil {
		t.Fatalf("DecryptMessage failed: %v", err)
	}
	if got != "hello quantum world" {
		t.Errorf("DecryptMessage = %q, want %q", got, "hello quantum world")
	}
}

func TestEncodingShape(t *testing.T) {
	c, err := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, newSecret(t))
	if err != nil {
		t.Fatal(err)
	}

	enc, err := c.EncryptString("abc")
	if err != nil {
		t.Fatal(err)
	}
	nonceHex, body, ok := strings.Cut(enc, ":")
	if !ok {
		t.Fatalf("encoding %q has no separator", enc)
	}
	if n, err := hex.DecodeString(nonceHex); err != nil || len(n) != constants.AESNonceSize {
		t.Errorf("nonce part %q is not %d hex bytes", nonceHex, constants.AESNonceSize)
	}
	if sealed, err := base64.StdEncoding.DecodeString(body); err != nil || len(sealed) != 3+constants.AESTagSize {
		t.Errorf("payload part %q decodes to %d bytes, want %d", body, len(sealed), 3+constants.AESTagSize)
	}

	ct, err := hybrid.ParseCipherText(enc)
	if err != nil {
		t.Fatal(err)
	}
	if ct.Encode() != enc {
		t.Error("Encode(Parse(x)) != x")
	}
	if ct.Size() != constants.AESNonceSize+3+constants.AESTagSize {
		t.Errorf("Size() = %d", ct.Size())
	}
}

func TestRoundTripBothSuites(t *testing.T) {
	suites := []constants.CipherSuite{constants.CipherSuiteAES256GCM}
	if !crypto.FIPSMode() {
		suites = append(suites, constants.CipherSuiteChaCha20Poly1305)
	}

	messages := []string{"", "a", "hello quantum world", strings.Repeat("x", 4096), "ünïcødé ✓"}
	for _, suite := range suites {
		t.Run(suite.String(), func(t *testing.T) {
			c, err := hybrid.NewCipherFromSecret(suite, newSecret(t))
			if err != nil {
				t.Fatal(err)
			}
			for _, m := range messages {
				enc, err := c.EncryptString(m)
				if err != nil {
					t.Fatalf("EncryptString(%d bytes) failed: %v", len(m), err)
				}
				got, err := c.DecryptString(enc)
				if err != nil {
					t.Fatalf("DecryptString failed: %v", err)
				}
				if got != m {
					t.Errorf("round trip mismatch for %d-byte message", len(m))
				}
			}
		})
	}
}

func TestTamperDetection(t *testing.T) {
	c, err := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, newSecret(t))
	if err != nil {
		t.Fatal(err)
	}
	ct, err := c.Encrypt([]byte("transfer 100 coins"), nil)
	if err != nil {
		t.Fatal(err)
	}

	flip := func(b []byte, i int) []byte {
		out := append([]byte(nil), b...)
		out[i] ^= 0x01
		return out
	}

	tests := []struct {
		name string
		ct   *hybrid.CipherText
	}{
		{"payload", &hybrid.CipherText{Nonce: ct.Nonce, Payload: flip(ct.Payload, 0), Tag: ct.Tag}},
		{"tag", &hybrid.CipherText{Nonce: ct.Nonce, Payload: ct.Payload, Tag: flip(ct.Tag, 15)}},
		{"nonce", &hybrid.CipherText{Nonce: flip(ct.Nonce, 3), Payload: ct.Payload, Tag: ct.Tag}},
		{"truncated payload", &hybrid.CipherText{Nonce: ct.Nonce, Payload: ct.Payload[1:], Tag: ct.Tag}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := c.Decrypt(tt.ct, nil)
			if !qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
				t.Errorf("error = %v, want ErrAuthenticationFailed", err)
			}
			if pt != nil {
				t.Error("plaintext returned despite failed authentication")
			}
		})
	}

	if _, err := c.Decrypt(ct, []byte("other aad")); !qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("wrong aad error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestWrongKey(t *testing.T) {
	enc, err := hybrid.EncryptMessage("secret", newSecret(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := hybrid.DecryptMessage(enc, newSecret(t)); !qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
		t.Errorf("error = %v, want ErrAuthenticationFailed", err)
	}
}

func TestMalformedInput(t *testing.T) {
	secret := newSecret(t)
	validNonce := strings.Repeat("00", constants.AESNonceSize)
	validBody := base64.StdEncoding.EncodeToString(make([]byte, 20))

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no separator", validNonce + validBody},
		{"bad hex", "zz" + validNonce[2:] + ":" + validBody},
		{"short nonce", "0011:" + validBody},
		{"bad base64", validNonce + ":***"},
		{"shorter than tag", validNonce + ":" + base64.StdEncoding.EncodeToString(make([]byte, 8))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := hybrid.DecryptMessage(tt.in, secret); !qerrors.Is(err, qerrors.ErrMalformedInput) {
				t.Errorf("error = %v, want ErrMalformedInput", err)
			}
		})
	}

	c, _ := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, secret)
	if _, err := c.Decrypt(nil, nil); !qerrors.Is(err, qerrors.ErrMalformedInput) {
		t.Errorf("nil ciphertext error = %v, want ErrMalformedInput", err)
	}
	if _, err := c.Decrypt(&hybrid.CipherText{Nonce: make([]byte, 12), Tag: make([]byte, 4)}, nil); !qerrors.Is(err, qerrors.ErrMalformedInput) {
		t.Errorf("short tag error = %v, want ErrMalformedInput", err)
	}
}

func TestNonceUniquenessAcrossMessages(t *testing.T) {
	c, err := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, newSecret(t))
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		ct, err := c.Encrypt([]byte("same plaintext"), nil)
		if err != nil {
			t.Fatal(err)
		}
		if seen[string(ct.Nonce)] {
			t.Fatalf("nonce reused at message %d", i)
		}
		seen[string(ct.Nonce)] = true
		if !c.NonceUsed(ct.Nonce) {
			t.Fatal("issued nonce not tracked")
		}
	}
	if c.Sealed() != 500 {
		t.Errorf("Sealed() = %d, want 500", c.Sealed())
	}
}

func TestSameSecretSameKey(t *testing.T) {
	secret := newSecret(t)
	k1, err := hybrid.DeriveKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := hybrid.DeriveKey(secret)
	if !bytes.Equal(k1, k2) || len(k1) != 32 {
		t.Error("DeriveKey must be deterministic and 32 bytes")
	}

	// Different Cipher instances over the same secret interoperate.
	a, _ := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, secret)
	b, _ := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, secret)
	enc, _ := a.EncryptString("cross instance")
	got, err := b.DecryptString(enc)
	if err != nil || got != "cross instance" {
		t.Errorf("cross-instance decrypt = %q, %v", got, err)
	}
}

func TestInvalidUTF8(t *testing.T) {
	c, _ := hybrid.NewCipherFromSecret(hybrid.DefaultSuite, newSecret(t))
	ct, err := c.Encrypt([]byte{0xff, 0xfe}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.DecryptString(ct.Encode()); !qerrors.Is(err, qerrors.ErrMalformedInput) {
		t.Errorf("error = %v, want ErrMalformedInput", err)
	}
}

func TestEmptySecret(t *testing.T) {
	if _, err := hybrid.EncryptMessage("x", nil); !qerrors.Is(err, qerrors.ErrInvalidKeySize) {
		t.Errorf("error = %v, want ErrInvalidKeySize", err)
	}
}
