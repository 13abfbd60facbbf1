package hybrid_test

import (
	"testing"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/hybrid"
)

// FuzzParseCipherText checks that any accepted text re-encodes to a form
// that parses back to the same fields.
//
//	go test -fuzz=FuzzParseCipherText -fuzztime=30s ./pkg/hybrid/
func FuzzParseCipherText(f *testing.F) {
	secret := make([]byte, 32)
	valid, err := hybrid.EncryptMessage("hello quantum world", secret)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add(":")
	f.Add("000000000000000000000000:")
	f.Add("000000000000000000000000:AAAAAAAAAAAAAAAAAAAAAA==")

	f.Fuzz(func(t *testing.T, s string) {
		ct, err := hybrid.ParseCipherText(s)
		if err != nil {
			if !qerrors.Is(err, qerrors.ErrMalformedInput) {
				t.Fatalf("ParseCipherText error %v is not ErrMalformedInput", err)
			}
			return
		}
		if len(ct.Nonce) != constants.AESNonceSize || len(ct.Tag) != constants.AESTagSize {
			t.Fatalf("nonce %d tag %d", len(ct.Nonce), len(ct.Tag))
		}
		again, err := hybrid.ParseCipherText(ct.Encode())
		if err != nil {
			t.Fatalf("re-parse: %v", err)
		}
		if again.Encode() != ct.Encode() {
			t.Fatal("encoding is not stable")
		}
	})
}

// FuzzDecryptMessage checks that tampered or random input never decrypts.
func FuzzDecryptMessage(f *testing.F) {
	secret := make([]byte, 32)
	for i := range secret {
		secret[i] = byte(i)
	}
	valid, err := hybrid.EncryptMessage("hello quantum world", secret)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(valid)
	f.Add("")
	f.Add("zz:zz")

	f.Fuzz(func(t *testing.T, s string) {
		got, err := hybrid.DecryptMessage(s, secret)
		if err == nil && got != "hello quantum world" {
			t.Fatalf("forged plaintext %q", got)
		}
	})
}
