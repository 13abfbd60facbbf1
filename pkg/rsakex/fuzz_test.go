package rsakex_test

import (
	"bytes"
	"context"
	"testing"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
)

// FuzzRecover feeds arbitrary ciphertexts to a 1024-bit key. Anything other
// than a correctly padded encryption is ErrInvalidCiphertext.
//
//	go test -fuzz=FuzzRecover -fuzztime=30s ./pkg/rsakex/
func FuzzRecover(f *testing.F) {
	priv, err := rsakex.GenerateKey(context.Background(), nil, rsakex.Options{Bits: 1024, MaxIterations: 100000})
	if err != nil {
		f.Fatal(err)
	}
	ct, secret, err := rsakex.Exchange(priv.Public().Bytes(), nil)
	if err != nil {
		f.Fatal(err)
	}

	f.Add(ct)
	f.Add([]byte{})
	f.Add(make([]byte, priv.Size()))
	f.Add(bytes.Repeat([]byte{0xff}, priv.Size()))

	f.Fuzz(func(t *testing.T, data []byte) {
		got, err := priv.Recover(data)
		if err != nil {
			if !qerrors.Is(err, qerrors.ErrInvalidCiphertext) {
				t.Fatalf("Recover error %v is not ErrInvalidCiphertext", err)
			}
			return
		}
		if len(got) != rsakex.SecretSize {
			t.Fatalf("secret is %d bytes", len(got))
		}
		if bytes.Equal(data, ct) && !bytes.Equal(got, secret) {
			t.Fatal("genuine ciphertext recovered the wrong secret")
		}
	})
}

// FuzzParsePublicKey checks that parsing arbitrary bytes never panics.
func FuzzParsePublicKey(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0x01})
	f.Add(bytes.Repeat([]byte{0xff}, 256))

	f.Fuzz(func(t *testing.T, data []byte) {
		pub, err := rsakex.ParsePublicKey(data)
		if err != nil {
			return
		}
		if pub.Size() != len(data) {
			t.Fatalf("Size() = %d for %d input bytes", pub.Size(), len(data))
		}
	})
}
