package kex_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
)

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		in   string
		want kex.Algorithm
		ok   bool
	}{
		{"kyber", kex.Kyber, true},
		{"Kyber", kex.Kyber, true},
		{"ML-KEM-768", kex.Kyber, true},
		{"rsa", kex.RSA, true},
		{" RSA-2048 ", kex.RSA, true},
		{"ecdh", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, err := kex.ParseAlgorithm(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseAlgorithm(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && !qerrors.Is(err, qerrors.ErrUnsupportedAlgorithm) {
			t.Errorf("ParseAlgorithm(%q) error = %v, want ErrUnsupportedAlgorithm", tt.in, err)
		}
	}
}

func TestAlgorithmText(t *testing.T) {
	var payload struct {
		Algorithm kex.Algorithm `json:"algorithm"`
	}
	if err := json.Unmarshal([]byte(`{"algorithm":"rsa"}`), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Algorithm != kex.RSA {
		t.Errorf("unmarshal = %v, want rsa", payload.Algorithm)
	}

	out, err := json.Marshal(map[string]kex.Algorithm{"a": kex.Kyber})
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"a":"kyber"}` {
		t.Errorf("marshal = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"algorithm":"dsa"}`), &payload); !qerrors.Is(err, qerrors.ErrUnsupportedAlgorithm) {
		t.Errorf("bad algorithm error = %v, want ErrUnsupportedAlgorithm", err)
	}

	if kex.Algorithm(9).String() != "unknown" || kex.Algorithm(9).DisplayName() != "Unknown" {
		t.Error("unknown algorithm names")
	}
	if !kex.Kyber.IsQuantumResistant() || kex.RSA.IsQuantumResistant() {
		t.Error("quantum resistance flags wrong")
	}
}

func TestMechanismsRoundTrip(t *testing.T) {
	reg := kex.DefaultRegistry()
	ctx := context.Background()

	for _, alg := range kex.Algorithms {
		t.Run(alg.String(), func(t *testing.T) {
			m, err := reg.Get(alg)
			if err != nil {
				t.Fatal(err)
			}
			want, _ := kex.ExpectedSizes(alg)
			if m.Sizes() != want {
				t.Errorf("Sizes() = %+v, want %+v", m.Sizes(), want)
			}

			kp, err := m.GenerateKeyPair(ctx)
			if err != nil {
				t.Fatalf("GenerateKeyPair failed: %v", err)
			}
			if len(kp.PublicKey) != want.PublicKey || len(kp.PrivateKey) != want.PrivateKey {
				t.Errorf("key sizes = %d/%d, want %d/%d", len(kp.PublicKey), len(kp.PrivateKey), want.PublicKey, want.PrivateKey)
			}

			es, err := m.Encapsulate(kp.PublicKey)
			if err != nil {
				t.Fatalf("Encapsulate failed: %v", err)
			}
			if len(es.Ciphertext) != want.Ciphertext || len(es.SharedSecret) != want.SharedSecret {
				t.Errorf("ciphertext/secret = %d/%d, want %d/%d", len(es.Ciphertext), len(es.SharedSecret), want.Ciphertext, want.SharedSecret)
			}

			ss, err := m.Decapsulate(kp.PrivateKey, es.Ciphertext)
			if err != nil {
				t.Fatalf("Decapsulate failed: %v", err)
			}
			if !bytes.Equal(ss, es.SharedSecret) {
				t.Error("shared secrets differ")
			}

			// A ciphertext of the other algorithm's length is rejected.
			if _, err := m.Decapsulate(kp.PrivateKey, make([]byte, want.Ciphertext+1)); !qerrors.Is(err, qerrors.ErrInvalidCiphertext) {
				t.Errorf("wrong-length ciphertext error = %v, want ErrInvalidCiphertext", err)
			}
			if _, err := m.Encapsulate(kp.PublicKey[:10]); !qerrors.Is(err, qerrors.ErrInvalidPublicKey) {
				t.Errorf("short public key error = %v, want ErrInvalidPublicKey", err)
			}

			kp.Zeroize()
			es.Zeroize()
			if kp.PrivateKey != nil || es.SharedSecret != nil {
				t.Error("Zeroize should clear secrets")
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := kex.NewRegistry(kex.NewKyber(nil))
	if _, err := reg.Get(kex.RSA); !qerrors.Is(err, qerrors.ErrUnsupportedAlgorithm) {
		t.Errorf("missing mechanism error = %v, want ErrUnsupportedAlgorithm", err)
	}
	reg.Register(kex.NewRSA(nil, rsakex.Options{}))
	m, err := reg.Get(kex.RSA)
	if err != nil {
		t.Fatal(err)
	}
	if m.Sizes().PublicKey != 256 {
		t.Errorf("zero options should default to RSA-2048, got %d-byte key", m.Sizes().PublicKey)
	}
}

func TestKyberHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := kex.NewKyber(nil).GenerateKeyPair(ctx); err == nil {
		t.Error("expected an error from a cancelled context")
	}
}
