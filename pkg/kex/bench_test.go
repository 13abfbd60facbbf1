package kex_test

import (
	"context"
	"testing"

	"github.com/pzverkov/quantum-vault/pkg/kex"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
)

// benchMechanisms covers both algorithms at their default sizes.
func benchMechanisms() []kex.Mechanism {
	return []kex.Mechanism{kex.NewKyber(nil), kex.NewRSA(nil, rsakex.DefaultOptions())}
}

func BenchmarkGenerateKeyPair(b *testing.B) {
	for _, m := range benchMechanisms() {
		b.Run(m.Algorithm().String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := m.GenerateKeyPair(context.Background()); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkEncapsulate(b *testing.B) {
	for _, m := range benchMechanisms() {
		kp, err := m.GenerateKeyPair(context.Background())
		if err != nil {
			b.Fatal(err)
		}
		b.Run(m.Algorithm().String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := m.Encapsulate(kp.PublicKey); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecapsulate(b *testing.B) {
	for _, m := range benchMechanisms() {
		kp, err := m.GenerateKeyPair(context.Background())
		if err != nil {
			b.Fatal(err)
		}
		es, err := m.Encapsulate(kp.PublicKey)
		if err != nil {
			b.Fatal(err)
		}
		b.Run(m.Algorithm().String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := m.Decapsulate(kp.PrivateKey, es.Ciphertext); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecapsulateParallel(b *testing.B) {
	m := kex.NewKyber(nil)
	kp, _ := m.GenerateKeyPair(context.Background())
	es, _ := m.Encapsulate(kp.PublicKey)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = m.Decapsulate(kp.PrivateKey, es.Ciphertext)
		}
	})
}
