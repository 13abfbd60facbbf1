package crypto_test

import (
	"bytes"
	"io"
	"testing"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// TestRNGHealthCheck verifies the system source passes the health check.
func TestRNGHealthCheck(t *testing.T) {
	if err := crypto.RNGHealthCheck(nil); err != nil {
		t.Fatalf("RNGHealthCheck failed: %v", err)
	}
}

func TestRNGHealthCheckFailures(t *testing.T) {
	tests := []struct {
		name string
		r    io.Reader
	}{
		{"constant", constReader(0)},
		{"repeating", bytes.NewReader(bytes.Repeat(seq(32), 2))},
		{"short", bytes.NewReader(seq(40))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := crypto.RNGHealthCheck(tt.r)
			if !qerrors.Is(err, qerrors.ErrRandomnessUnavailable) {
				t.Errorf("RNGHealthCheck = %v, want ErrRandomnessUnavailable", err)
			}
		})
	}
}

func TestContinuousReader(t *testing.T) {
	r := crypto.NewContinuousReader(nil)
	buf := make([]byte, 64)
	for i := 0; i < 10; i++ {
		if _, err := r.Read(buf); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}

	stuck := crypto.NewContinuousReader(constReader(7))
	if _, err := stuck.Read(buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	_, err := stuck.Read(buf)
	if !qerrors.Is(err, qerrors.ErrRandomnessUnavailable) {
		t.Errorf("repeated read = %v, want ErrRandomnessUnavailable", err)
	}

	// Short reads are not compared.
	small := make([]byte, 8)
	for i := 0; i < 3; i++ {
		if _, err := stuck.Read(small); err != nil {
			t.Errorf("short read %d: %v", i, err)
		}
	}
}

func seq(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}
