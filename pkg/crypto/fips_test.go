package crypto_test

import (
	"errors"
	"testing"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

func TestFIPSModeGatesChaCha(t *testing.T) {
	_, err := crypto.NewAEAD(constants.CipherSuiteChaCha20Poly1305, testKey())
	if crypto.FIPSMode() {
		if !errors.Is(err, qerrors.ErrUnsupportedCipherSuite) {
			t.Fatalf("fips build accepted ChaCha20-Poly1305: %v", err)
		}
		return
	}
	if err != nil {
		t.Fatalf("ChaCha20-Poly1305 rejected outside fips build: %v", err)
	}
}

func TestFIPSModeAllowsAESGCM(t *testing.T) {
	if _, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, testKey()); err != nil {
		t.Fatalf("AES-256-GCM rejected: %v", err)
	}
}
