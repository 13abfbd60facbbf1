// Key derivation over SHAKE-256 (FIPS 202).
//
// Every field absorbed into the sponge carries a 4-byte big-endian length
// prefix, so distinct (domain, inputs) tuples never collide:
//
//	K = SHAKE-256(len(domain) || domain || len(input) || input, outLen)
//
// The hybrid message key is the 32-byte output under
// constants.DomainSeparatorMessageKey of an exchange's shared secret.
package crypto

import (
	"encoding/binary"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// maxDeriveOutput bounds a single derivation to 1 MiB.
const maxDeriveOutput = 1 << 20

// prefixWriter absorbs length-prefixed fields.
type prefixWriter struct {
	w   io.Writer
	buf [4]byte
}

func (p *prefixWriter) count(n int) {
	binary.BigEndian.PutUint32(p.buf[:], uint32(n))
	_, _ = p.w.Write(p.buf[:])
}

func (p *prefixWriter) field(b []byte) {
	p.count(len(b))
	_, _ = p.w.Write(b)
}

func squeeze(op, domain string, outputLen int, absorb func(*prefixWriter)) ([]byte, error) {
	if outputLen <= 0 || outputLen > maxDeriveOutput {
		return nil, qerrors.NewCryptoError(op, qerrors.ErrInvalidKeySize)
	}
	xof := sha3.NewShake256()
	pw := &prefixWriter{w: xof}
	pw.field([]byte(domain))
	absorb(pw)

	out := make([]byte, outputLen)
	_, _ = xof.Read(out)
	return out, nil
}

// DeriveKey returns outputLen bytes of SHAKE-256 over domain and input.
func DeriveKey(domain string, input []byte, outputLen int) ([]byte, error) {
	return squeeze("DeriveKey", domain, outputLen, func(pw *prefixWriter) {
		pw.field(input)
	})
}

// DeriveKeyMultiple is DeriveKey over several inputs. The input count is
// absorbed first, so ("ab", "c") and ("a", "bc") derive different keys.
func DeriveKeyMultiple(domain string, inputs [][]byte, outputLen int) ([]byte, error) {
	return squeeze("DeriveKeyMultiple", domain, outputLen, func(pw *prefixWriter) {
		pw.count(len(inputs))
		for _, in := range inputs {
			pw.field(in)
		}
	})
}

// DeriveMessageKey maps a shared secret to the hybrid cipher's 32-byte key.
func DeriveMessageKey(sharedSecret []byte) ([]byte, error) {
	if len(sharedSecret) == 0 {
		return nil, qerrors.NewCryptoError("DeriveMessageKey", qerrors.ErrInvalidKeySize)
	}
	return DeriveKey(constants.DomainSeparatorMessageKey, sharedSecret, constants.AESKeySize)
}

// Fingerprint is SHA3-256 over the length-prefixed components. Sessions log
// it in place of public keys and ciphertexts.
func Fingerprint(components ...[]byte) []byte {
	h := sha3.New256()
	pw := &prefixWriter{w: h}
	pw.count(len(components))
	for _, c := range components {
		pw.field(c)
	}
	return h.Sum(nil)
}
