// Package crypto provides the cryptographic primitives shared by the Quantum-Vault
// engine: the randomness source, SHAKE-256 key derivation, authenticated
// encryption and a reference ML-KEM-768 implementation used for cross-checks.
//
// Security Note: All production randomness comes from crypto/rand, which sources
// entropy from the operating system's CSPRNG. Deterministic readers exist only to
// reproduce test vectors.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// Reader is an io.Reader that returns cryptographically secure random bytes.
// It is stateless and safe for concurrent use.
var Reader io.Reader = rand.Reader

// SecureRandom reads cryptographically secure random bytes into the provided slice.
//
// This function will only return an error if the system's random number generator
// fails, which surfaces as ErrRandomnessUnavailable.
func SecureRandom(b []byte) error {
	return ReadRandom(Reader, b)
}

// SecureRandomBytes returns n cryptographically secure random bytes.
func SecureRandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if err := SecureRandom(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadRandom fills b from r. A short read or read error from the source is
// reported as ErrRandomnessUnavailable.
func ReadRandom(r io.Reader, b []byte) error {
	if r == nil {
		r = Reader
	}
	if _, err := io.ReadFull(r, b); err != nil {
		return qerrors.NewCryptoError("ReadRandom",
			fmt.Errorf("%w: %v", qerrors.ErrRandomnessUnavailable, err))
	}
	return nil
}

// deterministicReader expands a seed into an unbounded SHAKE-256 stream.
type deterministicReader struct {
	xof sha3.ShakeHash
}

// NewDeterministicReader returns a reader whose output is fully determined by
// seed. Two readers built from the same seed yield identical streams.
//
// It must never be used for production keys.
func NewDeterministicReader(seed []byte) io.Reader {
	h := sha3.NewShake256()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(constants.DomainSeparatorSampler)))
	h.Write(lenBuf[:])
	h.Write([]byte(constants.DomainSeparatorSampler))
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(seed)))
	h.Write(lenBuf[:])
	h.Write(seed)
	return &deterministicReader{xof: h}
}

func (r *deterministicReader) Read(p []byte) (int, error) {
	return r.xof.Read(p)
}

// ConstantTimeCompare compares two byte slices in constant time.
// Returns true if the slices are equal, false otherwise.
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Zeroize overwrites sensitive data with zeros.
//
// Note: The Go runtime may have already copied the data, and the compiler may
// optimize away the zeroing. This is best effort only.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ZeroizeMultiple erases multiple byte slices.
func ZeroizeMultiple(slices ...[]byte) {
	for _, s := range slices {
		Zeroize(s)
	}
}
