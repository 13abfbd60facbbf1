package crypto

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// healthSampleSize is the block size compared by the RNG health checks.
const healthSampleSize = 32

// RNGHealthCheck draws two samples from r (Reader when nil) and verifies
// that neither is constant and that they differ. Failures wrap
// ErrRandomnessUnavailable.
func RNGHealthCheck(r io.Reader) error {
	s1 := make([]byte, healthSampleSize)
	s2 := make([]byte, healthSampleSize)
	if err := ReadRandom(r, s1); err != nil {
		return err
	}
	if err := ReadRandom(r, s2); err != nil {
		return err
	}

	switch {
	case constantBlock(s1) || constantBlock(s2):
		return rngFailure("sample has no variation")
	case bytes.Equal(s1, s2):
		return rngFailure("identical consecutive samples")
	}
	return nil
}

func constantBlock(b []byte) bool {
	for i := 1; i < len(b); i++ {
		if b[i] != b[0] {
			return false
		}
	}
	return true
}

func rngFailure(reason string) error {
	return qerrors.NewCryptoError("RNGHealthCheck",
		fmt.Errorf("%w: %s", qerrors.ErrRandomnessUnavailable, reason))
}

// ContinuousReader wraps a randomness source with the continuous test:
// every read of at least healthSampleSize bytes is compared with the
// previous one and a repeat fails with ErrRandomnessUnavailable.
type ContinuousReader struct {
	src io.Reader

	mu   sync.Mutex
	last []byte
}

// NewContinuousReader wraps src, or Reader when src is nil.
func NewContinuousReader(src io.Reader) *ContinuousReader {
	if src == nil {
		src = Reader
	}
	return &ContinuousReader{src: src}
}

func (c *ContinuousReader) Read(p []byte) (int, error) {
	n, err := io.ReadFull(c.src, p)
	if err != nil || n < healthSampleSize {
		return n, err
	}

	block := p[:healthSampleSize]
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last != nil && bytes.Equal(c.last, block) {
		return 0, rngFailure("repeated output")
	}
	if c.last == nil {
		c.last = make([]byte, healthSampleSize)
	}
	copy(c.last, block)
	return n, nil
}
