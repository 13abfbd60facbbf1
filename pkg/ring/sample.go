package ring

import (
	"io"

	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// xofBlockSize is the SHAKE-128 rate, read in whole blocks during rejection sampling.
const xofBlockSize = 168

// SampleNTT expands a 32-byte seed and two indices into a polynomial that is
// uniform over T_q, using SHAKE-128 and rejection sampling (FIPS 203,
// Algorithm 7). ML-KEM calls it as SampleNTT(ρ, j, i) for matrix entry Â[i][j].
func SampleNTT(seed []byte, j, i byte) Poly {
	xof := sha3.NewShake128()
	xof.Write(seed)
	xof.Write([]byte{j, i})

	var a Poly
	var buf [xofBlockSize]byte
	n := 0
	for n < N {
		_, _ = xof.Read(buf[:])
		for off := 0; off+3 <= len(buf) && n < N; off += 3 {
			d1 := uint16(buf[off]) | uint16(buf[off+1]&0x0f)<<8
			d2 := uint16(buf[off+1]>>4) | uint16(buf[off+2])<<4
			if d1 < Q {
				a[n] = d1
				n++
			}
			if d2 < Q && n < N {
				a[n] = d2
				n++
			}
		}
	}
	return a
}

// SampleCBD samples from the centered binomial distribution D_eta using
// 64·eta bytes of input (FIPS 203, Algorithm 8). Coefficients lie in
// [-eta, eta] mod q.
func SampleCBD(b []byte, eta int) Poly {
	var f Poly
	for i := 0; i < N; i++ {
		var x, y int
		for j := 0; j < eta; j++ {
			x += bit(b, 2*i*eta+j)
			y += bit(b, 2*i*eta+eta+j)
		}
		f[i] = fieldSub(uint16(x), uint16(y))
	}
	return f
}

func bit(b []byte, i int) int {
	return int(b[i/8]>>(i%8)) & 1
}

// PRF is PRF_eta(s, b) = SHAKE-256(s || b, 64·eta).
func PRF(eta int, s []byte, b byte) []byte {
	h := sha3.NewShake256()
	h.Write(s)
	h.Write([]byte{b})
	out := make([]byte, 64*eta)
	_, _ = h.Read(out)
	return out
}

// Sampler draws polynomials using bytes from a randomness source. Its output is
// fully determined by the bytes it reads, so a deterministic reader gives a
// reproducible sequence of polynomials.
type Sampler struct {
	r io.Reader
}

// NewSampler returns a Sampler reading from r, or from crypto.Reader when r is nil.
func NewSampler(r io.Reader) *Sampler {
	if r == nil {
		r = crypto.Reader
	}
	return &Sampler{r: r}
}

// Uniform returns a polynomial with coefficients uniform in [0, q). It reads a
// 32-byte seed and expands it with SampleNTT.
func (s *Sampler) Uniform() (Poly, error) {
	var seed [32]byte
	if err := crypto.ReadRandom(s.r, seed[:]); err != nil {
		return Poly{}, err
	}
	return SampleNTT(seed[:], 0, 0), nil
}

// Noise returns a polynomial drawn from D_eta. eta must be 2 or 3.
func (s *Sampler) Noise(eta int) (Poly, error) {
	buf := make([]byte, 64*eta)
	if err := crypto.ReadRandom(s.r, buf); err != nil {
		return Poly{}, err
	}
	return SampleCBD(buf, eta), nil
}
