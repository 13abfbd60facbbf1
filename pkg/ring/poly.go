// Package ring implements arithmetic in the polynomial ring R_q = Z_q[X]/(X^256 + 1)
// with q = 3329, the ring underlying ML-KEM (CRYSTALS-Kyber).
//
// Polynomials are fixed-size coefficient arrays with every coefficient kept in
// [0, q). All arithmetic is total: results are always reduced and no operation
// can fail. Only sampling from a randomness source can fail, and then only with
// ErrRandomnessUnavailable.
//
// Mathematical Foundation:
//
// Because q ≡ 1 mod 256 the ring splits, through the Number Theoretic
// Transform (NTT), into 128 quadratic factors Z_q[X]/(X^2 - ζ^(2·brv7(i)+1))
// with ζ = 17 a primitive 256-th root of unity. Multiplication in NTT form is
// 128 independent degree-one products, giving O(n log n) ring multiplication.
package ring

import "github.com/pzverkov/quantum-vault/internal/constants"

// Ring parameters.
const (
	// N is the polynomial degree.
	N = constants.RingDegree

	// Q is the coefficient modulus.
	Q = constants.RingModulus
)

// Poly is a polynomial in R_q, or its NTT representation in T_q. Coefficients
// are always in [0, Q).
type Poly [N]uint16

// fieldReduce reduces x < 2q into [0, q).
func fieldReduce(x uint32) uint16 {
	if x >= Q {
		x -= Q
	}
	return uint16(x)
}

func fieldAdd(a, b uint16) uint16 {
	return fieldReduce(uint32(a) + uint32(b))
}

func fieldSub(a, b uint16) uint16 {
	return fieldReduce(uint32(a) + Q - uint32(b))
}

func fieldMul(a, b uint16) uint16 {
	return uint16(uint32(a) * uint32(b) % Q)
}

// Add returns f + g.
func (f Poly) Add(g Poly) Poly {
	var h Poly
	for i := range h {
		h[i] = fieldAdd(f[i], g[i])
	}
	return h
}

// Sub returns f - g.
func (f Poly) Sub(g Poly) Poly {
	var h Poly
	for i := range h {
		h[i] = fieldSub(f[i], g[i])
	}
	return h
}

// Mul returns the ring product f·g, computed through the NTT.
func (f Poly) Mul(g Poly) Poly {
	return f.NTT().MulNTT(g.NTT()).InvNTT()
}

// MulSchoolbook returns the ring product f·g using the quadratic
// negacyclic convolution, X^256 = -1. It is the reference for Mul.
func (f Poly) MulSchoolbook(g Poly) Poly {
	var h Poly
	for i := 0; i < N; i++ {
		if f[i] == 0 {
			continue
		}
		for j := 0; j < N; j++ {
			p := fieldMul(f[i], g[j])
			if k := i + j; k < N {
				h[k] = fieldAdd(h[k], p)
			} else {
				h[k-N] = fieldSub(h[k-N], p)
			}
		}
	}
	return h
}

// Equal reports whether f and g have identical coefficients.
func (f Poly) Equal(g Poly) bool {
	return f == g
}

// IsZero reports whether every coefficient is zero.
func (f Poly) IsZero() bool {
	return f == Poly{}
}

// FromCoefficients builds a polynomial from signed coefficients, reducing each
// into [0, Q). Missing coefficients are zero and extra ones are ignored.
func FromCoefficients(coeffs []int) Poly {
	var f Poly
	for i := 0; i < N && i < len(coeffs); i++ {
		c := coeffs[i] % Q
		if c < 0 {
			c += Q
		}
		f[i] = uint16(c)
	}
	return f
}

// Centered returns coefficient i as a representative in (-q/2, q/2].
func (f Poly) Centered(i int) int {
	c := int(f[i])
	if c > Q/2 {
		c -= Q
	}
	return c
}
