package ring

// zetas[i] = 17^brv7(i) mod q, gammas[i] = 17^(2·brv7(i)+1) mod q.
var (
	zetas  [128]uint16
	gammas [128]uint16
)

// nInverse is 128^-1 mod q, the scaling applied by InvNTT.
const nInverse = 3303

func init() {
	for i := 0; i < 128; i++ {
		r := uint32(bitRev7(uint8(i)))
		zetas[i] = powMod(17, r)
		gammas[i] = powMod(17, 2*r+1)
	}
}

func bitRev7(x uint8) uint8 {
	var r uint8
	for i := 0; i < 7; i++ {
		r = r<<1 | (x>>i)&1
	}
	return r
}

func powMod(base, exp uint32) uint16 {
	result := uint32(1)
	b := base % Q
	for exp > 0 {
		if exp&1 == 1 {
			result = result * b % Q
		}
		b = b * b % Q
		exp >>= 1
	}
	return uint16(result)
}

// NTT returns the Number Theoretic Transform of f (FIPS 203, Algorithm 9).
func (f Poly) NTT() Poly {
	k := 1
	for length := 128; length >= 2; length /= 2 {
		for start := 0; start < N; start += 2 * length {
			zeta := zetas[k]
			k++
			for j := start; j < start+length; j++ {
				t := fieldMul(zeta, f[j+length])
				f[j+length] = fieldSub(f[j], t)
				f[j] = fieldAdd(f[j], t)
			}
		}
	}
	return f
}

// InvNTT returns the inverse transform of f (FIPS 203, Algorithm 10).
func (f Poly) InvNTT() Poly {
	k := 127
	for length := 2; length <= 128; length *= 2 {
		for start := 0; start < N; start += 2 * length {
			zeta := zetas[k]
			k--
			for j := start; j < start+length; j++ {
				t := f[j]
				f[j] = fieldAdd(t, f[j+length])
				f[j+length] = fieldMul(zeta, fieldSub(f[j+length], t))
			}
		}
	}
	for i := range f {
		f[i] = fieldMul(f[i], nInverse)
	}
	return f
}

// MulNTT multiplies two polynomials in NTT form (FIPS 203, Algorithms 11-12).
func (f Poly) MulNTT(g Poly) Poly {
	var h Poly
	for i := 0; i < 128; i++ {
		a0, a1 := f[2*i], f[2*i+1]
		b0, b1 := g[2*i], g[2*i+1]
		h[2*i] = fieldAdd(fieldMul(a0, b0), fieldMul(fieldMul(a1, b1), gammas[i]))
		h[2*i+1] = fieldAdd(fieldMul(a0, b1), fieldMul(a1, b0))
	}
	return h
}
