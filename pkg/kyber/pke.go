package kyber

import (
	"github.com/pzverkov/quantum-vault/internal/constants"
	"github.com/pzverkov/quantum-vault/pkg/ring"
)

const (
	k    = constants.KyberK
	eta1 = constants.KyberEta1
	eta2 = constants.KyberEta2
	du   = constants.KyberDU
	dv   = constants.KyberDV

	encodedVecSize = k * constants.RingEncodedSize
	c1Size         = k * ring.N * du / 8
)

// matrix is Â in NTT form, indexed [row][column].
type matrix [k][k]ring.Poly

// expandMatrix derives Â from ρ with Â[i][j] = SampleNTT(ρ, j, i).
func expandMatrix(rho []byte) *matrix {
	var a matrix
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			a[i][j] = ring.SampleNTT(rho, byte(j), byte(i))
		}
	}
	return &a
}

// sampleNoiseVec draws k CBD polynomials from PRF(seed, n), PRF(seed, n+1), ...
// and returns the vector together with the next unused counter.
func sampleNoiseVec(seed []byte, eta int, n byte) (ring.Vec, byte) {
	v := ring.NewVec(k)
	for i := range v {
		v[i] = ring.SampleCBD(ring.PRF(eta, seed, n), eta)
		n++
	}
	return v, n
}

// pkeKeyGen is K-PKE.KeyGen (FIPS 203, Algorithm 13), with (ρ, σ) already
// derived from d. It returns the encryption key ek and the encoded ŝ.
func pkeKeyGen(rho, sigma []byte) (ek, dk []byte) {
	a := expandMatrix(rho)

	s, n := sampleNoiseVec(sigma, eta1, 0)
	e, _ := sampleNoiseVec(sigma, eta1, n)
	sHat := s.NTT()
	eHat := e.NTT()

	tHat := ring.NewVec(k)
	for i := 0; i < k; i++ {
		row := ring.Vec(a[i][:])
		tHat[i] = row.DotNTT(sHat).Add(eHat[i])
	}

	ek = make([]byte, 0, constants.KyberPublicKeySize)
	ek = tHat.AppendEncode(ek, 12)
	ek = append(ek, rho...)

	dk = sHat.AppendEncode(make([]byte, 0, encodedVecSize), 12)
	return ek, dk
}

// pkeEncrypt is K-PKE.Encrypt (FIPS 203, Algorithm 14). ek must already have
// passed the modulus check.
func pkeEncrypt(ek, m, r []byte) []byte {
	tHat := ring.DecodeVec(ek[:encodedVecSize], k, 12)
	a := expandMatrix(ek[encodedVecSize:])

	y, n := sampleNoiseVec(r, eta1, 0)
	e1, n := sampleNoiseVec(r, eta2, n)
	e2 := ring.SampleCBD(ring.PRF(eta2, r, n), eta2)

	yHat := y.NTT()

	// u = NTT^-1(Âᵀ ∘ ŷ) + e1
	u := ring.NewVec(k)
	for i := 0; i < k; i++ {
		var col ring.Poly
		for j := 0; j < k; j++ {
			col = col.Add(a[j][i].MulNTT(yHat[j]))
		}
		u[i] = col.InvNTT().Add(e1[i])
	}

	mu := ring.ByteDecode(m, 1).Decompress(1)
	v := tHat.DotNTT(yHat).InvNTT().Add(e2).Add(mu)

	c := make([]byte, 0, constants.KyberCiphertextSize)
	c = u.Compress(du).AppendEncode(c, du)
	c = v.Compress(dv).AppendEncode(c, dv)
	return c
}

// pkeDecrypt is K-PKE.Decrypt (FIPS 203, Algorithm 15).
func pkeDecrypt(dk, c []byte) []byte {
	u := ring.DecodeVec(c[:c1Size], k, du).Decompress(du)
	v := ring.ByteDecode(c[c1Size:], dv).Decompress(dv)
	sHat := ring.DecodeVec(dk, k, 12)

	w := v.Sub(sHat.DotNTT(u.NTT()).InvNTT())
	return w.Compress(1).ByteEncode(1)
}
