package ring

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"

	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// Generate lets testing/quick produce reduced polynomials.
func (Poly) Generate(r *rand.Rand, _ int) reflect.Value {
	var f Poly
	for i := range f {
		f[i] = uint16(r.Intn(Q))
	}
	return reflect.ValueOf(f)
}

func TestTwiddleFactors(t *testing.T) {
	// Spot values from FIPS 203, Appendix A.
	if zetas[0] != 1 || zetas[1] != 1729 || zetas[127] != 2154 {
		t.Errorf("zetas = %d, %d, %d; want 1, 1729, 2154", zetas[0], zetas[1], zetas[127])
	}
	if gammas[0] != 17 || gammas[1] != Q-17 {
		t.Errorf("gammas[0:2] = %d, %d; want 17, %d", gammas[0], gammas[1], Q-17)
	}
}

func TestNTTRoundTrip(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		var f Poly
		if f.NTT().InvNTT() != f {
			t.Error("failed for zero")
		}
	})
	t.Run("quick", func(t *testing.T) {
		roundTrip := func(f Poly) bool { return f.NTT().InvNTT() == f }
		if err := quick.Check(roundTrip, nil); err != nil {
			t.Fatal(err)
		}
	})
}

func TestMulMatchesSchoolbook(t *testing.T) {
	agree := func(f, g Poly) bool { return f.Mul(g) == f.MulSchoolbook(g) }
	if err := quick.Check(agree, &quick.Config{MaxCount: 20}); err != nil {
		t.Fatal(err)
	}
}

func TestMulNegacyclic(t *testing.T) {
	// X^255 · X = X^256 = -1
	var x255, x Poly
	x255[255] = 1
	x[1] = 1

	got := x255.Mul(x)
	want := FromCoefficients([]int{-1})
	if got != want {
		t.Errorf("X^255·X = %v..., want -1", got[:4])
	}
	if got := x255.MulSchoolbook(x); got != want {
		t.Errorf("schoolbook X^255·X = %v..., want -1", got[:4])
	}
}

func TestAddSub(t *testing.T) {
	inverse := func(f, g Poly) bool { return f.Add(g).Sub(g) == f }
	if err := quick.Check(inverse, nil); err != nil {
		t.Fatal(err)
	}

	commutes := func(f, g Poly) bool { return f.Add(g) == g.Add(f) }
	if err := quick.Check(commutes, nil); err != nil {
		t.Fatal(err)
	}

	reduced := func(f, g Poly) bool {
		for _, c := range f.Add(g) {
			if c >= Q {
				return false
			}
		}
		return true
	}
	if err := quick.Check(reduced, nil); err != nil {
		t.Fatal(err)
	}
}

func TestMulDistributes(t *testing.T) {
	distributes := func(f, g, h Poly) bool {
		return f.Mul(g.Add(h)) == f.Mul(g).Add(f.Mul(h))
	}
	if err := quick.Check(distributes, &quick.Config{MaxCount: 20}); err != nil {
		t.Fatal(err)
	}
}

func TestFromCoefficients(t *testing.T) {
	f := FromCoefficients([]int{-1, Q, Q + 5, 7})
	if f[0] != Q-1 || f[1] != 0 || f[2] != 5 || f[3] != 7 {
		t.Errorf("FromCoefficients = %v", f[:4])
	}
	if f.Centered(0) != -1 || f.Centered(3) != 7 {
		t.Errorf("Centered = %d, %d; want -1, 7", f.Centered(0), f.Centered(3))
	}
}

func TestSampleCBDRange(t *testing.T) {
	for _, eta := range []int{2, 3} {
		inRange := func(seed int64) bool {
			b := make([]byte, 64*eta)
			rand.New(rand.NewSource(seed)).Read(b)
			for i := range N {
				c := SampleCBD(b, eta).Centered(i)
				if c < -eta || c > eta {
					return false
				}
			}
			return true
		}
		if err := quick.Check(inRange, &quick.Config{MaxCount: 20}); err != nil {
			t.Errorf("eta=%d: %v", eta, err)
		}
	}
}

func TestSampleNTTDeterministic(t *testing.T) {
	seed := bytes.Repeat([]byte{0x33}, 32)
	a := SampleNTT(seed, 0, 1)
	b := SampleNTT(seed, 0, 1)
	c := SampleNTT(seed, 1, 0)

	if a != b {
		t.Error("SampleNTT is not deterministic")
	}
	if a == c {
		t.Error("index order should change the sample")
	}
	for i, x := range a {
		if x >= Q {
			t.Fatalf("coefficient %d = %d is not reduced", i, x)
		}
	}
}

func TestSamplerDeterministic(t *testing.T) {
	seed := []byte("sampler seed")
	s1 := NewSampler(crypto.NewDeterministicReader(seed))
	s2 := NewSampler(crypto.NewDeterministicReader(seed))

	for i := 0; i < 3; i++ {
		u1, err := s1.Uniform()
		if err != nil {
			t.Fatalf("Uniform failed: %v", err)
		}
		u2, _ := s2.Uniform()
		if u1 != u2 {
			t.Fatalf("Uniform draw %d differs under the same seed", i)
		}

		n1, err := s1.Noise(2)
		if err != nil {
			t.Fatalf("Noise failed: %v", err)
		}
		n2, _ := s2.Noise(2)
		if n1 != n2 {
			t.Fatalf("Noise draw %d differs under the same seed", i)
		}
	}
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestSamplerRandomnessUnavailable(t *testing.T) {
	s := NewSampler(brokenReader{})
	if _, err := s.Uniform(); !qerrors.Is(err, qerrors.ErrRandomnessUnavailable) {
		t.Errorf("Uniform error = %v, want ErrRandomnessUnavailable", err)
	}
	if _, err := s.Noise(2); !qerrors.Is(err, qerrors.ErrRandomnessUnavailable) {
		t.Errorf("Noise error = %v, want ErrRandomnessUnavailable", err)
	}
}

func TestByteEncodeRoundTrip(t *testing.T) {
	for _, d := range []int{1, 4, 10, 11, 12} {
		roundTrip := func(f Poly) bool {
			if d < 12 {
				mask := uint16(1)<<d - 1
				for i := range f {
					f[i] &= mask
				}
			}
			enc := f.ByteEncode(d)
			return len(enc) == 32*d && ByteDecode(enc, d) == f
		}
		if err := quick.Check(roundTrip, nil); err != nil {
			t.Errorf("d=%d: %v", d, err)
		}
	}
}

func TestIsCanonical(t *testing.T) {
	var f Poly
	f[0] = Q - 1
	enc := f.ByteEncode(12)
	if !IsCanonical(enc) {
		t.Error("reduced encoding reported non-canonical")
	}

	enc[0], enc[1] = 0xff, enc[1]|0x0f // coefficient 0 = 4095
	if IsCanonical(enc) {
		t.Error("unreduced encoding reported canonical")
	}
	if ByteDecode(enc, 12)[0] != 4095%Q {
		t.Error("ByteDecode(12) should reduce modulo q")
	}
	if IsCanonical(enc[:10]) {
		t.Error("short input reported canonical")
	}
}

func TestIsCanonicalPerPolynomialOfVec(t *testing.T) {
	v := NewVec(3)
	for i := range v {
		for j := range v[i] {
			v[i][j] = uint16((j*7 + i) % Q)
		}
		v[i][N-1] = Q - 1
	}
	enc := v.AppendEncode(nil, 12)
	size := EncodedSize(12)
	if len(enc) != 3*size {
		t.Fatalf("vector encoding is %d bytes, want %d", len(enc), 3*size)
	}
	if IsCanonical(enc) {
		t.Error("IsCanonical checks one polynomial; a whole vector must be split")
	}
	for i := 0; i < 3; i++ {
		if !IsCanonical(enc[i*size : (i+1)*size]) {
			t.Errorf("polynomial %d reported non-canonical", i)
		}
	}

	enc[2*size], enc[2*size+1] = 0xff, enc[2*size+1]|0x0f
	if IsCanonical(enc[2*size:]) {
		t.Error("unreduced coefficient in the last polynomial reported canonical")
	}
}

func TestCompressErrorBound(t *testing.T) {
	for _, d := range []int{1, 4, 10, 11} {
		bound := (Q + (1 << d)) >> (d + 1) // round(q / 2^(d+1))
		var f Poly
		for x := 0; x < Q; x += N - 1 {
			for i := range f {
				f[i] = uint16((x + i) % Q)
			}
			back := f.Compress(d).Decompress(d)
			diff := back.Sub(f)
			for i := range diff {
				if e := diff.Centered(i); e > bound || e < -bound {
					t.Fatalf("d=%d x=%d: error %d exceeds %d", d, f[i], e, bound)
				}
			}
		}
	}
}

func TestVecOps(t *testing.T) {
	s := NewSampler(crypto.NewDeterministicReader([]byte("vec")))
	v, w := NewVec(3), NewVec(3)
	for i := 0; i < 3; i++ {
		v[i], _ = s.Uniform()
		w[i], _ = s.Noise(2)
	}

	if got := v.NTT().InvNTT(); !reflect.DeepEqual(got, v) {
		t.Error("Vec NTT round trip failed")
	}

	want := v[0].Mul(w[0]).Add(v[1].Mul(w[1])).Add(v[2].Mul(w[2]))
	if got := v.NTT().DotNTT(w.NTT()).InvNTT(); got != want {
		t.Error("DotNTT disagrees with per-component Mul")
	}

	enc := v.AppendEncode(nil, 12)
	if got := DecodeVec(enc, 3, 12); !reflect.DeepEqual(got, v) {
		t.Error("Vec encode round trip failed")
	}

	sum := v.Add(w)
	for i := range sum {
		if sum[i] != v[i].Add(w[i]) {
			t.Errorf("Vec.Add component %d wrong", i)
		}
	}
}
