package ring

// Vec is a module element, a vector of k polynomials.
type Vec []Poly

// NewVec returns the zero vector of length k.
func NewVec(k int) Vec {
	return make(Vec, k)
}

// NTT transforms every component.
func (v Vec) NTT() Vec {
	out := make(Vec, len(v))
	for i := range v {
		out[i] = v[i].NTT()
	}
	return out
}

// InvNTT inverse-transforms every component.
func (v Vec) InvNTT() Vec {
	out := make(Vec, len(v))
	for i := range v {
		out[i] = v[i].InvNTT()
	}
	return out
}

// Add returns v + w. Both vectors must have the same length.
func (v Vec) Add(w Vec) Vec {
	out := make(Vec, len(v))
	for i := range v {
		out[i] = v[i].Add(w[i])
	}
	return out
}

// DotNTT returns Σ v[i]∘w[i] for vectors in NTT form.
func (v Vec) DotNTT(w Vec) Poly {
	var acc Poly
	for i := range v {
		acc = acc.Add(v[i].MulNTT(w[i]))
	}
	return acc
}

// AppendEncode appends the d-bit encoding of every component to dst.
func (v Vec) AppendEncode(dst []byte, d int) []byte {
	for i := range v {
		dst = v[i].AppendEncode(dst, d)
	}
	return dst
}

// DecodeVec decodes k consecutive d-bit polynomials from b.
func DecodeVec(b []byte, k, d int) Vec {
	size := EncodedSize(d)
	v := make(Vec, k)
	for i := 0; i < k; i++ {
		v[i] = ByteDecode(b[i*size:(i+1)*size], d)
	}
	return v
}

// Compress compresses every component to d bits.
func (v Vec) Compress(d int) Vec {
	out := make(Vec, len(v))
	for i := range v {
		out[i] = v[i].Compress(d)
	}
	return out
}

// Decompress decompresses every component from d bits.
func (v Vec) Decompress(d int) Vec {
	out := make(Vec, len(v))
	for i := range v {
		out[i] = v[i].Decompress(d)
	}
	return out
}
