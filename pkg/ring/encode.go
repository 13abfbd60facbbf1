package ring

// EncodedSize returns the byte length of a polynomial packed at d bits per coefficient.
func EncodedSize(d int) int {
	return N * d / 8
}

// ByteEncode packs the low d bits of each coefficient, least significant bit
// first (FIPS 203, Algorithm 5). d must be in [1, 12].
func (f Poly) ByteEncode(d int) []byte {
	out := make([]byte, EncodedSize(d))
	f.AppendEncode(out[:0], d)
	return out
}

// AppendEncode appends the d-bit encoding of f to dst.
func (f Poly) AppendEncode(dst []byte, d int) []byte {
	var acc uint32
	var bits int
	for i := 0; i < N; i++ {
		acc |= uint32(f[i]) << bits
		bits += d
		for bits >= 8 {
			dst = append(dst, byte(acc))
			acc >>= 8
			bits -= 8
		}
	}
	return dst
}

// ByteDecode unpacks a polynomial from EncodedSize(d) bytes (FIPS 203,
// Algorithm 6). For d = 12 coefficients are reduced modulo q, so the result is
// always a valid ring element; use IsCanonical to detect non-reduced input.
func ByteDecode(b []byte, d int) Poly {
	var f Poly
	var acc uint32
	var bits, idx int
	mask := uint32(1)<<d - 1
	for i := 0; i < N; i++ {
		for bits < d {
			acc |= uint32(b[idx]) << bits
			idx++
			bits += 8
		}
		v := acc & mask
		acc >>= d
		bits -= d
		if d == 12 {
			v %= Q
		}
		f[i] = uint16(v)
	}
	return f
}

// IsCanonical reports whether b is the 12-bit encoding of coefficients that
// are all already reduced modulo q.
func IsCanonical(b []byte) bool {
	if len(b) != EncodedSize(12) {
		return false
	}
	for i := 0; i < len(b); i += 3 {
		c0 := uint16(b[i]) | uint16(b[i+1]&0x0f)<<8
		c1 := uint16(b[i+1]>>4) | uint16(b[i+2])<<4
		if c0 >= Q || c1 >= Q {
			return false
		}
	}
	return true
}

// Compress maps each coefficient to d bits, rounding x·2^d/q to the nearest
// integer (FIPS 203, eq. 4.7).
func (f Poly) Compress(d int) Poly {
	var h Poly
	mask := uint32(1)<<d - 1
	for i := range f {
		h[i] = uint16(((uint32(f[i])<<d + Q/2) / Q) & mask)
	}
	return h
}

// Decompress maps d-bit values back to Z_q, rounding y·q/2^d (FIPS 203, eq. 4.8).
func (f Poly) Decompress(d int) Poly {
	var h Poly
	for i := range f {
		h[i] = uint16((uint32(f[i])*Q + 1<<(d-1)) >> d)
	}
	return h
}
