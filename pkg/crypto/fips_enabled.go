//go:build fips

package crypto

// FIPSMode reports whether the binary was built with -tags fips. In that
// build NewAEAD rejects ChaCha20-Poly1305, a failed self-test is fatal and
// the API server draws key material through a ContinuousReader.
func FIPSMode() bool { return true }
