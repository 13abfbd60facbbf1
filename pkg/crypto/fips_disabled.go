//go:build !fips

package crypto

// FIPSMode reports whether the binary was built with -tags fips.
func FIPSMode() bool { return false }
