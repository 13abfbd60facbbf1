package crypto

// SetMessageLimit lowers the per-key seal cap so exhaustion is reachable in
// tests.
func SetMessageLimit(a *AEAD, n uint64) { a.maxSeals = n }
