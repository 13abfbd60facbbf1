// Package quantumvault compares post-quantum and classical key exchange.
//
// Quantum-Vault runs ML-KEM-768 (NIST FIPS 203, known as Kyber) side by side
// with RSA-2048 key transport, measures each step and then uses the agreed
// 32-byte secret to encrypt messages with an AEAD.
//
// # Quick Start
//
// Drive a full exchange through a session:
//
//	import "github.com/pzverkov/quantum-vault/pkg/session"
//
//	sess, _ := session.New()
//	defer sess.Close()
//
//	keys, exch, _ := sess.RunFullExchange(ctx, kex.Kyber)
//	enc, _ := sess.EncryptMessage(ctx, kex.Kyber, "hello quantum world")
//	dec, _ := sess.DecryptMessage(ctx, kex.Kyber, enc.Text)
//
// Or use a mechanism directly:
//
//	import "github.com/pzverkov/quantum-vault/pkg/kyber"
//
//	kp, _ := kyber.GenerateKeyPair(nil)
//	ct, ss, _ := kyber.Encapsulate(kp.PublicKey, nil)
//	recovered, _ := kyber.Decapsulate(kp.PrivateKey, ct)
//
// # Package Structure
//
//   - pkg/ring: Polynomial arithmetic over Z_q[X]/(X^256+1) with the NTT
//   - pkg/kyber: ML-KEM-768 key generation, encapsulation and decapsulation
//   - pkg/rsakex: RSA key generation and secret transport on math/big
//   - pkg/kex: The common Mechanism interface and the algorithm registry
//   - pkg/hybrid: Message encryption keyed by a shared secret
//   - pkg/session: The exchange state machine and its metrics
//   - pkg/api: HTTP/JSON API and the in-memory session store
//   - pkg/crypto: Randomness, SHAKE-256 key derivation, AEAD and a CIRCL reference
//   - pkg/selftest: Known-answer tests for every primitive
//   - pkg/metrics: Logging, metrics, tracing and health endpoints
//   - internal/config: Configuration from file, environment and flags
//
// # Sizes
//
//	              public   private  ciphertext  secret
//	ML-KEM-768      1184      2400        1088      32
//	RSA-2048         256       768         256      32
//
// The RSA private key column is the n || d || p || q encoding, which never
// leaves the process.
//
// # Testing
//
//	go test ./...                                      # All tests
//	go test -fuzz=FuzzDecapsulate ./pkg/kyber/         # Fuzz tests
//	go test -run TestMatchesReference ./pkg/kyber      # Cross-check against CIRCL
//	go test -bench=. ./pkg/kex ./pkg/hybrid            # Benchmarks
//
// # References
//
//   - NIST FIPS 203: Module-Lattice-Based Key-Encapsulation Mechanism Standard
//   - NIST FIPS 202: SHA-3 Standard (SHAKE-256)
//   - RFC 8017: PKCS #1 v2.2 (RSA)
package quantumvault
