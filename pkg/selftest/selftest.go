// Package selftest checks the randomness source and runs known-answer tests
// over every primitive the engine depends on: SHA-3 and SHAKE, AES-256-GCM, the ML-KEM-768 implementation
// (checked byte for byte against CIRCL), textbook RSA and the hybrid cipher.
//
// Run executes the suite once per process and caches the result. In FIPS
// builds a failing suite panics, so no key exchange can run on a broken
// implementation.
package selftest

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/crypto/sha3"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
	"github.com/pzverkov/quantum-vault/pkg/hybrid"
	"github.com/pzverkov/quantum-vault/pkg/kyber"
	"github.com/pzverkov/quantum-vault/pkg/metrics"
	"github.com/pzverkov/quantum-vault/pkg/rsakex"
)

// Known answers.
var (
	sha3EmptyDigest = mustHex("a7ffc6f8bf1ed76651c14756a061d662f580ff4de43b49fa82d80a4b80f8434a")
	sha3ABCDigest   = mustHex("3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532")
	shake256Empty32 = mustHex("46b9dd2b0ba88d13233b3feb743eeb243fcd52ea62b81b82b50c27646ed5762f")

	// GCM test cases 13 and 14: zero key, zero IV.
	gcmEmptyTag    = mustHex("530f8afbc74536b9a963b4f1c4cb738b")
	gcmZeroBlockCT = mustHex("cea7403d4d606b6e074ec5d3baf39d18")
	gcmZeroBlockTg = mustHex("d0d1c8a799996bf0265b98b5d48ab919")

	mlkemSeed = mustHex(
		"0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef" +
			"fedcba9876543210fedcba9876543210fedcba9876543210fedcba9876543210")
	mlkemMessage = mustHex("00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff")

	hybridSecret = mustHex("5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed5eed")
)

func mustHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Check names.
const (
	CheckRNG    = "rng"
	CheckSHA3   = "sha3"
	CheckAESGCM = "aes-256-gcm"
	CheckMLKEM  = "ml-kem-768"
	CheckRSA    = "rsa"
	CheckHybrid = "hybrid"
)

type check struct {
	name string
	run  func() error
}

var suite = []check{
	{CheckRNG, runRNGHealthCheck},
	{CheckSHA3, runSHA3KAT},
	{CheckAESGCM, runAESGCMKAT},
	{CheckMLKEM, runMLKEMKAT},
	{CheckRSA, runRSAKAT},
	{CheckHybrid, runHybridKAT},
}

// CheckResult is the outcome of one known-answer test.
type CheckResult struct {
	Name     string        `json:"name"`
	Passed   bool          `json:"passed"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the outcome of the whole suite. Err aggregates every failure.
type Result struct {
	Passed bool          `json:"passed"`
	Checks []CheckResult `json:"checks"`
	Err    error         `json:"-"`
}

// Execute runs the suite now, without caching.
func Execute() *Result {
	res := &Result{Passed: true}
	var errs *multierror.Error

	for _, c := range suite {
		_, end := metrics.StartSpan(context.Background(), metrics.SpanSelfTest,
			metrics.WithAttributes(map[string]interface{}{"selftest.check": c.name}))
		start := time.Now()
		err := c.run()
		end(err)
		cr := CheckResult{Name: c.name, Passed: err == nil, Duration: time.Since(start)}
		if err != nil {
			cr.Error = err.Error()
			res.Passed = false
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
		res.Checks = append(res.Checks, cr)
	}

	res.Err = errs.ErrorOrNil()
	return res
}

var (
	cached     *Result
	cachedOnce sync.Once
)

// Run executes the suite on first use and returns the cached result after.
func Run() *Result {
	cachedOnce.Do(func() {
		cached = Execute()
		if crypto.FIPSMode() && !cached.Passed {
			panic(fmt.Sprintf("self-test failed: %v", cached.Err))
		}
	})
	return cached
}

// Check returns the cached suite error, nil when every test passed. Its
// signature fits metrics.CheckFunc.
func Check() error {
	return Run().Err
}

func runRNGHealthCheck() error {
	return crypto.RNGHealthCheck(nil)
}

func runSHA3KAT() error {
	if got := sha3.Sum256(nil); !bytes.Equal(got[:], sha3EmptyDigest) {
		return fmt.Errorf("SHA3-256(\"\") = %x", got)
	}
	if got := sha3.Sum256([]byte("abc")); !bytes.Equal(got[:], sha3ABCDigest) {
		return fmt.Errorf("SHA3-256(\"abc\") = %x", got)
	}
	out := make([]byte, 32)
	sha3.ShakeSum256(out, nil)
	if !bytes.Equal(out, shake256Empty32) {
		return fmt.Errorf("SHAKE256(\"\") = %x", out)
	}
	return nil
}

func runAESGCMKAT() error {
	a, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, make([]byte, constants.AESKeySize))
	if err != nil {
		return err
	}
	nonce := make([]byte, a.NonceSize())

	if got, err := a.SealWithNonce(nonce, nil, nil); err != nil || !bytes.Equal(got, gcmEmptyTag) {
		return fmt.Errorf("empty plaintext tag = %x (%v)", got, err)
	}

	// The same nonce must not seal twice under one key.
	if _, err := a.SealWithNonce(nonce, make([]byte, 16), nil); !qerrors.Is(err, qerrors.ErrInvalidNonce) {
		return fmt.Errorf("nonce reuse accepted: %v", err)
	}

	b, err := crypto.NewAEAD(constants.CipherSuiteAES256GCM, make([]byte, constants.AESKeySize))
	if err != nil {
		return err
	}
	want := append(append([]byte(nil), gcmZeroBlockCT...), gcmZeroBlockTg...)
	sealed, err := b.SealWithNonce(nonce, make([]byte, 16), nil)
	if err != nil || !bytes.Equal(sealed, want) {
		return fmt.Errorf("zero block = %x (%v)", sealed, err)
	}

	opened, err := b.Open(nonce, sealed, nil)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	if !bytes.Equal(opened, make([]byte, 16)) {
		return fmt.Errorf("open = %x", opened)
	}
	return nil
}

// runMLKEMKAT checks key generation, encapsulation, decapsulation and
// implicit rejection against the CIRCL reference.
func runMLKEMKAT() error {
	kp, err := kyber.NewKeyPairFromSeed(mlkemSeed)
	if err != nil {
		return err
	}
	ref, err := crypto.ReferenceKeyPairFromSeed(mlkemSeed)
	if err != nil {
		return err
	}
	if !bytes.Equal(kp.PublicKey, ref.PublicKey) {
		return fmt.Errorf("public key differs from reference")
	}
	if !bytes.Equal(kp.PrivateKey, ref.PrivateKey) {
		return fmt.Errorf("private key differs from reference")
	}

	ct, ss, err := kyber.EncapsulateDeterministic(kp.PublicKey, mlkemMessage)
	if err != nil {
		return err
	}
	refCT, refSS, err := crypto.ReferenceEncapsulate(ref.PublicKey, mlkemMessage)
	if err != nil {
		return err
	}
	if !bytes.Equal(ct, refCT) || !bytes.Equal(ss, refSS) {
		return fmt.Errorf("encapsulation differs from reference")
	}

	got, err := kyber.Decapsulate(kp.PrivateKey, ct)
	if err != nil {
		return err
	}
	if !bytes.Equal(got, ss) {
		return fmt.Errorf("decapsulated secret mismatch")
	}

	ct[0] ^= 0x01
	rejected, err := kyber.Decapsulate(kp.PrivateKey, ct)
	if err != nil {
		return err
	}
	refRejected, err := ref.Decapsulate(ct)
	if err != nil {
		return err
	}
	if bytes.Equal(rejected, ss) || !bytes.Equal(rejected, refRejected) {
		return fmt.Errorf("implicit rejection differs from reference")
	}
	return nil
}

// runRSAKAT checks the textbook key p=61, q=53, e=17.
func runRSAKAT() error {
	priv, err := rsakex.NewPrivateKey(big.NewInt(61), big.NewInt(53), 17)
	if err != nil {
		return err
	}
	if priv.N.Int64() != 3233 {
		return fmt.Errorf("n = %v, want 3233", priv.N)
	}

	c, err := priv.Public().Encrypt(big.NewInt(65))
	if err != nil {
		return err
	}
	if c.Int64() != 2790 {
		return fmt.Errorf("65^17 mod 3233 = %v, want 2790", c)
	}
	if m := rsakex.ModExp(c, big.NewInt(2753), priv.N); m.Int64() != 65 {
		return fmt.Errorf("2790^2753 mod 3233 = %v, want 65", m)
	}

	m, err := priv.Decrypt(c)
	if err != nil {
		return err
	}
	if m.Int64() != 65 {
		return fmt.Errorf("CRT decrypt = %v, want 65", m)
	}
	return nil
}

// runHybridKAT round-trips a message under a fixed secret and checks that a
// flipped tag bit is rejected.
func runHybridKAT() error {
	key, err := hybrid.DeriveKey(hybridSecret)
	if err != nil {
		return err
	}
	defer crypto.Zeroize(key)

	c, err := hybrid.NewCipherWithReader(hybrid.DefaultSuite, key, crypto.NewDeterministicReader(hybridSecret))
	if err != nil {
		return err
	}

	const msg = "hello quantum world"
	ct, err := c.Encrypt([]byte(msg), nil)
	if err != nil {
		return err
	}
	pt, err := c.Decrypt(ct, nil)
	if err != nil {
		return err
	}
	if string(pt) != msg {
		return fmt.Errorf("round trip = %q", pt)
	}

	ct.Tag[0] ^= 0x80
	if _, err := c.Decrypt(ct, nil); !qerrors.Is(err, qerrors.ErrAuthenticationFailed) {
		return fmt.Errorf("tampered tag: got %v, want authentication failure", err)
	}
	return nil
}
