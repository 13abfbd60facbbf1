package rsakex

import (
	"crypto/subtle"
	"io"
	"math/big"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
	"github.com/pzverkov/quantum-vault/pkg/crypto"
)

// SecretSize is the length of the transported shared secret.
const SecretSize = constants.RSASharedSecretSize

// ModExp returns base^exp mod m.
func ModExp(base, exp, m *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, m)
}

// Encrypt is the raw RSA function m^e mod n. m must be in [0, n).
func (pub *PublicKey) Encrypt(m *big.Int) (*big.Int, error) {
	if m.Sign() < 0 || m.Cmp(pub.N) >= 0 {
		return nil, qerrors.NewCryptoError("rsakex.Encrypt", qerrors.ErrMalformedInput)
	}
	return ModExp(m, big.NewInt(int64(pub.E)), pub.N), nil
}

// Decrypt is the raw RSA inverse c^d mod n, computed with the CRT.
func (priv *PrivateKey) Decrypt(c *big.Int) (*big.Int, error) {
	if c.Sign() < 0 || c.Cmp(priv.N) >= 0 {
		return nil, qerrors.NewCryptoError("rsakex.Decrypt", qerrors.ErrInvalidCiphertext)
	}

	m1 := ModExp(c, priv.dp, priv.P)
	m2 := ModExp(c, priv.dq, priv.Q)

	// h = qInv·(m1 - m2) mod p; m = m2 + h·q
	h := new(big.Int).Sub(m1, m2)
	h.Mul(h, priv.qInv)
	h.Mod(h, priv.P)
	m := h.Mul(h, priv.Q)
	m.Add(m, m2)
	return m, nil
}

// Exchange generates a random 32-byte secret and encrypts it to publicKey,
// an encoded modulus. rand defaults to crypto.Reader.
//
// Returns the k-byte ciphertext (k = modulus length) and the secret.
func Exchange(publicKey []byte, rand io.Reader) (ciphertext, secret []byte, err error) {
	pub, err := ParsePublicKey(publicKey)
	if err != nil {
		return nil, nil, err
	}

	secret = make([]byte, SecretSize)
	if err := crypto.ReadRandom(rand, secret); err != nil {
		return nil, nil, qerrors.NewCryptoError("rsakex.Exchange", err)
	}

	em, err := pad(secret, pub.Size(), rand)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.Zeroize(em)

	c, err := pub.Encrypt(new(big.Int).SetBytes(em))
	if err != nil {
		return nil, nil, err
	}
	return c.FillBytes(make([]byte, pub.Size())), secret, nil
}

// Recover decrypts ciphertext with an encoded private key and returns the
// transported secret.
//
// Returns ErrInvalidCiphertext if the ciphertext has the wrong length, is not
// below the modulus, or does not unpad to a 32-byte secret. The padding check
// runs in constant time.
func Recover(privateKey, ciphertext []byte) ([]byte, error) {
	priv, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	defer priv.Zeroize()
	return priv.Recover(ciphertext)
}

// Recover is the method form of Recover for an already parsed key.
func (priv *PrivateKey) Recover(ciphertext []byte) ([]byte, error) {
	k := priv.Size()
	if len(ciphertext) != k {
		return nil, qerrors.NewCryptoError("rsakex.Recover", qerrors.ErrInvalidCiphertext)
	}

	m, err := priv.Decrypt(new(big.Int).SetBytes(ciphertext))
	if err != nil {
		return nil, qerrors.NewCryptoError("rsakex.Recover", qerrors.ErrInvalidCiphertext)
	}

	em := m.FillBytes(make([]byte, k))
	defer crypto.Zeroize(em)

	if unpad(em) != 1 {
		return nil, qerrors.NewCryptoError("rsakex.Recover", qerrors.ErrInvalidCiphertext)
	}
	return append([]byte(nil), em[k-SecretSize:]...), nil
}

// pad builds 0x00 || 0x02 || PS || 0x00 || secret with k-3-len(secret)
// non-zero random bytes of PS.
func pad(secret []byte, k int, rand io.Reader) ([]byte, error) {
	psLen := k - 3 - len(secret)
	if psLen < constants.RSAMinPaddingSize {
		return nil, qerrors.NewCryptoError("rsakex.pad", qerrors.ErrInvalidKeySize)
	}

	em := make([]byte, k)
	em[1] = 0x02
	ps := em[2 : 2+psLen]
	if err := nonZeroRandom(ps, rand); err != nil {
		return nil, err
	}
	copy(em[k-len(secret):], secret)
	return em, nil
}

func nonZeroRandom(b []byte, rand io.Reader) error {
	if err := crypto.ReadRandom(rand, b); err != nil {
		return err
	}
	var one [1]byte
	for i := range b {
		for b[i] == 0 {
			if err := crypto.ReadRandom(rand, one[:]); err != nil {
				return err
			}
			b[i] = one[0]
		}
	}
	return nil
}

// unpad returns 1 if em has the exact layout produced by pad for a
// SecretSize secret, 0 otherwise, without branching on its contents.
func unpad(em []byte) int {
	k := len(em)
	sep := k - SecretSize - 1
	if sep < 2+constants.RSAMinPaddingSize {
		return 0
	}

	good := subtle.ConstantTimeByteEq(em[0], 0x00)
	good &= subtle.ConstantTimeByteEq(em[1], 0x02)
	for _, b := range em[2:sep] {
		good &= 1 - subtle.ConstantTimeByteEq(b, 0x00)
	}
	good &= subtle.ConstantTimeByteEq(em[sep], 0x00)
	return good
}
