// mlkem.go wraps CIRCL's ML-KEM-768 as a reference implementation.
//
// The engine's own lattice KEM lives in pkg/kyber. This wrapper gives the
// self-tests and the interop tests an independent implementation to compare
// against: keys and ciphertexts must be byte-for-byte identical for the same
// seeds.
package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"

	"github.com/pzverkov/quantum-vault/internal/constants"
	qerrors "github.com/pzverkov/quantum-vault/internal/errors"
)

// ReferenceKeyPair holds an encoded ML-KEM-768 key pair produced by CIRCL.
type ReferenceKeyPair struct {
	PublicKey  []byte
	PrivateKey []byte

	sk *mlkem768.PrivateKey
}

// ReferenceKeyPairFromSeed derives an ML-KEM-768 key pair from the 64-byte
// d || z seed. The same seed always yields the same key pair.
func ReferenceKeyPairFromSeed(seed []byte) (*ReferenceKeyPair, error) {
	if len(seed) != constants.KyberKeySeedSize {
		return nil, qerrors.NewCryptoError("ReferenceKeyPairFromSeed", qerrors.ErrInvalidKeySize)
	}

	pk, sk := mlkem768.NewKeyFromSeed(seed)

	pkBytes := make([]byte, mlkem768.PublicKeySize)
	pk.Pack(pkBytes)
	skBytes := make([]byte, mlkem768.PrivateKeySize)
	sk.Pack(skBytes)

	return &ReferenceKeyPair{PublicKey: pkBytes, PrivateKey: skBytes, sk: sk}, nil
}

// ReferenceEncapsulate encapsulates to an encoded public key using the 32-byte
// message m as the encapsulation seed.
func ReferenceEncapsulate(publicKey, m []byte) (ciphertext, sharedSecret []byte, err error) {
	if len(publicKey) != mlkem768.PublicKeySize {
		return nil, nil, qerrors.NewCryptoError("ReferenceEncapsulate", qerrors.ErrInvalidPublicKey)
	}
	if len(m) != mlkem768.EncapsulationSeedSize {
		return nil, nil, qerrors.NewCryptoError("ReferenceEncapsulate", qerrors.ErrInvalidKeySize)
	}

	var pk mlkem768.PublicKey
	if err := pk.Unpack(publicKey); err != nil {
		return nil, nil, qerrors.NewCryptoError("ReferenceEncapsulate", qerrors.ErrInvalidPublicKey)
	}

	ciphertext = make([]byte, mlkem768.CiphertextSize)
	sharedSecret = make([]byte, mlkem768.SharedKeySize)
	pk.EncapsulateTo(ciphertext, sharedSecret, m)

	return ciphertext, sharedSecret, nil
}

// Decapsulate recovers the shared secret for ciphertext.
func (kp *ReferenceKeyPair) Decapsulate(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) != mlkem768.CiphertextSize {
		return nil, qerrors.NewCryptoError("ReferenceDecapsulate", qerrors.ErrInvalidCiphertext)
	}

	ss := make([]byte, mlkem768.SharedKeySize)
	kp.sk.DecapsulateTo(ss, ciphertext)
	return ss, nil
}

// ReferenceDecapsulate decapsulates with an encoded private key.
func ReferenceDecapsulate(privateKey, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != mlkem768.PrivateKeySize {
		return nil, qerrors.NewCryptoError("ReferenceDecapsulate", qerrors.ErrInvalidPrivateKey)
	}

	var sk mlkem768.PrivateKey
	if err := sk.Unpack(privateKey); err != nil {
		return nil, qerrors.NewCryptoError("ReferenceDecapsulate", qerrors.ErrInvalidPrivateKey)
	}

	kp := &ReferenceKeyPair{sk: &sk}
	return kp.Decapsulate(ciphertext)
}
