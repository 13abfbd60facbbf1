package api

import (
	"github.com/pzverkov/quantum-vault/pkg/kex"
)

// SecurityProfile is the static description of an algorithm, with sizes
// taken from the running mechanism.
type SecurityProfile struct {
	Name              string  `json:"name"`
	SecurityLevel     string  `json:"security_level"`
	QuantumResistance string  `json:"quantum_resistance"`
	KeySize           int     `json:"key_size"`
	PrivateKeySize    int     `json:"private_key_size"`
	CiphertextSize    int     `json:"ciphertext_size"`
	SharedSecretSize  int     `json:"shared_secret_size"`
	PerformanceFactor float64 `json:"performance_factor"`
	NISTStatus        string  `json:"nist_status"`
}

var profiles = map[kex.Algorithm]SecurityProfile{
	kex.Kyber: {
		SecurityLevel:     "Level 3 (AES-192 equivalent)",
		QuantumResistance: "High",
		PerformanceFactor: 5.2,
		NISTStatus:        "Standardized",
	},
	kex.RSA: {
		SecurityLevel:     "128-bit",
		QuantumResistance: "None",
		PerformanceFactor: 1.0,
		NISTStatus:        "Legacy",
	},
}

// SecurityComparison returns the profile of every algorithm in registry,
// keyed by wire name.
func SecurityComparison(registry *kex.Registry) map[string]SecurityProfile {
	out := make(map[string]SecurityProfile, len(kex.Algorithms))
	for _, alg := range kex.Algorithms {
		mech, err := registry.Get(alg)
		if err != nil {
			continue
		}
		p := profiles[alg]
		sizes := mech.Sizes()
		p.Name = alg.DisplayName()
		p.KeySize = sizes.PublicKey
		p.PrivateKeySize = sizes.PrivateKey
		p.CiphertextSize = sizes.Ciphertext
		p.SharedSecretSize = sizes.SharedSecret
		out[alg.String()] = p
	}
	return out
}
