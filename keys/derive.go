package keys

import (
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
)

// DeriveAgentSeed deterministically derives a per-agent seed from a root seed.
// The same root and name always yield the same seed.
func DeriveAgentSeed(rootSeed []byte, name string) ([]byte, error) {
	if len(rootSeed) != ed25519.SeedSize {
		return nil, fmt.Errorf("root seed must be %d bytes", ed25519.SeedSize)
	}
	if err := CheckKeyName(name); err != nil {
		return nil, err
	}

	h := sha256.New()
	_, _ = h.Write(rootSeed)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("xdao-agentchain-keystore-v1"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte("agent:"))
	_, _ = h.Write([]byte(name))
	sum := h.Sum(nil)
	if len(sum) < ed25519.SeedSize {
		return nil, errors.New("kdf output too short")
	}
	out := make([]byte, ed25519.SeedSize)
	copy(out, sum[:ed25519.SeedSize])
	return out, nil
}

// NewSigner builds a signer of the named algorithm from a seed.
func NewSigner(alg string, seed []byte) (Signer, error) {
	switch alg {
	case "", AlgEd25519:
		return NewEd25519Signer(seed)
	case AlgDilithium3:
		return NewDilithium3Signer(seed)
	default:
		return nil, fmt.Errorf("unsupported signature algorithm: %q", alg)
	}
}
