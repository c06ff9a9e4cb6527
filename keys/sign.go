package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"

	"xdao.co/agentchain/hashing"
)

// Algorithm names.
const (
	AlgEd25519    = "ed25519"
	AlgDilithium3 = "dilithium3"
)

var ErrBadSignature = errors.New("keys: signature does not verify")

// Signature is a detached signature over hash bytes.
type Signature []byte

func (s Signature) String() string { return base64.StdEncoding.EncodeToString(s) }

func (s Signature) Equal(o Signature) bool { return bytes.Equal(s, o) }

func (s Signature) Clone() Signature {
	if s == nil {
		return nil
	}
	return append(Signature(nil), s...)
}

// ParseSignature decodes the base64 form produced by String.
func ParseSignature(s string) (Signature, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("keys: decode signature: %w", err)
	}
	return Signature(b), nil
}

// Signer signs on behalf of one agent.
type Signer interface {
	Algorithm() string
	AgentID() hashing.Hash
	PublicKey() []byte
	Sign(message []byte) (Signature, error)
	Verify(message []byte, sig Signature) bool
}

// Ed25519Signer signs message bytes directly.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
}

var _ Signer = (*Ed25519Signer)(nil)

// NewEd25519Signer returns a signer for a 32-byte seed.
func NewEd25519Signer(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Ed25519Signer{priv: ed25519.NewKeyFromSeed(seed)}, nil
}

func (s *Ed25519Signer) Algorithm() string { return AlgEd25519 }

func (s *Ed25519Signer) PublicKey() []byte {
	return append([]byte(nil), s.priv.Public().(ed25519.PublicKey)...)
}

func (s *Ed25519Signer) AgentID() hashing.Hash { return hashing.AgentFromKey(s.PublicKey()) }

func (s *Ed25519Signer) Sign(message []byte) (Signature, error) {
	return Signature(ed25519.Sign(s.priv, message)), nil
}

func (s *Ed25519Signer) Verify(message []byte, sig Signature) bool {
	return ed25519.Verify(s.priv.Public().(ed25519.PublicKey), message, sig)
}

// Dilithium3Signer signs sha3-256(message) with a Dilithium3 key.
type Dilithium3Signer struct {
	pub  *mode3.PublicKey
	priv *mode3.PrivateKey
}

var _ Signer = (*Dilithium3Signer)(nil)

// NewDilithium3Signer derives a Dilithium3 keypair from a 32-byte seed.
func NewDilithium3Signer(seed []byte) (*Dilithium3Signer, error) {
	if len(seed) != mode3.SeedSize {
		return nil, fmt.Errorf("dilithium3 seed must be %d bytes, got %d", mode3.SeedSize, len(seed))
	}
	var s [mode3.SeedSize]byte
	copy(s[:], seed)
	pub, priv := mode3.NewKeyFromSeed(&s)
	return &Dilithium3Signer{pub: pub, priv: priv}, nil
}

// GenerateDilithium3Signer returns a signer with a fresh keypair.
func GenerateDilithium3Signer(rand io.Reader) (*Dilithium3Signer, error) {
	pub, priv, err := mode3.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return &Dilithium3Signer{pub: pub, priv: priv}, nil
}

func (s *Dilithium3Signer) Algorithm() string { return AlgDilithium3 }

func (s *Dilithium3Signer) PublicKey() []byte { return s.pub.Bytes() }

func (s *Dilithium3Signer) AgentID() hashing.Hash { return hashing.AgentFromKey(s.PublicKey()) }

func (s *Dilithium3Signer) Sign(message []byte) (Signature, error) {
	digest := sha3.Sum256(message)
	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(s.priv, digest[:], sig)
	return Signature(sig), nil
}

func (s *Dilithium3Signer) Verify(message []byte, sig Signature) bool {
	digest := sha3.Sum256(message)
	return mode3.Verify(s.pub, digest[:], sig)
}

// Verify checks sig over message for a public key of the given algorithm.
func Verify(alg string, pub, message []byte, sig Signature) error {
	switch alg {
	case AlgEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("ed25519 public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), message, sig) {
			return ErrBadSignature
		}
		return nil
	case AlgDilithium3:
		var pk mode3.PublicKey
		if err := pk.UnmarshalBinary(pub); err != nil {
			return fmt.Errorf("dilithium3 public key: %w", err)
		}
		digest := sha3.Sum256(message)
		if !mode3.Verify(&pk, digest[:], sig) {
			return ErrBadSignature
		}
		return nil
	default:
		return fmt.Errorf("unsupported signature algorithm: %q", alg)
	}
}

// VerifyAgent checks an Ed25519 signature using the key carried in an agent
// hash. Agents whose hash is a digest of a larger key need Verify instead.
func VerifyAgent(agent hashing.Hash, message []byte, sig Signature) error {
	if agent.Type() != hashing.TypeAgent {
		return fmt.Errorf("keys: %s is not an agent hash", agent.Type())
	}
	return Verify(AlgEd25519, agent.Bytes(), message, sig)
}
