package keys

import (
	"crypto/ed25519"
	"errors"
	"io"
	"testing"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"xdao.co/agentchain/hashing"
)

type deterministicReader struct{ b byte }

func (r *deterministicReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.b
		r.b++
	}
	return len(p), nil
}

func testSeed() []byte {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return seed
}

func TestEd25519SignerVerifies(t *testing.T) {
	s, err := NewEd25519Signer(testSeed())
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}
	msg := hashing.Sum(hashing.TypeAction, []byte("hello")).Bytes()
	sig, err := s.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := Verify(AlgEd25519, s.PublicKey(), msg, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := VerifyAgent(s.AgentID(), msg, sig); err != nil {
		t.Fatalf("VerifyAgent: %v", err)
	}
	msg[0] ^= 1
	if err := VerifyAgent(s.AgentID(), msg, sig); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestDilithium3SignerVerifies(t *testing.T) {
	s, err := GenerateDilithium3Signer(io.Reader(&deterministicReader{}))
	if err != nil {
		t.Fatalf("GenerateDilithium3Signer: %v", err)
	}
	msg := []byte("hello")
	sig, err := s.Sign(msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if len(sig) != mode3.SignatureSize {
		t.Fatalf("unexpected signature size: got %d want %d", len(sig), mode3.SignatureSize)
	}
	if !s.Verify(msg, sig) {
		t.Fatalf("signature did not verify")
	}
	if err := Verify(AlgDilithium3, s.PublicKey(), msg, sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if s.AgentID().Type() != hashing.TypeAgent {
		t.Fatalf("expected agent hash")
	}
}

func TestSignatureString(t *testing.T) {
	sig := Signature{1, 2, 3}
	got, err := ParseSignature(sig.String())
	if err != nil {
		t.Fatalf("ParseSignature: %v", err)
	}
	if !got.Equal(sig) {
		t.Fatalf("signature round trip mismatch")
	}
	c := sig.Clone()
	c[0] = 9
	if sig[0] != 1 {
		t.Fatalf("Clone should not alias")
	}
}

func TestKeystore(t *testing.T) {
	s, _ := NewEd25519Signer(testSeed())
	ks := NewKeystore()
	id := ks.Add(s)
	if id != s.AgentID() {
		t.Fatalf("Add returned wrong id")
	}
	sig, err := ks.Sign(id, []byte("m"))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := ks.Verify(id, []byte("m"), sig); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	other := hashing.AgentFromKey(make([]byte, 32))
	if _, err := ks.Sign(other, []byte("m")); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}
