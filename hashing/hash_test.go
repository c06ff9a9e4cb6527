package hashing

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum(TypeAction, []byte("hello"))
	b := Sum(TypeAction, []byte("hello"))
	if a != b {
		t.Fatalf("expected equal hashes for equal content")
	}
	if a == Sum(TypeAction, []byte("hello!")) {
		t.Fatalf("expected different hashes for different content")
	}
	if a == Sum(TypeEntry, []byte("hello")) {
		t.Fatalf("expected hash type to participate in identity")
	}
}

func TestCIDRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeAction, TypeEntry, TypeDhtOp, TypeDna, TypeExternal} {
		h := Sum(typ, []byte("content"))
		got, err := Parse(typ, h.String())
		if err != nil {
			t.Fatalf("%s: Parse: %v", typ, err)
		}
		if got != h {
			t.Fatalf("%s: round trip mismatch", typ)
		}
	}
}

func TestAgentFromKey(t *testing.T) {
	pub := bytes.Repeat([]byte{7}, Size)
	h := AgentFromKey(pub)
	if h.Type() != TypeAgent {
		t.Fatalf("unexpected type %s", h.Type())
	}
	if !bytes.Equal(h.Bytes(), pub) {
		t.Fatalf("32-byte keys should be carried directly")
	}
	if h.CID().Type() != cid.Libp2pKey {
		t.Fatalf("agent CID should use libp2p-key codec")
	}
	got, err := Parse(TypeAgent, h.String())
	if err != nil || got != h {
		t.Fatalf("agent parse: %v", err)
	}

	long := AgentFromKey(bytes.Repeat([]byte{1}, 1952))
	if long.IsZero() || long.Type() != TypeAgent {
		t.Fatalf("long keys should hash to an agent id")
	}
}

func TestParseWrongType(t *testing.T) {
	h := Sum(TypeEntry, []byte("x"))
	if _, err := Parse(TypeAgent, h.String()); !errors.Is(err, ErrWrongType) {
		t.Fatalf("expected ErrWrongType, got %v", err)
	}
	if _, err := Parse(TypeAction, "not-a-cid"); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
}

func TestBinaryRoundTrip(t *testing.T) {
	h := Sum(TypeDna, []byte("dna"))
	b, err := h.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	var got Hash
	if err := got.UnmarshalBinary(b); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got != h {
		t.Fatalf("binary round trip mismatch")
	}

	zero, _ := Hash{}.MarshalBinary()
	if len(zero) != 0 {
		t.Fatalf("zero hash should encode empty")
	}
	if err := got.UnmarshalBinary(zero); err != nil || !got.IsZero() {
		t.Fatalf("empty bytes should decode to zero hash")
	}
	if err := got.UnmarshalBinary([]byte{1, 2}); !errors.Is(err, ErrInvalidHash) {
		t.Fatalf("expected ErrInvalidHash for short input, got %v", err)
	}
}

func TestZeroHash(t *testing.T) {
	var h Hash
	if !h.IsZero() || h.String() != "" || h.CID().Defined() {
		t.Fatalf("zero hash should be empty and undefined")
	}
}
