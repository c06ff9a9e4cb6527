// Package hashing defines the fixed-width content hash used as both identity
// and DHT routing address.
//
// Content hashes are BLAKE3-256 digests of canonical CBOR bytes. Agent hashes
// carry the agent's 32-byte Ed25519 public key directly (or the BLAKE3 digest
// of a larger key). Every hash renders as a CIDv1 so it can key a CAS.
package hashing

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/zeebo/blake3"
)

// Size is the digest width in bytes.
const Size = 32

// Type records what kind of content a hash addresses.
type Type uint8

const (
	TypeUnknown Type = iota
	TypeAction
	TypeEntry
	TypeAgent
	TypeDhtOp
	TypeDna
	TypeExternal
)

func (t Type) String() string {
	switch t {
	case TypeAction:
		return "action"
	case TypeEntry:
		return "entry"
	case TypeAgent:
		return "agent"
	case TypeDhtOp:
		return "dht-op"
	case TypeDna:
		return "dna"
	case TypeExternal:
		return "external"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

func (t Type) valid() bool { return t >= TypeAction && t <= TypeExternal }

var (
	ErrInvalidHash = errors.New("hashing: invalid hash")
	ErrWrongType   = errors.New("hashing: wrong hash type")
)

// Hash is a typed 32-byte content identifier. The zero value means "no hash".
// Hash is comparable and may be used as a map key.
type Hash struct {
	typ    Type
	digest [Size]byte
}

// Sum returns the hash of canonical bytes data.
func Sum(t Type, data []byte) Hash {
	return Hash{typ: t, digest: blake3.Sum256(data)}
}

// FromDigest wraps an existing 32-byte digest.
func FromDigest(t Type, digest []byte) (Hash, error) {
	if !t.valid() {
		return Hash{}, fmt.Errorf("%w: type %s", ErrInvalidHash, t)
	}
	if len(digest) != Size {
		return Hash{}, fmt.Errorf("%w: digest is %d bytes, want %d", ErrInvalidHash, len(digest), Size)
	}
	h := Hash{typ: t}
	copy(h.digest[:], digest)
	return h, nil
}

// AgentFromKey returns the agent identity for a public key.
func AgentFromKey(pub []byte) Hash {
	if len(pub) == Size {
		h := Hash{typ: TypeAgent}
		copy(h.digest[:], pub)
		return h
	}
	return Hash{typ: TypeAgent, digest: blake3.Sum256(pub)}
}

func (h Hash) Type() Type { return h.typ }

func (h Hash) Digest() [Size]byte { return h.digest }

// Bytes returns a copy of the digest.
func (h Hash) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, h.digest[:])
	return out
}

func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) multihashCode() uint64 {
	if h.typ == TypeAgent {
		return multihash.IDENTITY
	}
	return multihash.BLAKE3
}

func codecFor(t Type) uint64 {
	switch t {
	case TypeAgent:
		return cid.Libp2pKey
	case TypeExternal:
		return cid.Raw
	default:
		return cid.DagCBOR
	}
}

// CID renders h as a CIDv1. The zero hash renders as cid.Undef.
func (h Hash) CID() cid.Cid {
	if h.IsZero() {
		return cid.Undef
	}
	mh, err := multihash.Encode(h.digest[:], h.multihashCode())
	if err != nil {
		// Encode only fails for unknown codes; both codes used here are registered.
		return cid.Undef
	}
	return cid.NewCidV1(codecFor(h.typ), mh)
}

func (h Hash) String() string {
	if h.IsZero() {
		return ""
	}
	return h.CID().String()
}

// FromCID interprets c as a hash of type t.
func FromCID(t Type, c cid.Cid) (Hash, error) {
	if !c.Defined() {
		return Hash{}, ErrInvalidHash
	}
	if c.Type() != codecFor(t) {
		return Hash{}, fmt.Errorf("%w: codec 0x%x for %s", ErrWrongType, c.Type(), t)
	}
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	want := (Hash{typ: t}).multihashCode()
	if dec.Code != want {
		return Hash{}, fmt.Errorf("%w: multihash code 0x%x", ErrInvalidHash, dec.Code)
	}
	return FromDigest(t, dec.Digest)
}

// Parse decodes the CID string form of a hash of type t.
func Parse(t Type, s string) (Hash, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return Hash{}, fmt.Errorf("%w: %v", ErrInvalidHash, err)
	}
	return FromCID(t, c)
}

// MarshalBinary encodes the hash as type byte followed by digest. The zero
// hash encodes as an empty byte string.
func (h Hash) MarshalBinary() ([]byte, error) {
	if h.IsZero() {
		return []byte{}, nil
	}
	out := make([]byte, 1+Size)
	out[0] = byte(h.typ)
	copy(out[1:], h.digest[:])
	return out, nil
}

func (h *Hash) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		*h = Hash{}
		return nil
	}
	if len(data) != 1+Size {
		return fmt.Errorf("%w: encoded length %d", ErrInvalidHash, len(data))
	}
	parsed, err := FromDigest(Type(data[0]), data[1:])
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
