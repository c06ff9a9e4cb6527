// Package cidutil defines the block envelope stored in content-addressed
// storage and how a block's CID is derived from its bytes.
//
// A block carries hashed content plus an optional detached signature. The CID
// covers only the content, so a signed action stored as a block is addressed
// by its action hash.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/hashing"
)

var ErrInvalidBlock = errors.New("cidutil: invalid block")

// Block is the unit of storage.
type Block struct {
	Type      hashing.Type `cbor:"1,keyasint"`
	Content   []byte       `cbor:"2,keyasint"`
	Signature []byte       `cbor:"3,keyasint,omitempty"`
}

// Hash returns the typed content hash of the block.
func (b Block) Hash() hashing.Hash {
	return hashing.Sum(b.Type, b.Content)
}

// CID returns the storage key of the block.
func (b Block) CID() cid.Cid {
	return b.Hash().CID()
}

// EncodeBlock returns canonical bytes for b.
func EncodeBlock(b Block) ([]byte, error) {
	if b.Type == hashing.TypeUnknown || b.Type == hashing.TypeAgent {
		return nil, fmt.Errorf("%w: unsupported block type %s", ErrInvalidBlock, b.Type)
	}
	return codec.Marshal(b)
}

// DecodeBlock parses block bytes.
func DecodeBlock(data []byte) (Block, error) {
	var b Block
	if err := codec.Unmarshal(data, &b); err != nil {
		return Block{}, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if b.Type == hashing.TypeUnknown || b.Type == hashing.TypeAgent {
		return Block{}, fmt.Errorf("%w: unsupported block type %s", ErrInvalidBlock, b.Type)
	}
	return b, nil
}

// BlockCID returns the CID a CAS must assign to encoded block bytes.
func BlockCID(data []byte) (cid.Cid, error) {
	b, err := DecodeBlock(data)
	if err != nil {
		return cid.Undef, err
	}
	return b.CID(), nil
}

// SameContent reports whether two encoded blocks share a CID but differ in
// bytes. Stores use it to tell an idempotent re-put from a conflicting one.
func SameContent(a, b []byte) (same bool, err error) {
	ba, err := DecodeBlock(a)
	if err != nil {
		return false, err
	}
	bb, err := DecodeBlock(b)
	if err != nil {
		return false, err
	}
	return ba.Type == bb.Type && string(ba.Content) == string(bb.Content), nil
}
