package dhtop

import (
	"fmt"

	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/hashing"
)

// Light is the identity of an op: its type, the action it came from and its
// basis. Two ops with the same Light form are the same op.
type Light struct {
	_          struct{} `cbor:",toarray"`
	Type       Type
	ActionHash hashing.Hash
	Basis      hashing.Hash
}

// ToLight returns the light form of op.
func ToLight(op Op) Light {
	return Light{Type: op.Type(), ActionHash: op.ActionHash(), Basis: op.Basis()}
}

// Hash returns the op hash of l.
func (l Light) Hash() (hashing.Hash, error) {
	b, err := codec.Marshal(l)
	if err != nil {
		return hashing.Hash{}, err
	}
	return hashing.Sum(hashing.TypeDhtOp, b), nil
}

// Hash returns the op hash of op.
func Hash(op Op) (hashing.Hash, error) { return ToLight(op).Hash() }

// UniqueOps checks that no two ops share a hash and returns the hashes in
// op order.
func UniqueOps(ops []Op) ([]hashing.Hash, error) {
	out := make([]hashing.Hash, 0, len(ops))
	seen := make(map[hashing.Hash]int, len(ops))
	for i, op := range ops {
		h, err := Hash(op)
		if err != nil {
			return nil, err
		}
		if j, dup := seen[h]; dup {
			return nil, fmt.Errorf("dhtop: ops %d and %d are both %s for action %s", j, i, op.Type(), op.ActionHash())
		}
		seen[h] = i
		out = append(out, h)
	}
	return out, nil
}
