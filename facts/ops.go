package facts

import (
	"fmt"

	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/hashing"
)

// OpSeq returns the sequence of the action an op wraps. Dna ops have no
// sequence field and report 0.
func OpSeq(op dhtop.Op) uint32 {
	if p := op.SeqMut(); p != nil {
		return *p
	}
	return op.Action().Seq()
}

// CheckOpStream verifies that the distinct actions behind ops, in first-seen
// order, have sequence numbers 0, 1, 2, ... and that every op of one action
// reports the same sequence.
func CheckOpStream(ops []dhtop.Op) error {
	seen := make(map[hashing.Hash]uint32)
	c := NewConsecutive("chain", 0)
	for i, op := range ops {
		s := OpSeq(op)
		if prev, ok := seen[op.ActionHash()]; ok {
			if prev != s {
				return fmt.Errorf("op %d: action %s reported sequence %d and %d", i, op.ActionHash(), prev, s)
			}
			continue
		}
		if err := c.Check(s); err != nil {
			return fmt.Errorf("op %d (%s): %w", i, op.Type(), err)
		}
		seen[op.ActionHash()] = s
	}
	return nil
}
