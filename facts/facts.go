// Package facts holds the chain-consistency checks used both when appending
// and as oracles in property tests.
package facts

import (
	"fmt"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/integrity"
)

// CheckConsecutive verifies that seqs is exactly start, start+1, ...
func CheckConsecutive(seqs []uint32, start uint32) error {
	c := NewConsecutive("chain", start)
	for _, s := range seqs {
		if err := c.Check(s); err != nil {
			return err
		}
	}
	return nil
}

// Consecutive is a stateful fact over a stream of integers. Check verifies the
// next value; Apply overwrites it so that the stream satisfies the fact.
type Consecutive struct {
	label string
	next  uint32
}

func NewConsecutive(label string, start uint32) *Consecutive {
	return &Consecutive{label: label, next: start}
}

func (c *Consecutive) Check(v uint32) error {
	if v != c.next {
		return integrity.Chain(integrity.RuleSeq, fmt.Sprintf("%s: sequence %d, want %d", c.label, v, c.next))
	}
	c.next++
	return nil
}

func (c *Consecutive) Apply(p *uint32) {
	if p == nil {
		c.next++
		return
	}
	*p = c.next
	c.next++
}

// Head is what the next action on a chain must build on.
type Head struct {
	Hash      hashing.Hash
	Seq       uint32
	Timestamp action.Timestamp
	Author    hashing.Hash
}

// HeadOf returns the head formed by ah.
func HeadOf(ah action.ActionHashed) Head {
	a := ah.Content()
	return Head{Hash: ah.Hash(), Seq: a.Seq(), Timestamp: a.Time(), Author: a.AuthorID()}
}

// CheckNext verifies that next may be appended on head. A nil head means the
// chain is empty, and only a Dna action may start it.
func CheckNext(head *Head, next action.Action) error {
	if head == nil {
		if next.Kind() != action.KindDna {
			return integrity.Chain(integrity.RuleGenesis, fmt.Sprintf("chain must start with Dna, got %s", next.Kind()))
		}
		return nil
	}
	if next.Kind() == action.KindDna {
		return integrity.Chain(integrity.RuleGenesis, fmt.Sprintf("Dna may only appear at sequence 0, chain head is %d", head.Seq))
	}
	if want := head.Seq + 1; next.Seq() != want {
		return integrity.Chain(integrity.RuleSeq, fmt.Sprintf("sequence %d does not follow head %d", next.Seq(), head.Seq))
	}
	if prev, _ := next.Prev(); prev != head.Hash {
		return integrity.Chain(integrity.RuleLink, fmt.Sprintf("prev action %s is not head %s", prev, head.Hash))
	}
	if next.AuthorID() != head.Author {
		return integrity.Chain(integrity.RuleAuthor, fmt.Sprintf("author %s differs from chain author %s", next.AuthorID(), head.Author))
	}
	if next.Time() < head.Timestamp {
		return integrity.Chain(integrity.RuleTime, fmt.Sprintf("timestamp %s precedes head %s", next.Time(), head.Timestamp))
	}
	return nil
}

// CheckActions verifies a whole chain in order, starting from Dna.
func CheckActions(actions []action.ActionHashed) error {
	var head *Head
	for i, ah := range actions {
		if err := CheckNext(head, ah.Content()); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
		h := HeadOf(ah)
		head = &h
	}
	return nil
}
