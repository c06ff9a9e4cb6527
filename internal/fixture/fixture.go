// Package fixture builds deterministic keys, actions and chains for tests and
// vector generators. Functions panic on error.
package fixture

import (
	"bytes"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/record"
)

// Seed returns a 32-byte seed filled with b.
func Seed(b byte) []byte { return bytes.Repeat([]byte{b}, 32) }

// Signer returns the Ed25519 signer for Seed(b).
func Signer(b byte) *keys.Ed25519Signer {
	s, err := keys.NewEd25519Signer(Seed(b))
	if err != nil {
		panic(err)
	}
	return s
}

// DnaHash is the DNA every fixture chain belongs to.
func DnaHash() hashing.Hash { return hashing.Sum(hashing.TypeDna, []byte("fixture-dna")) }

// Sign hashes and signs a with s.
func Sign(a action.Action, s keys.Signer) action.SignedActionHashed {
	sah, err := action.Sign(a, s)
	if err != nil {
		panic(err)
	}
	return sah
}

// EntryHash returns the hash of e.
func EntryHash(e *entry.Entry) hashing.Hash {
	h, err := e.Hash()
	if err != nil {
		panic(err)
	}
	return h
}

// Chain appends well-formed actions for one agent. Timestamps advance by one
// second per action starting at Start.
type Chain struct {
	Signer  keys.Signer
	Records []record.Record

	ts action.Timestamp
}

// Start is the timestamp of the first fixture action.
const Start action.Timestamp = 1_700_000_000_000_000

// NewChain returns a chain holding only its Dna action.
func NewChain(s keys.Signer) *Chain {
	c := &Chain{Signer: s, ts: Start}
	c.Add(&action.Dna{Author: s.AgentID(), Timestamp: c.ts, Hash: DnaHash()}, nil)
	return c
}

// Genesis returns a chain with Dna, AgentValidationPkg and the agent key entry.
func Genesis(s keys.Signer) *Chain {
	c := NewChain(s)
	c.Add(&action.AgentValidationPkg{Common: c.Next()}, nil)
	ak := entry.AgentKey(s.AgentID())
	c.Add(&action.Create{Common: c.Next(), EntryType: entry.AgentKeyType(), EntryHash: EntryHash(ak)}, ak)
	return c
}

// Next returns the common fields for the next action and advances the clock.
func (c *Chain) Next() action.Common {
	c.ts += 1_000_000
	return action.Common{
		Author:     c.Signer.AgentID(),
		Timestamp:  c.ts,
		ActionSeq:  uint32(len(c.Records)),
		PrevAction: c.Head().ActionAddress(),
	}
}

// Head returns the last record.
func (c *Chain) Head() record.Record { return c.Records[len(c.Records)-1] }

// Add signs a, wraps it with e and appends the record.
func (c *Chain) Add(a action.Action, e *entry.Entry) record.Record {
	r := record.New(Sign(a, c.Signer), e)
	c.Records = append(c.Records, r)
	return r
}

// Create commits an app entry of the given visibility. The entry is attached
// to the record.
func (c *Chain) Create(payload string, v entry.Visibility) record.Record {
	e := entry.App([]byte(payload))
	return c.Add(&action.Create{Common: c.Next(), EntryType: entry.AppType(0, 0, v), EntryHash: EntryHash(e)}, e)
}

// Update replaces the entry created by orig.
func (c *Chain) Update(orig record.Record, payload string) record.Record {
	e := entry.App([]byte(payload))
	origEntry, typ, _ := orig.Action().EntryRef()
	return c.Add(&action.Update{
		Common:                c.Next(),
		OriginalActionAddress: orig.ActionAddress(),
		OriginalEntryAddress:  origEntry,
		EntryType:             typ,
		EntryHash:             EntryHash(e),
	}, e)
}

// Delete deletes the entry created by orig.
func (c *Chain) Delete(orig record.Record) record.Record {
	eh, _, _ := orig.Action().EntryRef()
	return c.Add(&action.Delete{Common: c.Next(), DeletesAddress: orig.ActionAddress(), DeletesEntryAddress: eh}, nil)
}

// Link links base to target.
func (c *Chain) Link(base, target hashing.Hash, tag string) record.Record {
	return c.Add(&action.CreateLink{Common: c.Next(), BaseAddress: base, TargetAddress: target, Tag: []byte(tag)}, nil)
}

// Unlink removes the link added by add.
func (c *Chain) Unlink(add record.Record) record.Record {
	l, _ := add.CreateLink()
	return c.Add(&action.DeleteLink{Common: c.Next(), BaseAddress: l.BaseAddress, LinkAddAddress: add.ActionAddress()}, nil)
}

// Actions returns the chain's actions in order.
func (c *Chain) Actions() []action.Action {
	out := make([]action.Action, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.Action()
	}
	return out
}

// Hashes returns the chain's action hashes in order.
func (c *Chain) Hashes() []hashing.Hash {
	out := make([]hashing.Hash, len(c.Records))
	for i, r := range c.Records {
		out[i] = r.ActionAddress()
	}
	return out
}
