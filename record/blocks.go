package record

import (
	"bytes"
	"fmt"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/integrity"
	"xdao.co/agentchain/keys"
)

// Blocks returns the storage form of r: the action block carrying the
// signature, then the entry block when the entry is Present.
func Blocks(r Record) ([]cidutil.Block, error) {
	content, err := r.signed.Content().Canonical()
	if err != nil {
		return nil, err
	}
	out := []cidutil.Block{{Type: hashing.TypeAction, Content: content, Signature: r.signed.Signature()}}
	if r.entry.status != Present {
		return out, nil
	}
	ec, err := r.entry.entry.Canonical()
	if err != nil {
		return nil, err
	}
	return append(out, cidutil.Block{Type: hashing.TypeEntry, Content: ec}), nil
}

// FromBlocks rebuilds a record from an action block and, optionally, the
// block of the entry it references. The action hash is taken from the block
// content, so callers that fetched ab by hash get the hash they asked for.
// Blocks whose content is not the canonical encoding of what it decodes to
// are rejected.
func FromBlocks(ab cidutil.Block, eb *cidutil.Block) (Record, error) {
	if ab.Type != hashing.TypeAction {
		return Record{}, decodeErr("block of type %s is not an action", ab.Type)
	}
	a, err := action.Decode(ab.Content)
	if err != nil {
		return Record{}, err
	}
	if canon, err := a.Canonical(); err != nil {
		return Record{}, err
	} else if !bytes.Equal(canon, ab.Content) {
		return Record{}, decodeErr("action block %s is not canonically encoded", ab.Hash())
	}
	sa := action.RawFromSameHash(a, ab.Hash(), keys.Signature(ab.Signature))
	if eb == nil {
		return New(sa, nil), nil
	}

	want, _, ok := a.EntryRef()
	if !ok {
		return Record{}, decodeErr("entry block for %s action", a.Kind())
	}
	if got := eb.Hash(); eb.Type != hashing.TypeEntry || got != want {
		return Record{}, integrity.Chain(integrity.RuleEntryHash,
			fmt.Sprintf("entry block %s does not match action entry hash %s", got, want))
	}
	e, err := entry.Decode(eb.Content)
	if err != nil {
		return Record{}, err
	}
	if canon, err := e.Canonical(); err != nil {
		return Record{}, err
	} else if !bytes.Equal(canon, eb.Content) {
		return Record{}, decodeErr("entry block %s is not canonically encoded", eb.Hash())
	}
	return New(sa, e), nil
}
