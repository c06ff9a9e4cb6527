package chain

import (
	"context"
	"errors"
	"fmt"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/record"
)

// Genesis commits Dna, AgentValidationPkg and the Create of the agent key
// entry, at sequences 0, 1 and 2.
func (c *SourceChain) Genesis(ctx context.Context, dna hashing.Hash, membraneProof []byte) ([]record.Record, error) {
	if _, ok := c.Head(); ok {
		return nil, ErrNotEmpty
	}
	var out []record.Record
	keep := func(r record.Record, err error) error {
		if err == nil || errors.Is(err, ErrPublish) {
			out = append(out, r)
		}
		return err
	}

	if err := keep(c.Append(ctx, &action.Dna{Author: c.author, Timestamp: action.TimestampOf(c.now()), Hash: dna}, nil)); err != nil {
		return out, err
	}
	if err := keep(c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.AgentValidationPkg{Common: next, MembraneProof: membraneProof}, nil, nil
	})); err != nil {
		return out, err
	}
	err := keep(c.Create(ctx, entry.AgentKeyType(), entry.AgentKey(c.author)))
	return out, err
}

// InitZomesComplete commits the end-of-initialisation marker.
func (c *SourceChain) InitZomesComplete(ctx context.Context) (record.Record, error) {
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.InitZomesComplete{Common: next}, nil, nil
	})
}

// Create commits e under typ.
func (c *SourceChain) Create(ctx context.Context, typ entry.Type, e *entry.Entry) (record.Record, error) {
	eh, err := e.Hash()
	if err != nil {
		return record.Record{}, err
	}
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.Create{Common: next, EntryType: typ, EntryHash: eh}, e, nil
	})
}

// Update replaces the entry written by the Create or Update at original. The
// new entry keeps the original entry type.
func (c *SourceChain) Update(ctx context.Context, original hashing.Hash, e *entry.Entry) (record.Record, error) {
	orig, err := c.Get(ctx, original)
	if err != nil {
		return record.Record{}, err
	}
	origEntry, typ, ok := orig.Action().EntryRef()
	if !ok {
		return record.Record{}, fmt.Errorf("%w: cannot update %s", ErrWrongAction, orig.Action().Kind())
	}
	eh, err := e.Hash()
	if err != nil {
		return record.Record{}, err
	}
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.Update{
			Common:                next,
			OriginalActionAddress: original,
			OriginalEntryAddress:  origEntry,
			EntryType:             typ,
			EntryHash:             eh,
		}, e, nil
	})
}

// Delete deletes the entry written by the Create or Update at original.
func (c *SourceChain) Delete(ctx context.Context, original hashing.Hash) (record.Record, error) {
	orig, err := c.Get(ctx, original)
	if err != nil {
		return record.Record{}, err
	}
	eh, _, ok := orig.Action().EntryRef()
	if !ok {
		return record.Record{}, fmt.Errorf("%w: cannot delete %s", ErrWrongAction, orig.Action().Kind())
	}
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.Delete{Common: next, DeletesAddress: original, DeletesEntryAddress: eh}, nil, nil
	})
}

// Link describes a CreateLink.
type Link struct {
	Base, Target hashing.Hash
	ZomeID       uint8
	LinkType     uint8
	Tag          []byte
}

// CreateLink commits a link from l.Base to l.Target.
func (c *SourceChain) CreateLink(ctx context.Context, l Link) (record.Record, error) {
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.CreateLink{
			Common:        next,
			BaseAddress:   l.Base,
			TargetAddress: l.Target,
			ZomeID:        l.ZomeID,
			LinkType:      l.LinkType,
			Tag:           append([]byte(nil), l.Tag...),
		}, nil, nil
	})
}

// DeleteLink removes the link added by the CreateLink at add.
func (c *SourceChain) DeleteLink(ctx context.Context, add hashing.Hash) (record.Record, error) {
	r, err := c.Get(ctx, add)
	if err != nil {
		return record.Record{}, err
	}
	cl, ok := r.CreateLink()
	if !ok {
		return record.Record{}, fmt.Errorf("%w: %s is not a CreateLink", ErrWrongAction, add)
	}
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.DeleteLink{Common: next, BaseAddress: cl.BaseAddress, LinkAddAddress: add}, nil, nil
	})
}

// CloseChain ends the chain in favour of newDna.
func (c *SourceChain) CloseChain(ctx context.Context, newDna hashing.Hash) (record.Record, error) {
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.CloseChain{Common: next, NewDnaHash: newDna}, nil, nil
	})
}

// OpenChain records that this chain continues one from prevDna.
func (c *SourceChain) OpenChain(ctx context.Context, prevDna hashing.Hash) (record.Record, error) {
	return c.Commit(ctx, func(next action.Common) (action.Action, *entry.Entry, error) {
		return &action.OpenChain{Common: next, PrevDnaHash: prevDna}, nil, nil
	})
}
