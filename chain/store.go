package chain

import (
	"context"
	"fmt"
	"slices"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/facts"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/record"
	"xdao.co/agentchain/storage"
)

// A record is stored as an action block carrying the author's signature,
// plus an entry block when the entry is present.
func putRecord(p storage.Putter, r record.Record) error {
	blocks, err := record.Blocks(r)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if _, err := storage.PutBlock(p, b); err != nil {
			return fmt.Errorf("chain: store %s %s: %w", b.Type, b.Hash(), err)
		}
	}
	return nil
}

type blockGetter func(ctx context.Context, h hashing.Hash) (cidutil.Block, error)

func casGetter(cas storage.CAS) blockGetter {
	return func(ctx context.Context, h hashing.Hash) (cidutil.Block, error) {
		if err := ctx.Err(); err != nil {
			return cidutil.Block{}, err
		}
		return storage.GetBlock(cas, h)
	}
}

// readRecord rebuilds the record for action hash h. A missing entry block
// yields a record without an entry.
func readRecord(ctx context.Context, get blockGetter, h hashing.Hash) (record.Record, error) {
	ab, err := get(ctx, h)
	if err != nil {
		return record.Record{}, fmt.Errorf("chain: action %s: %w", h, err)
	}
	var eb *cidutil.Block
	if a, err := action.Decode(ab.Content); err == nil {
		if eh, _, ok := a.EntryRef(); ok {
			blk, err := get(ctx, eh)
			switch {
			case err == nil:
				eb = &blk
			case !storage.IsNotFound(err):
				return record.Record{}, fmt.Errorf("chain: entry %s: %w", eh, err)
			}
		}
	}
	r, err := record.FromBlocks(ab, eb)
	if err != nil {
		return record.Record{}, fmt.Errorf("chain: action %s: %w", h, err)
	}
	return r, nil
}

// Get returns the committed record for action hash h.
func (c *SourceChain) Get(ctx context.Context, h hashing.Hash) (record.Record, error) {
	c.mu.RLock()
	in := slices.Contains(c.hashes, h)
	c.mu.RUnlock()
	if !in {
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotInChain, h)
	}
	return readRecord(ctx, c.buf.GetBlock, h)
}

// Records returns every committed record in sequence order.
func (c *SourceChain) Records(ctx context.Context) ([]record.Record, error) {
	hashes := c.Hashes()
	out := make([]record.Record, 0, len(hashes))
	for _, h := range hashes {
		r, err := readRecord(ctx, c.buf.GetBlock, h)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Ops derives the ops of every committed record, in sequence order.
func (c *SourceChain) Ops(ctx context.Context) ([]dhtop.Op, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return nil, err
	}
	var ops []dhtop.Op
	for _, r := range records {
		derived, err := dhtop.Derive(r)
		if err != nil {
			return nil, err
		}
		ops = append(ops, derived...)
	}
	return ops, nil
}

// Republish sends the ops of every committed record to the publisher.
func (c *SourceChain) Republish(ctx context.Context) error {
	if c.pub == nil {
		return nil
	}
	ops, err := c.Ops(ctx)
	if err != nil {
		return err
	}
	// Appends hold mu while waiting for pubMu, so Ops must run first.
	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	if err := c.pub.Publish(ctx, ops); err != nil {
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

// Load rebuilds a chain from storage by walking back from head to genesis.
// Sequence numbers, hash links, authorship and timestamps are re-checked; in
// strict mode every signature is verified against ks.
func Load(ctx context.Context, cas storage.CAS, ks *keys.Keystore, head hashing.Hash, mode compliance.ComplianceMode, opts Options) (*SourceChain, error) {
	get := casGetter(cas)
	var records []record.Record
	for h := head; ; {
		r, err := readRecord(ctx, get, h)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
		prev, ok := r.Action().Prev()
		if !ok {
			break
		}
		h = prev
	}
	slices.Reverse(records)

	actions := make([]action.ActionHashed, len(records))
	for i, r := range records {
		if mode.VerifySignatures() {
			if err := action.VerifySignature(ks, r.SignedAction()); err != nil {
				return nil, fmt.Errorf("chain: action %d (%s): %w", i, r.ActionAddress(), err)
			}
		}
		actions[i] = r.ActionHashed()
	}
	if err := facts.CheckActions(actions); err != nil {
		return nil, err
	}

	genesis := records[0].Action()
	c := New(cas, ks, genesis.AuthorID(), opts)
	if dna, ok := genesis.(*action.Dna); ok {
		c.dna = dna.Hash
	}
	h := facts.HeadOf(actions[len(actions)-1])
	c.head = &h
	c.hashes = make([]hashing.Hash, len(actions))
	for i, ah := range actions {
		c.hashes[i] = ah.Hash()
	}
	c.logger.InfoContext(ctx, "chain loaded", "len", len(c.hashes), "head", h.Hash.String(), "mode", mode.String())
	return c, nil
}
