// Package dht is an in-process DHT shard. It receives published op batches,
// validates them, stores the records they carry and indexes every op by its
// basis hash.
package dht

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

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

var (
	ErrInvalidOp = errors.New("dht: invalid op")
	ErrNotHeld   = errors.New("dht: not held")
)

type Options struct {
	// Mode defaults to Strict, which verifies every op signature.
	Mode   compliance.ComplianceMode
	Logger *slog.Logger
}

// Shard holds integrated ops. Safe for concurrent use.
type Shard struct {
	cas    storage.CAS
	ks     *keys.Keystore
	mode   compliance.ComplianceMode
	logger *slog.Logger

	mu      sync.RWMutex
	ops     map[hashing.Hash]dhtop.Op
	byBasis map[hashing.Hash][]hashing.Hash
}

// NewShard returns an empty shard storing record blocks in cas. ks is used
// for signature checks in strict mode; agents it does not hold are verified
// from the key embedded in their hash.
func NewShard(cas storage.CAS, ks *keys.Keystore, opts Options) *Shard {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if ks == nil {
		ks = keys.NewKeystore()
	}
	return &Shard{
		cas:     cas,
		ks:      ks,
		mode:    opts.Mode,
		logger:  logger,
		ops:     make(map[hashing.Hash]dhtop.Op),
		byBasis: make(map[hashing.Hash][]hashing.Hash),
	}
}

// Publish validates and integrates ops. Either every op in the batch is
// valid and integrated, or none is. Ops already held are skipped.
func (s *Shard) Publish(ctx context.Context, ops []dhtop.Op) error {
	type pending struct {
		hash hashing.Hash
		op   dhtop.Op
	}
	batch := make([]pending, 0, len(ops))
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		checked, err := s.validate(op)
		if err != nil {
			s.logger.WarnContext(ctx, "op rejected", "index", i, "type", op.Type().String(), "error", err)
			return fmt.Errorf("op %d: %w", i, err)
		}
		h, err := dhtop.Hash(checked)
		if err != nil {
			return err
		}
		batch = append(batch, pending{hash: h, op: checked})
	}

	err := storage.WithTxn(ctx, s.cas, func(txn storage.Txn) error {
		for _, p := range batch {
			if err := putOpBlocks(txn, p.op); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("dht: store: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, p := range batch {
		if _, ok := s.ops[p.hash]; ok {
			continue
		}
		s.ops[p.hash] = p.op
		basis := p.op.Basis()
		s.byBasis[basis] = append(s.byBasis[basis], p.hash)
		added++
	}
	s.logger.DebugContext(ctx, "integrated", "received", len(ops), "new", added)
	return nil
}

// validate re-derives the op from its wire form, which recomputes the action
// hash and rejects misplaced or private entries, then checks the signature in
// strict mode.
func (s *Shard) validate(op dhtop.Op) (dhtop.Op, error) {
	data, err := dhtop.Encode(op)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOp, err)
	}
	checked, err := dhtop.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOp, err)
	}
	if checked.ActionHash() != op.ActionHash() {
		return nil, fmt.Errorf("%w: action hash %s, content hashes to %s", ErrInvalidOp, op.ActionHash(), checked.ActionHash())
	}
	if s.mode.VerifySignatures() {
		if err := s.ks.Verify(checked.Action().AuthorID(), checked.ActionHash().Bytes(), checked.Signature()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidOp, err)
		}
	}
	return checked, nil
}

func putOpBlocks(p storage.Putter, op dhtop.Op) error {
	content, err := op.Action().Canonical()
	if err != nil {
		return err
	}
	if _, err := storage.PutBlock(p, cidutil.Block{Type: hashing.TypeAction, Content: content, Signature: op.Signature()}); err != nil {
		return err
	}
	e, ok := op.Entry()
	if !ok {
		return nil
	}
	ec, err := e.Canonical()
	if err != nil {
		return err
	}
	_, err = storage.PutBlock(p, cidutil.Block{Type: hashing.TypeEntry, Content: ec})
	return err
}

// Len returns the number of integrated ops.
func (s *Shard) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ops)
}

// Ops returns copies of the ops integrated at basis, in integration order.
func (s *Shard) Ops(basis hashing.Hash) []dhtop.Op {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hs := s.byBasis[basis]
	out := make([]dhtop.Op, 0, len(hs))
	for _, h := range hs {
		out = append(out, s.ops[h].Clone())
	}
	return out
}

// Has reports whether the op with hash h is integrated.
func (s *Shard) Has(h hashing.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ops[h]
	return ok
}

// GetRecord returns the record for an action held by the shard. Private
// entries are never published, so their records come back Hidden.
func (s *Shard) GetRecord(ctx context.Context, h hashing.Hash) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	ab, err := storage.GetBlock(s.cas, h)
	if storage.IsNotFound(err) {
		return record.Record{}, fmt.Errorf("%w: %s", ErrNotHeld, h)
	}
	if err != nil {
		return record.Record{}, err
	}
	a, err := action.Decode(ab.Content)
	if err != nil {
		return record.Record{}, err
	}
	var eb *cidutil.Block
	if eh, _, ok := a.EntryRef(); ok {
		blk, err := storage.GetBlock(s.cas, eh)
		switch {
		case err == nil:
			eb = &blk
		case !storage.IsNotFound(err):
			return record.Record{}, err
		}
	}
	return record.FromBlocks(ab, eb)
}

// Activity is an agent's chain as seen through RegisterAgentActivity ops.
type Activity struct {
	Actions []action.ActionHashed
	// Highest is the highest sequence seen. Complete reports whether the held
	// actions form an unbroken chain from genesis to Highest.
	Highest  uint32
	Complete bool
}

// AgentActivity returns agent's held actions ordered by sequence.
func (s *Shard) AgentActivity(agent hashing.Hash) Activity {
	ops := s.Ops(agent)
	var act Activity
	seen := make(map[hashing.Hash]struct{}, len(ops))
	for _, op := range ops {
		if op.Type() != dhtop.TypeRegisterAgentActivity {
			continue
		}
		if _, ok := seen[op.ActionHash()]; ok {
			continue
		}
		seen[op.ActionHash()] = struct{}{}
		act.Actions = append(act.Actions, action.RawFromSameHash(op.Action(), op.ActionHash(), op.Signature()).Hashed())
	}
	sort.SliceStable(act.Actions, func(i, j int) bool {
		return act.Actions[i].Content().Seq() < act.Actions[j].Content().Seq()
	})
	if n := len(act.Actions); n > 0 {
		act.Highest = act.Actions[n-1].Content().Seq()
		act.Complete = facts.CheckActions(act.Actions) == nil
	}
	return act
}

// Links returns the live links on base: every CreateLink not removed by a
// DeleteLink held at the same basis, in integration order.
func (s *Shard) Links(base hashing.Hash) []*action.CreateLink {
	ops := s.Ops(base)
	removed := make(map[hashing.Hash]bool)
	for _, op := range ops {
		if rm, ok := op.(*dhtop.RegisterRemoveLink); ok {
			removed[rm.DeleteLink.LinkAddAddress] = true
		}
	}
	var out []*action.CreateLink
	for _, op := range ops {
		if add, ok := op.(*dhtop.RegisterAddLink); ok && !removed[add.ActionHash()] {
			out = append(out, add.CreateLink)
		}
	}
	return out
}
