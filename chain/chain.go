// Package chain maintains an agent's source chain.
//
// Every append checks the new action against the current head before it is
// hashed, signs it with the author's key from the keystore, stores the
// record's blocks in one transaction, advances the head and publishes the
// derived DHT operations. A failed check leaves the chain unchanged.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/facts"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/integrity"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/record"
	"xdao.co/agentchain/storage"
)

var (
	ErrEmpty       = errors.New("chain: no genesis")
	ErrNotEmpty    = errors.New("chain: genesis already committed")
	ErrNotInChain  = errors.New("chain: action not in chain")
	ErrWrongAction = errors.New("chain: action has the wrong kind")
	ErrPublish     = errors.New("chain: publish failed")
)

// Publisher receives the operations derived from each committed record.
type Publisher interface {
	Publish(ctx context.Context, ops []dhtop.Op) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, ops []dhtop.Op) error

func (f PublisherFunc) Publish(ctx context.Context, ops []dhtop.Op) error { return f(ctx, ops) }

type Options struct {
	Logger *slog.Logger
	// Publisher is optional; without one ops are derived but not sent.
	Publisher Publisher
	// Now defaults to time.Now.
	Now func() time.Time
}

// SourceChain is one agent's chain. Safe for concurrent use; appends are
// serialized and their ops reach the publisher in sequence order.
type SourceChain struct {
	author hashing.Hash
	ks     *keys.Keystore
	buf    *storage.Buffer
	pub    Publisher
	logger *slog.Logger
	now    func() time.Time

	// pubMu is taken before mu is released on append and held until the
	// batch is published.
	pubMu sync.Mutex

	mu     sync.RWMutex
	head   *facts.Head
	dna    hashing.Hash
	hashes []hashing.Hash
}

// New returns an empty chain for author. Appends need author's signer in ks.
func New(cas storage.CAS, ks *keys.Keystore, author hashing.Hash, opts Options) *SourceChain {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &SourceChain{
		author: author,
		ks:     ks,
		buf:    storage.NewBuffer(cas, logger),
		pub:    opts.Publisher,
		logger: logger.With("agent", author.String()),
		now:    now,
	}
}

func (c *SourceChain) Author() hashing.Hash { return c.author }

// DnaHash returns the DNA recorded at genesis, or the zero hash.
func (c *SourceChain) DnaHash() hashing.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dna
}

// Head returns the current head. ok is false before genesis.
func (c *SourceChain) Head() (head facts.Head, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.head == nil {
		return facts.Head{}, false
	}
	return *c.head, true
}

// Len returns the number of committed actions.
func (c *SourceChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}

// Hashes returns the action hashes in sequence order.
func (c *SourceChain) Hashes() []hashing.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]hashing.Hash(nil), c.hashes...)
}

// Append commits a fully built action. e is the entry the action references,
// or nil to commit the action alone.
//
// If publishing fails the record is still committed and returned together
// with an error wrapping ErrPublish.
func (c *SourceChain) Append(ctx context.Context, a action.Action, e *entry.Entry) (record.Record, error) {
	c.mu.Lock()
	r, ops, err := c.appendLocked(ctx, a, e)
	if err != nil {
		c.mu.Unlock()
		return record.Record{}, err
	}
	return r, c.publishAfter(ctx, r, ops)
}

// Commit builds the next action from the head's successor fields and
// appends it. build runs under the chain lock and must not call back into c.
func (c *SourceChain) Commit(ctx context.Context, build func(next action.Common) (action.Action, *entry.Entry, error)) (record.Record, error) {
	c.mu.Lock()
	next, err := c.nextLocked()
	if err != nil {
		c.mu.Unlock()
		return record.Record{}, err
	}
	a, e, err := build(next)
	if err != nil {
		c.mu.Unlock()
		return record.Record{}, err
	}
	r, ops, err := c.appendLocked(ctx, a, e)
	if err != nil {
		c.mu.Unlock()
		return record.Record{}, err
	}
	return r, c.publishAfter(ctx, r, ops)
}

func (c *SourceChain) nextLocked() (action.Common, error) {
	if c.head == nil {
		return action.Common{}, ErrEmpty
	}
	return action.Common{
		Author:     c.author,
		Timestamp:  max(action.TimestampOf(c.now()), c.head.Timestamp),
		ActionSeq:  c.head.Seq + 1,
		PrevAction: c.head.Hash,
	}, nil
}

func (c *SourceChain) appendLocked(ctx context.Context, a action.Action, e *entry.Entry) (record.Record, []dhtop.Op, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, nil, err
	}
	if a.AuthorID() != c.author {
		return record.Record{}, nil, integrity.Chain(integrity.RuleAuthor, fmt.Sprintf("author %s is not chain author %s", a.AuthorID(), c.author))
	}
	if err := facts.CheckNext(c.head, a); err != nil {
		c.logger.WarnContext(ctx, "append rejected", "kind", a.Kind().String(), "seq", a.Seq(), "rule", integrity.RuleID(err))
		return record.Record{}, nil, err
	}
	if err := checkEntry(a, e); err != nil {
		return record.Record{}, nil, err
	}
	signer, ok := c.ks.Signer(c.author)
	if !ok {
		return record.Record{}, nil, fmt.Errorf("%w: %s", keys.ErrUnknownAgent, c.author)
	}
	sah, err := action.Sign(a, signer)
	if err != nil {
		return record.Record{}, nil, fmt.Errorf("chain: sign: %w", err)
	}
	r := record.New(sah, e)
	ops, err := dhtop.Derive(r)
	if err != nil {
		return record.Record{}, nil, err
	}

	if err := putRecord(c.buf, r); err != nil {
		c.buf.Discard()
		return record.Record{}, nil, err
	}
	if err := c.buf.Commit(ctx); err != nil {
		c.buf.Discard()
		return record.Record{}, nil, fmt.Errorf("chain: persist: %w", err)
	}

	h := facts.HeadOf(sah.Hashed())
	c.head = &h
	c.hashes = append(c.hashes, h.Hash)
	if dna, ok := a.(*action.Dna); ok {
		c.dna = dna.Hash
	}
	c.logger.DebugContext(ctx, "appended", "kind", a.Kind().String(), "seq", h.Seq, "hash", h.Hash.String(), "ops", len(ops))
	return r, ops, nil
}

// publishAfter is called with mu held and releases it. pubMu is taken first,
// so batches leave in the order their records were committed.
func (c *SourceChain) publishAfter(ctx context.Context, r record.Record, ops []dhtop.Op) error {
	c.pubMu.Lock()
	c.mu.Unlock()
	defer c.pubMu.Unlock()
	return c.publish(ctx, r, ops)
}

func (c *SourceChain) publish(ctx context.Context, r record.Record, ops []dhtop.Op) error {
	if c.pub == nil {
		return nil
	}
	if err := c.pub.Publish(ctx, ops); err != nil {
		c.logger.ErrorContext(ctx, "publish failed", "hash", r.ActionAddress().String(), "error", err)
		return fmt.Errorf("%w: %w", ErrPublish, err)
	}
	return nil
}

func checkEntry(a action.Action, e *entry.Entry) error {
	if e == nil {
		return nil
	}
	want, _, ok := a.EntryRef()
	if !ok {
		return integrity.Chain(integrity.RuleEntryPresent, fmt.Sprintf("%s action references no entry", a.Kind()))
	}
	got, err := e.Hash()
	if err != nil {
		return err
	}
	if got != want {
		return integrity.Chain(integrity.RuleEntryHash, fmt.Sprintf("entry hashes to %s, action references %s", got, want))
	}
	return nil
}
