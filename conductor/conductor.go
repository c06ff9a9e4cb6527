// Package conductor hosts the source chains of the agents on one node and
// routes events between them and the node's DHT shard.
package conductor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/dht"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/storage"
)

var (
	ErrInstalled    = errors.New("conductor: agent already installed")
	ErrNotInstalled = errors.New("conductor: agent not installed")
)

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

// Conductor is a registry of chains keyed by agent. Lookups take a shared
// lock on the registry; Append holds an exclusive lock on one chain for the
// duration of the callback.
type Conductor struct {
	cas    storage.CAS
	ks     *keys.Keystore
	shard  *dht.Shard
	logger *slog.Logger
	now    func() time.Time

	mu    sync.RWMutex
	cells map[hashing.Hash]*cell
}

type cell struct {
	mu    sync.Mutex
	chain *chain.SourceChain
}

// New returns a conductor storing chains in cas and publishing to shard.
func New(cas storage.CAS, ks *keys.Keystore, shard *dht.Shard, opts Options) *Conductor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Conductor{
		cas:    cas,
		ks:     ks,
		shard:  shard,
		logger: logger,
		now:    opts.Now,
		cells:  make(map[hashing.Hash]*cell),
	}
}

func (c *Conductor) chainOptions() chain.Options {
	return chain.Options{Logger: c.logger, Publisher: c.shard, Now: c.now}
}

// Install creates agent's chain and commits its genesis records.
func (c *Conductor) Install(ctx context.Context, agent, dna hashing.Hash, membraneProof []byte) (*chain.SourceChain, error) {
	if _, ok := c.ks.Signer(agent); !ok {
		return nil, fmt.Errorf("%w: %s", keys.ErrUnknownAgent, agent)
	}
	cl := &cell{chain: chain.New(c.cas, c.ks, agent, c.chainOptions())}
	cl.mu.Lock()
	defer cl.mu.Unlock()

	c.mu.Lock()
	if _, ok := c.cells[agent]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrInstalled, agent)
	}
	c.cells[agent] = cl
	c.mu.Unlock()

	if _, err := cl.chain.Genesis(ctx, dna, membraneProof); err != nil && !errors.Is(err, chain.ErrPublish) {
		c.mu.Lock()
		delete(c.cells, agent)
		c.mu.Unlock()
		return nil, err
	}
	c.logger.InfoContext(ctx, "agent installed", "agent", agent.String(), "dna", dna.String())
	return cl.chain, nil
}

// Attach registers an existing chain, typically one returned by chain.Load.
func (c *Conductor) Attach(sc *chain.SourceChain) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.cells[sc.Author()]; ok {
		return fmt.Errorf("%w: %s", ErrInstalled, sc.Author())
	}
	c.cells[sc.Author()] = &cell{chain: sc}
	return nil
}

// Chain returns agent's chain.
func (c *Conductor) Chain(agent hashing.Hash) (*chain.SourceChain, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.cells[agent]
	if !ok {
		return nil, false
	}
	return cl.chain, true
}

// Agents returns the installed agents sorted by their string form.
func (c *Conductor) Agents() []hashing.Hash {
	c.mu.RLock()
	out := make([]hashing.Hash, 0, len(c.cells))
	for a := range c.cells {
		out = append(out, a)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Append runs fn with exclusive use of agent's chain. Several commits made in
// one fn are not interleaved with commits from other Append calls.
func (c *Conductor) Append(ctx context.Context, agent hashing.Hash, fn func(ctx context.Context, sc *chain.SourceChain) error) error {
	c.mu.RLock()
	cl, ok := c.cells[agent]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotInstalled, agent)
	}
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return fn(ctx, cl.chain)
}
