package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/cidutil"
)

// Buffer stages writes in memory in front of a CAS. Reads see staged writes
// first. Nothing reaches the CAS until Flush writes the staged blocks into a
// transaction.
type Buffer struct {
	cas    CAS
	logger *slog.Logger

	mu      sync.Mutex
	pending map[cid.Cid][]byte
	order   []cid.Cid
}

// NewBuffer returns an empty buffer over cas. A nil logger discards output.
func NewBuffer(cas CAS, logger *slog.Logger) *Buffer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Buffer{cas: cas, logger: logger, pending: make(map[cid.Cid][]byte)}
}

// Put stages bytes and returns their CID. Staging bytes that conflict with a
// staged or stored block fails with ErrImmutable.
func (b *Buffer) Put(data []byte) (cid.Cid, error) {
	id, err := cidutil.BlockCID(data)
	if err != nil {
		return cid.Undef, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if existing, ok := b.pending[id]; ok {
		if string(existing) != string(data) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	b.pending[id] = append([]byte(nil), data...)
	b.order = append(b.order, id)
	return id, nil
}

// Get returns staged bytes for id, falling back to the CAS.
func (b *Buffer) Get(ctx context.Context, id cid.Cid) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	staged, ok := b.pending[id]
	b.mu.Unlock()
	if ok {
		return append([]byte(nil), staged...), nil
	}
	return b.cas.Get(id)
}

func (b *Buffer) Has(id cid.Cid) bool {
	b.mu.Lock()
	_, ok := b.pending[id]
	b.mu.Unlock()
	return ok || b.cas.Has(id)
}

// Pending returns the number of staged blocks.
func (b *Buffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Flush writes staged blocks into txn in staging order. The caller commits
// txn. Staged blocks are dropped only when every write succeeded.
func (b *Buffer) Flush(ctx context.Context, txn Txn) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writeLocked(ctx, txn); err != nil {
		return err
	}
	b.resetLocked()
	return nil
}

// Commit flushes into a new transaction on the underlying CAS and commits it.
// On failure the staged blocks are kept so the caller may Discard or retry.
func (b *Buffer) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.order)
	if err := WithTxn(ctx, b.cas, func(txn Txn) error { return b.writeLocked(ctx, txn) }); err != nil {
		b.logger.Warn("buffer commit failed", "blocks", n, "error", err)
		return err
	}
	b.resetLocked()
	b.logger.Debug("buffer committed", "blocks", n)
	return nil
}

func (b *Buffer) writeLocked(ctx context.Context, txn Txn) error {
	for _, id := range b.order {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := txn.Put(b.pending[id]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Buffer) resetLocked() {
	b.pending = make(map[cid.Cid][]byte)
	b.order = nil
}

// Discard drops all staged blocks.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}
