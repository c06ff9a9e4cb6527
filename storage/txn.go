package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/cidutil"
)

// Txn groups writes so they become visible together.
type Txn interface {
	Put(bytes []byte) (cid.Cid, error)
	Commit() error
	Rollback() error
}

// Transactional is a CAS that supports native transactions.
type Transactional interface {
	CAS
	Begin(ctx context.Context) (Txn, error)
}

// Begin opens a transaction on cas. Backends without native transactions get
// a staged transaction that writes sequentially on Commit; a failed commit on
// such a backend may leave a prefix of the blocks stored, which is harmless
// because blocks are immutable and unreferenced until the chain head moves.
func Begin(ctx context.Context, cas CAS) (Txn, error) {
	if t, ok := cas.(Transactional); ok {
		return t.Begin(ctx)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &stagedTxn{ctx: ctx, cas: cas}, nil
}

type stagedTxn struct {
	ctx    context.Context
	cas    CAS
	mu     sync.Mutex
	blocks [][]byte
	done   bool
}

func (t *stagedTxn) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.BlockCID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return cid.Undef, ErrClosed
	}
	t.blocks = append(t.blocks, append([]byte(nil), bytes...))
	return id, nil
}

func (t *stagedTxn) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return ErrClosed
	}
	t.done = true
	for _, b := range t.blocks {
		if err := t.ctx.Err(); err != nil {
			return err
		}
		if _, err := t.cas.Put(b); err != nil {
			return err
		}
	}
	t.blocks = nil
	return nil
}

func (t *stagedTxn) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	t.blocks = nil
	return nil
}

// WithTxn runs fn in a transaction on cas, committing on success and rolling
// back on error.
func WithTxn(ctx context.Context, cas CAS, fn func(Txn) error) (err error) {
	txn, err := Begin(ctx, cas)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, txn.Rollback())
		}
	}()
	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}
