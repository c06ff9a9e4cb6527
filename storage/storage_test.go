package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/testkit"
)

func TestMemCASConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS { return storage.NewMemCAS() })
}

func TestMultiCASConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.MultiCAS{Adapters: []storage.CAS{storage.NewMemCAS(), storage.NewMemCAS()}}
	})
}

func TestReplicatingCASConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS {
		return storage.ReplicatingCAS{Backends: []storage.NamedCAS{
			{Name: "a", CAS: storage.NewMemCAS()},
			{Name: "b", CAS: storage.NewMemCAS()},
		}}
	})
}

func TestMultiCASFallback(t *testing.T) {
	first, second := storage.NewMemCAS(), storage.NewMemCAS()
	blk := testkit.Block(t, hashing.TypeEntry, []byte("only in second"), nil)
	id, err := second.Put(blk)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	m := storage.MultiCAS{Adapters: []storage.CAS{first, second}}
	if _, err := m.Get(id); err != nil {
		t.Fatalf("Get should fall back: %v", err)
	}
	if _, err := m.Put(testkit.Block(t, hashing.TypeEntry, []byte("new"), nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if first.Len() != 1 || second.Len() != 1 {
		t.Fatalf("MultiCAS should write only to the first adapter")
	}
}

func TestReplicatingPutAll(t *testing.T) {
	r := storage.ReplicatingCAS{Backends: []storage.NamedCAS{
		{Name: "a", CAS: storage.NewMemCAS()},
		{Name: "b", CAS: storage.NewMemCAS()},
	}}
	id, per, err := r.PutAll(testkit.Block(t, hashing.TypeEntry, []byte("x"), nil))
	if err != nil {
		t.Fatalf("PutAll: %v", err)
	}
	if per["a"] != id || per["b"] != id {
		t.Fatalf("unexpected per-backend CIDs: %v", per)
	}
}

type failingCAS struct{ storage.CAS }

func (failingCAS) Put([]byte) (cid.Cid, error) { return cid.Undef, errors.New("disk full") }

func TestBufferReadThroughAndCommit(t *testing.T) {
	ctx := context.Background()
	cas := storage.NewMemCAS()
	buf := storage.NewBuffer(cas, nil)

	h := hashing.Sum(hashing.TypeEntry, []byte("staged"))
	id, err := storage.PutBlock(buf, cidutil.Block{Type: hashing.TypeEntry, Content: []byte("staged")})
	if err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	if id != h.CID() {
		t.Fatalf("unexpected CID")
	}
	if cas.Has(id) {
		t.Fatalf("staged block must not reach the CAS before commit")
	}
	if blk, err := buf.GetBlock(ctx, h); err != nil || string(blk.Content) != "staged" {
		t.Fatalf("GetBlock through buffer: %v", err)
	}
	if buf.Pending() != 1 {
		t.Fatalf("Pending = %d", buf.Pending())
	}

	if err := buf.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if buf.Pending() != 0 || !cas.Has(id) {
		t.Fatalf("commit should move staged blocks to the CAS")
	}
	if _, err := storage.GetBlock(cas, h); err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
}

func TestBufferConflict(t *testing.T) {
	buf := storage.NewBuffer(storage.NewMemCAS(), nil)
	if _, err := buf.Put(testkit.Block(t, hashing.TypeAction, []byte("a"), []byte("1"))); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, err := buf.Put(testkit.Block(t, hashing.TypeAction, []byte("a"), []byte("2")))
	if !errors.Is(err, storage.ErrImmutable) {
		t.Fatalf("expected ErrImmutable, got %v", err)
	}
}

func TestBufferCommitFailureKeepsStaged(t *testing.T) {
	buf := storage.NewBuffer(failingCAS{storage.NewMemCAS()}, nil)
	if _, err := buf.Put(testkit.Block(t, hashing.TypeEntry, []byte("a"), nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := buf.Commit(context.Background()); err == nil {
		t.Fatalf("expected commit failure")
	}
	if buf.Pending() != 1 {
		t.Fatalf("failed commit must keep staged blocks")
	}
	buf.Discard()
	if buf.Pending() != 0 {
		t.Fatalf("Discard should drop staged blocks")
	}
}

func TestBufferFlushHonoursContext(t *testing.T) {
	cas := storage.NewMemCAS()
	buf := storage.NewBuffer(cas, nil)
	if _, err := buf.Put(testkit.Block(t, hashing.TypeEntry, []byte("a"), nil)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	txn, err := storage.Begin(context.Background(), cas)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := buf.Flush(ctx, txn); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if buf.Pending() != 1 {
		t.Fatalf("cancelled flush must keep staged blocks")
	}
}

func TestGetBlockDetectsMismatch(t *testing.T) {
	cas := storage.NewMemCAS()
	h := hashing.Sum(hashing.TypeAction, []byte("x"))
	if _, err := storage.PutBlock(cas, cidutil.Block{Type: hashing.TypeEntry, Content: []byte("x")}); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	// Same digest and codec, different hash type.
	if _, err := storage.GetBlock(cas, h); !errors.Is(err, storage.ErrCIDMismatch) {
		t.Fatalf("expected ErrCIDMismatch, got %v", err)
	}
}
