package sqlitecas_test

import (
	"errors"
	"path/filepath"
	"testing"

	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/casregistry"
	"xdao.co/agentchain/storage/sqlitecas"
	"xdao.co/agentchain/storage/testkit"
)

func open(t *testing.T) *sqlitecas.CAS {
	t.Helper()
	cas, err := sqlitecas.Open(filepath.Join(t.TempDir(), "blocks.db"), sqlitecas.Options{PoolSize: 2})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = cas.Close() })
	return cas
}

func TestConformance(t *testing.T) {
	testkit.RunCASConformance(t, func(t *testing.T) storage.CAS { return open(t) })
}

func TestTxnAtomicOnConflict(t *testing.T) {
	cas := open(t)
	ctx := t.Context()
	if _, err := cas.Put(testkit.Block(t, hashing.TypeAction, []byte("a"), []byte("sig-1"))); err != nil {
		t.Fatalf("Put: %v", err)
	}

	fresh := testkit.Block(t, hashing.TypeEntry, []byte("fresh"), nil)
	freshID, err := cidutil.BlockCID(fresh)
	if err != nil {
		t.Fatalf("BlockCID: %v", err)
	}
	err = storage.WithTxn(ctx, cas, func(txn storage.Txn) error {
		if _, err := txn.Put(fresh); err != nil {
			return err
		}
		_, err := txn.Put(testkit.Block(t, hashing.TypeAction, []byte("a"), []byte("sig-2")))
		return err
	})
	if !errors.Is(err, storage.ErrImmutable) {
		t.Fatalf("WithTxn: got %v want ErrImmutable", err)
	}
	if cas.Has(freshID) {
		t.Fatalf("block from failed transaction is visible")
	}
}

func TestTxnClosed(t *testing.T) {
	cas := open(t)
	txn, err := cas.Begin(t.Context())
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, err := txn.Put(testkit.Block(t, hashing.TypeEntry, []byte("late"), nil)); !errors.Is(err, storage.ErrClosed) {
		t.Fatalf("Put after Commit: got %v want ErrClosed", err)
	}
	if err := txn.Rollback(); err != nil {
		t.Fatalf("Rollback after Commit should be a no-op: %v", err)
	}
}

func TestRegistryOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg.db")
	cas, closeFn, err := casregistry.OpenWithConfig("sqlite", casregistry.UsageDaemon, map[string]string{"sqlite-path": path})
	if err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	defer closeFn()
	if _, ok := cas.(storage.Transactional); !ok {
		t.Fatalf("sqlite backend should be transactional, got %T", cas)
	}
}
