// Package testkit holds conformance suites shared by every CAS backend.
package testkit

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/storage"
)

// NewCAS constructs a fresh, empty CAS instance for a test.
// The returned CAS MUST be isolated from other tests.
type NewCAS func(t *testing.T) storage.CAS

// Block returns encoded block bytes for content, failing the test on error.
func Block(t *testing.T, typ hashing.Type, content, sig []byte) []byte {
	t.Helper()
	b, err := cidutil.EncodeBlock(cidutil.Block{Type: typ, Content: content, Signature: sig})
	if err != nil {
		t.Fatalf("EncodeBlock failed: %v", err)
	}
	return b
}

func RunCASConformance(t *testing.T, newCAS NewCAS) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		cas := newCAS(t)
		want := Block(t, hashing.TypeAction, []byte("hello, chain storage"), []byte("sig"))

		id, err := cas.Put(want)
		if err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		wantID := hashing.Sum(hashing.TypeAction, []byte("hello, chain storage")).CID()
		if id != wantID {
			t.Fatalf("Put CID mismatch: got %s want %s", id, wantID)
		}

		got, err := cas.Get(id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get bytes mismatch")
		}
	})

	t.Run("PutIdempotent", func(t *testing.T) {
		cas := newCAS(t)
		b := Block(t, hashing.TypeEntry, []byte("same bytes"), nil)

		id1, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(1) failed: %v", err)
		}
		id2, err := cas.Put(b)
		if err != nil {
			t.Fatalf("Put(2) failed: %v", err)
		}
		if id1 != id2 {
			t.Fatalf("Put not idempotent: %s vs %s", id1, id2)
		}
	})

	t.Run("RejectConflictingSignature", func(t *testing.T) {
		cas := newCAS(t)
		if _, err := cas.Put(Block(t, hashing.TypeAction, []byte("action"), []byte("sig-1"))); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		_, err := cas.Put(Block(t, hashing.TypeAction, []byte("action"), []byte("sig-2")))
		if !errors.Is(err, storage.ErrImmutable) {
			t.Fatalf("conflicting Put: got err=%v want ErrImmutable", err)
		}
	})

	t.Run("RejectInvalidBlock", func(t *testing.T) {
		cas := newCAS(t)
		if _, err := cas.Put([]byte("not a block")); err == nil {
			t.Fatalf("Put should reject bytes that are not a block")
		}
	})

	t.Run("HasAndNotFound", func(t *testing.T) {
		cas := newCAS(t)
		b := Block(t, hashing.TypeEntry, []byte("missing"), nil)
		id, err := cidutil.BlockCID(b)
		if err != nil {
			t.Fatalf("BlockCID failed: %v", err)
		}

		if cas.Has(id) {
			t.Fatalf("Has returned true for missing CID")
		}
		_, err = cas.Get(id)
		if !storage.IsNotFound(err) {
			t.Fatalf("Get missing: got err=%v want ErrNotFound", err)
		}

		if _, err := cas.Put(b); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		if !cas.Has(id) {
			t.Fatalf("Has returned false after Put")
		}
	})

	t.Run("RejectUndefCID", func(t *testing.T) {
		cas := newCAS(t)
		var undef cid.Cid
		if cas.Has(undef) {
			t.Fatalf("Has should be false for undefined CID")
		}
		if _, err := cas.Get(undef); err == nil {
			t.Fatalf("Get should fail for undefined CID")
		}
	})

	t.Run("Transaction", func(t *testing.T) {
		cas := newCAS(t)
		ctx := t.Context()
		a := Block(t, hashing.TypeEntry, []byte("a"), nil)
		b := Block(t, hashing.TypeEntry, []byte("b"), nil)

		txn, err := storage.Begin(ctx, cas)
		if err != nil {
			t.Fatalf("Begin failed: %v", err)
		}
		idA, err := txn.Put(a)
		if err != nil {
			t.Fatalf("txn Put failed: %v", err)
		}
		if err := txn.Rollback(); err != nil {
			t.Fatalf("Rollback failed: %v", err)
		}
		if cas.Has(idA) {
			t.Fatalf("rolled back block is visible")
		}

		err = storage.WithTxn(ctx, cas, func(txn storage.Txn) error {
			for _, blk := range [][]byte{a, b} {
				if _, err := txn.Put(blk); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("WithTxn failed: %v", err)
		}
		if !cas.Has(idA) {
			t.Fatalf("committed block is missing")
		}
	})
}
