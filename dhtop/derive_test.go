package dhtop_test

import (
	"bytes"
	"reflect"
	"testing"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/internal/fixture"
	"xdao.co/agentchain/record"
)

func types(ops []dhtop.Op) []dhtop.Type {
	out := make([]dhtop.Type, len(ops))
	for i, op := range ops {
		out[i] = op.Type()
	}
	return out
}

func mustDerive(t *testing.T, r record.Record) []dhtop.Op {
	t.Helper()
	ops, err := dhtop.Derive(r)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	return ops
}

func TestCreatePublicEntry(t *testing.T) {
	s := fixture.Signer(1)
	e := entry.App([]byte("hello"))
	a := &action.Create{
		Common:    action.Common{Author: s.AgentID(), Timestamp: fixture.Start, ActionSeq: 0},
		EntryType: entry.AppType(0, 0, entry.Public),
		EntryHash: fixture.EntryHash(e),
	}
	r := record.New(fixture.Sign(a, s), e)
	ops := mustDerive(t, r)

	want := []dhtop.Type{dhtop.TypeStoreElement, dhtop.TypeStoreEntry, dhtop.TypeRegisterAgentActivity}
	if got := types(ops); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	got, ok := ops[1].Entry()
	if !ok {
		t.Fatalf("StoreEntry should carry the entry")
	}
	if b, _ := got.AppBytes(); !bytes.Equal(b, []byte("hello")) {
		t.Fatalf("StoreEntry bytes = %q", b)
	}
	if ops[2].Basis() != s.AgentID() {
		t.Fatalf("activity basis should be the author")
	}
	if ops[0].Basis() != r.ActionAddress() {
		t.Fatalf("StoreElement basis should be the action hash")
	}
	if ops[1].Basis() != a.EntryHash {
		t.Fatalf("StoreEntry basis should be the entry hash")
	}
}

func TestCreatePrivateEntryWithheld(t *testing.T) {
	s := fixture.Signer(1)
	e := entry.App([]byte("secret"))
	a := &action.Create{
		Common:    action.Common{Author: s.AgentID(), Timestamp: fixture.Start},
		EntryType: entry.AppType(0, 0, entry.Private),
		EntryHash: fixture.EntryHash(e),
	}
	r := record.New(fixture.Sign(a, s), nil)
	if r.Entry().Status() != record.Hidden {
		t.Fatalf("expected Hidden, got %s", r.Entry().Status())
	}
	want := []dhtop.Type{dhtop.TypeStoreElement, dhtop.TypeRegisterAgentActivity}
	if got := types(mustDerive(t, r)); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestPrivatePresentEntryNeverLeaks(t *testing.T) {
	c := fixture.NewChain(fixture.Signer(1))
	r := c.Create("secret", entry.Private)
	if r.Entry().Status() != record.Present {
		t.Fatalf("fixture should attach the entry")
	}
	for _, op := range mustDerive(t, r) {
		if op.Type() == dhtop.TypeStoreEntry {
			t.Fatalf("private entry must not produce StoreEntry")
		}
		if _, ok := op.Entry(); ok {
			t.Fatalf("%s leaked a private entry", op.Type())
		}
	}
}

func TestNotStoredEntryOmitted(t *testing.T) {
	c := fixture.NewChain(fixture.Signer(1))
	r := record.New(c.Create("hello", entry.Public).SignedAction(), nil)
	if r.Entry().Status() != record.NotStored {
		t.Fatalf("expected NotStored")
	}
	for _, op := range mustDerive(t, r) {
		if _, ok := op.Entry(); ok {
			t.Fatalf("%s attached an entry that was not stored", op.Type())
		}
	}
}

func TestDerivationTable(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	orig := c.Create("v1", entry.Public)
	upd := c.Update(orig, "v2")
	del := c.Delete(orig)
	link := c.Link(orig.ActionAddress(), upd.ActionAddress(), "t")
	unlink := c.Unlink(link)
	c.Add(&action.InitZomesComplete{Common: c.Next()}, nil)
	c.Add(&action.CloseChain{Common: c.Next(), NewDnaHash: hashing.Sum(hashing.TypeDna, []byte("next"))}, nil)

	bookkeeping := []dhtop.Type{dhtop.TypeStoreElement, dhtop.TypeRegisterAgentActivity}
	want := map[action.Kind][]dhtop.Type{
		action.KindDna:                bookkeeping,
		action.KindAgentValidationPkg: bookkeeping,
		action.KindInitZomesComplete:  bookkeeping,
		action.KindCloseChain:         bookkeeping,
		action.KindCreate:             {dhtop.TypeStoreElement, dhtop.TypeStoreEntry, dhtop.TypeRegisterAgentActivity},
		action.KindUpdate: {dhtop.TypeStoreElement, dhtop.TypeRegisterUpdatedContent,
			dhtop.TypeRegisterUpdatedElement, dhtop.TypeRegisterAgentActivity},
		action.KindDelete:     {dhtop.TypeRegisterDeletedBy, dhtop.TypeRegisterDeletedEntryAction, dhtop.TypeRegisterAgentActivity},
		action.KindCreateLink: {dhtop.TypeRegisterAddLink, dhtop.TypeRegisterAgentActivity},
		action.KindDeleteLink: {dhtop.TypeRegisterRemoveLink, dhtop.TypeRegisterAgentActivity},
	}
	for _, r := range c.Records {
		ops := mustDerive(t, r)
		k := r.Action().Kind()
		if got := types(ops); !reflect.DeepEqual(got, want[k]) {
			t.Fatalf("%s: got %v want %v", k, got, want[k])
		}
		if ops[0].Type() == dhtop.TypeRegisterAgentActivity || ops[len(ops)-1].Type() != dhtop.TypeRegisterAgentActivity {
			t.Fatalf("%s: activity op must be last and never first", k)
		}
		for _, op := range ops {
			if op.ActionHash() != r.ActionAddress() || !op.Signature().Equal(r.Signature()) {
				t.Fatalf("%s/%s: op does not carry the record's hash and signature", k, op.Type())
			}
		}
	}

	updOps := mustDerive(t, upd)
	u := upd.Action().(*action.Update)
	if updOps[1].Basis() != u.OriginalEntryAddress || updOps[2].Basis() != u.OriginalActionAddress {
		t.Fatalf("update bases wrong")
	}
	if e, ok := updOps[1].Entry(); !ok || !e.Equal(entry.App([]byte("v2"))) {
		t.Fatalf("RegisterUpdatedContent should carry the new public entry")
	}
	delOps := mustDerive(t, del)
	d := del.Action().(*action.Delete)
	if delOps[0].Basis() != d.DeletesAddress || delOps[1].Basis() != d.DeletesEntryAddress {
		t.Fatalf("delete bases wrong")
	}
	if mustDerive(t, link)[0].Basis() != orig.ActionAddress() {
		t.Fatalf("link basis should be the base address")
	}
	if mustDerive(t, unlink)[0].Basis() != orig.ActionAddress() {
		t.Fatalf("unlink basis should be the base address")
	}
}

func TestDeriveDeterministic(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(4))
	r := c.Update(c.Create("a", entry.Public), "b")
	a := mustDerive(t, r)
	b := mustDerive(t, r)
	if len(a) != len(b) {
		t.Fatalf("length differs")
	}
	for i := range a {
		ea, err := dhtop.Encode(a[i])
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		eb, _ := dhtop.Encode(b[i])
		if !bytes.Equal(ea, eb) {
			t.Fatalf("op %d differs between derivations", i)
		}
	}
	if _, err := dhtop.UniqueOps(a); err != nil {
		t.Fatalf("UniqueOps: %v", err)
	}
}

func TestDeriveEmptyRecord(t *testing.T) {
	if _, err := dhtop.Derive(record.Record{}); err != dhtop.ErrEmptyRecord {
		t.Fatalf("expected ErrEmptyRecord, got %v", err)
	}
}

func TestOpsDoNotAliasRecord(t *testing.T) {
	c := fixture.NewChain(fixture.Signer(1))
	r := c.Link(hashing.Sum(hashing.TypeEntry, []byte("b")), hashing.Sum(hashing.TypeEntry, []byte("t")), "tag")
	ops := mustDerive(t, r)
	*ops[0].SeqMut() = 99
	if r.Action().Seq() == 99 {
		t.Fatalf("mutating an op must not reach the record")
	}
	if ops[1].SeqMut() == nil || *ops[1].SeqMut() == 99 {
		t.Fatalf("ops of one record must not share action values")
	}
}

func TestSeqMutProjection(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	c.Update(c.Create("x", entry.Public), "y")
	for _, r := range c.Records {
		for _, op := range mustDerive(t, r) {
			p := op.SeqMut()
			if r.Action().Kind() == action.KindDna {
				if p != nil {
					t.Fatalf("Dna ops have no sequence field")
				}
				continue
			}
			if p == nil || *p != r.Action().Seq() {
				t.Fatalf("%s: projection does not reach the action sequence", op.Type())
			}
		}
	}
}
