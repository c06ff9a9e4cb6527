package dht_test

import (
	"errors"
	"testing"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/dht"
	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/internal/fixture"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/record"
	"xdao.co/agentchain/storage"
)

func derive(t *testing.T, rs ...record.Record) []dhtop.Op {
	t.Helper()
	var ops []dhtop.Op
	for _, r := range rs {
		d, err := dhtop.Derive(r)
		if err != nil {
			t.Fatalf("Derive: %v", err)
		}
		ops = append(ops, d...)
	}
	return ops
}

func strictShard() *dht.Shard {
	return dht.NewShard(storage.NewMemCAS(), nil, dht.Options{Mode: compliance.Strict})
}

func TestPublishIndexesByBasis(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	pub := c.Create("hello", entry.Public)
	shard := strictShard()

	if err := shard.Publish(t.Context(), derive(t, c.Records...)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	n := shard.Len()
	if err := shard.Publish(t.Context(), derive(t, c.Records...)); err != nil {
		t.Fatalf("republish: %v", err)
	}
	if shard.Len() != n {
		t.Fatalf("republish added ops: %d -> %d", n, shard.Len())
	}

	eh, _, _ := pub.Action().EntryRef()
	entryOps := shard.Ops(eh)
	if len(entryOps) != 1 || entryOps[0].Type() != dhtop.TypeStoreEntry {
		t.Fatalf("ops at entry basis = %v", entryOps)
	}

	got, err := shard.GetRecord(t.Context(), pub.ActionAddress())
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if !got.Equal(pub) {
		t.Fatalf("GetRecord returned a different record")
	}

	act := shard.AgentActivity(c.Signer.AgentID())
	if !act.Complete || act.Highest != 3 || len(act.Actions) != 4 {
		t.Fatalf("AgentActivity = complete %v highest %d n %d", act.Complete, act.Highest, len(act.Actions))
	}
}

func TestActivityGap(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	c.Create("a", entry.Public)
	shard := strictShard()
	if err := shard.Publish(t.Context(), derive(t, c.Records[0], c.Records[1], c.Records[3])); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if act := shard.AgentActivity(c.Signer.AgentID()); act.Complete || act.Highest != 3 {
		t.Fatalf("activity with a gap = %+v", act)
	}
}

func TestPrivateEntryHidden(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	priv := c.Create("secret", entry.Private)
	shard := strictShard()
	if err := shard.Publish(t.Context(), derive(t, priv)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got, err := shard.GetRecord(t.Context(), priv.ActionAddress())
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if got.Entry().Status() != record.Hidden {
		t.Fatalf("private entry status in DHT = %s", got.Entry().Status())
	}
}

func TestLinks(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	base := c.Create("base", entry.Public).ActionAddress()
	l1 := c.Link(base, base, "one")
	c.Link(base, base, "two")
	c.Unlink(l1)
	shard := strictShard()
	if err := shard.Publish(t.Context(), derive(t, c.Records...)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	links := shard.Links(base)
	if len(links) != 1 || string(links[0].Tag) != "two" {
		t.Fatalf("live links = %v", links)
	}
}

func TestPublishRejectsBadBatch(t *testing.T) {
	c := fixture.Genesis(fixture.Signer(1))
	good := derive(t, c.Records...)

	// Signed by another agent but claiming c's author.
	forger := fixture.Signer(2)
	forged := &action.InitZomesComplete{Common: c.Next()}
	bad := derive(t, record.New(fixture.Sign(forged, forger), nil))

	shard := strictShard()
	err := shard.Publish(t.Context(), append(append([]dhtop.Op(nil), good...), bad...))
	if !errors.Is(err, dht.ErrInvalidOp) || !errors.Is(err, keys.ErrBadSignature) {
		t.Fatalf("forged op: %v", err)
	}
	if shard.Len() != 0 {
		t.Fatalf("rejected batch integrated %d ops", shard.Len())
	}

	if err := dht.NewShard(storage.NewMemCAS(), nil, dht.Options{}).Publish(t.Context(), bad); !errors.Is(err, keys.ErrBadSignature) {
		t.Fatalf("default shard accepted forged op: %v", err)
	}

	lenient := dht.NewShard(storage.NewMemCAS(), nil, dht.Options{Mode: compliance.Permissive})
	if err := lenient.Publish(t.Context(), bad); err != nil {
		t.Fatalf("permissive shard: %v", err)
	}
}

func TestShardAsChainPublisher(t *testing.T) {
	s := fixture.Signer(3)
	shard := strictShard()
	src := chain.New(storage.NewMemCAS(), keys.NewKeystore(s), s.AgentID(), chain.Options{Publisher: shard})
	if _, err := src.Genesis(t.Context(), fixture.DnaHash(), nil); err != nil {
		t.Fatalf("Genesis: %v", err)
	}
	if act := shard.AgentActivity(s.AgentID()); !act.Complete || len(act.Actions) != 3 {
		t.Fatalf("activity after genesis = %+v", act)
	}
	if _, err := shard.GetRecord(t.Context(), fixture.DnaHash()); !errors.Is(err, dht.ErrNotHeld) {
		t.Fatalf("GetRecord of unknown hash: %v", err)
	}
}
