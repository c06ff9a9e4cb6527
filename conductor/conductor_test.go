package conductor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/conductor"
	"xdao.co/agentchain/dht"
	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/internal/fixture"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/record"
	"xdao.co/agentchain/storage"
)

func newConductor(t *testing.T, signers ...keys.Signer) (*conductor.Conductor, *dht.Shard) {
	t.Helper()
	shard := dht.NewShard(storage.NewMemCAS(), nil, dht.Options{Mode: compliance.Strict})
	return conductor.New(storage.NewMemCAS(), keys.NewKeystore(signers...), shard, conductor.Options{}), shard
}

func TestInstall(t *testing.T) {
	alice, bob := fixture.Signer(1), fixture.Signer(2)
	c, shard := newConductor(t, alice, bob)
	ctx := t.Context()

	for _, s := range []keys.Signer{alice, bob} {
		if _, err := c.Install(ctx, s.AgentID(), fixture.DnaHash(), nil); err != nil {
			t.Fatalf("Install: %v", err)
		}
	}
	if _, err := c.Install(ctx, alice.AgentID(), fixture.DnaHash(), nil); !errors.Is(err, conductor.ErrInstalled) {
		t.Fatalf("second Install: %v", err)
	}
	if _, err := c.Install(ctx, fixture.Signer(3).AgentID(), fixture.DnaHash(), nil); !errors.Is(err, keys.ErrUnknownAgent) {
		t.Fatalf("Install without key: %v", err)
	}
	if got := c.Agents(); len(got) != 2 {
		t.Fatalf("Agents = %v", got)
	}
	if act := shard.AgentActivity(bob.AgentID()); !act.Complete || act.Highest != 2 {
		t.Fatalf("bob activity = %+v", act)
	}
}

func TestAppendSerializesPerChain(t *testing.T) {
	alice := fixture.Signer(1)
	c, _ := newConductor(t, alice)
	if _, err := c.Install(t.Context(), alice.AgentID(), fixture.DnaHash(), nil); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := c.Append(t.Context(), alice.AgentID(), func(ctx context.Context, sc *chain.SourceChain) error {
				r, err := sc.Create(ctx, entry.AppType(0, 0, entry.Public), entry.App([]byte{byte(i)}))
				if err != nil {
					return err
				}
				head, _ := sc.Head()
				if head.Hash != r.ActionAddress() {
					return errors.New("another append ran inside the callback")
				}
				_, err = sc.Delete(ctx, r.ActionAddress())
				return err
			})
			if err != nil {
				t.Errorf("Append: %v", err)
			}
		}()
	}
	wg.Wait()

	sc, _ := c.Chain(alice.AgentID())
	if sc.Len() != 3+8 {
		t.Fatalf("chain length = %d", sc.Len())
	}
	if err := c.Append(t.Context(), fixture.Signer(9).AgentID(), nil); !errors.Is(err, conductor.ErrNotInstalled) {
		t.Fatalf("Append to unknown agent: %v", err)
	}
}

func TestDispatch(t *testing.T) {
	alice := fixture.Signer(1)
	c, _ := newConductor(t, alice)
	ctx := t.Context()
	sc, err := c.Install(ctx, alice.AgentID(), fixture.DnaHash(), nil)
	if err != nil {
		t.Fatal(err)
	}
	priv, err := sc.Create(ctx, entry.AppType(0, 0, entry.Private), entry.App([]byte("mine")))
	if err != nil {
		t.Fatal(err)
	}

	ev := conductor.NewEvent(conductor.GetRecord)
	ev.Hash = priv.ActionAddress()
	res, err := c.Dispatch(ctx, ev)
	if err != nil {
		t.Fatalf("GetRecord: %v", err)
	}
	if res.ID != ev.ID || res.Record == nil || res.Record.Entry().Status() != record.Hidden {
		t.Fatalf("GetRecord result = %+v", res)
	}
	if b, ok := res.Record.Entry().AppBytes(); ok {
		t.Fatalf("GetRecord returned private entry bytes %q", b)
	}
	if !res.Record.SignedAction().Equal(priv.SignedAction()) {
		t.Fatalf("GetRecord changed the signed action")
	}
	own, err := sc.Get(ctx, priv.ActionAddress())
	if err != nil || own.Entry().Status() != record.Present {
		t.Fatalf("author read = %v, %v", own.Entry().Status(), err)
	}

	pub, err := sc.Create(ctx, entry.AppType(0, 0, entry.Public), entry.App([]byte("shared")))
	if err != nil {
		t.Fatal(err)
	}
	res, err = c.Dispatch(ctx, conductor.Event{Kind: conductor.GetRecord, Hash: pub.ActionAddress()})
	if err != nil {
		t.Fatal(err)
	}
	if b, ok := res.Record.Entry().AppBytes(); !ok || string(b) != "shared" {
		t.Fatalf("public GetRecord bytes = %q, %v", b, ok)
	}

	// A remote agent's ops arrive by event and are readable afterwards.
	remote := fixture.Genesis(fixture.Signer(7))
	var ops []dhtop.Op
	for _, r := range remote.Records {
		d, err := dhtop.Derive(r)
		if err != nil {
			t.Fatal(err)
		}
		ops = append(ops, d...)
	}
	res, err = c.Dispatch(ctx, conductor.Event{Kind: conductor.PublishOps, Ops: ops})
	if err != nil {
		t.Fatalf("PublishOps: %v", err)
	}
	if res.ID == uuid.Nil {
		t.Fatalf("Dispatch did not assign an event ID")
	}
	res, err = c.Dispatch(ctx, conductor.Event{Kind: conductor.GetAgentActivity, Hash: remote.Signer.AgentID()})
	if err != nil || !res.Activity.Complete || len(res.Activity.Actions) != 3 {
		t.Fatalf("GetAgentActivity = %+v, %v", res.Activity, err)
	}
	res, err = c.Dispatch(ctx, conductor.Event{Kind: conductor.GetRecord, Hash: remote.Head().ActionAddress()})
	if err != nil || !res.Record.Equal(remote.Head()) {
		t.Fatalf("remote GetRecord: %v", err)
	}

	if _, err := c.Dispatch(ctx, conductor.Event{Kind: "reboot"}); !errors.Is(err, conductor.ErrUnknownEvent) {
		t.Fatalf("unknown event: %v", err)
	}
}

func TestAttachLoadedChain(t *testing.T) {
	alice := fixture.Signer(1)
	cas := storage.NewMemCAS()
	ks := keys.NewKeystore(alice)
	src := chain.New(cas, ks, alice.AgentID(), chain.Options{})
	if _, err := src.Genesis(t.Context(), fixture.DnaHash(), nil); err != nil {
		t.Fatal(err)
	}
	head, _ := src.Head()
	loaded, err := chain.Load(t.Context(), cas, ks, head.Hash, compliance.Strict, chain.Options{})
	if err != nil {
		t.Fatal(err)
	}

	c, _ := newConductor(t, alice)
	if err := c.Attach(loaded); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if err := c.Attach(loaded); !errors.Is(err, conductor.ErrInstalled) {
		t.Fatalf("second Attach: %v", err)
	}
	if got, ok := c.Chain(alice.AgentID()); !ok || got != loaded {
		t.Fatalf("Chain did not return the attached chain")
	}
}
