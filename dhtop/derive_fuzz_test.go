package dhtop_test

import (
	"testing"

	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/internal/fixture"
	"xdao.co/agentchain/record"
)

// FuzzDeriveNoLeak builds records of every entry status from arbitrary
// payloads and checks that derivation is stable and never attaches content
// that is hidden, withheld or private.
func FuzzDeriveNoLeak(f *testing.F) {
	f.Add([]byte("hello"), true, true)
	f.Add([]byte(""), false, true)
	f.Add([]byte{0xff, 0x00}, false, false)
	f.Fuzz(func(t *testing.T, payload []byte, public, attach bool) {
		c := fixture.NewChain(fixture.Signer(9))
		v := entry.Private
		if public {
			v = entry.Public
		}
		full := c.Create(string(payload), v)
		r := full
		if !attach {
			r = record.New(full.SignedAction(), nil)
		}
		for _, rr := range []record.Record{r, r.Privatized()} {
			a, err := dhtop.Derive(rr)
			if err != nil {
				t.Fatalf("Derive: %v", err)
			}
			b, _ := dhtop.Derive(rr)
			if len(a) != len(b) {
				t.Fatalf("derivation not deterministic")
			}
			for i := range a {
				ha, _ := dhtop.Hash(a[i])
				hb, _ := dhtop.Hash(b[i])
				if ha != hb {
					t.Fatalf("derivation not deterministic at %d", i)
				}
				_, has := a[i].Entry()
				if has && (!public || rr.Entry().Status() != record.Present) {
					t.Fatalf("%s attached an entry it must not carry", a[i].Type())
				}
			}
		}
	})
}
