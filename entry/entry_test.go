package entry

import (
	"bytes"
	"testing"

	"xdao.co/agentchain/hashing"
)

func TestVisibility(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		want Visibility
	}{
		{"public app", AppType(0, 0, Public), Public},
		{"private app", AppType(0, 1, Private), Private},
		{"agent key", AgentKeyType(), Public},
		{"cap grant", CapGrantType(), Private},
		{"cap claim", CapClaimType(), Private},
	}
	for _, tc := range cases {
		if got := tc.typ.Visibility(); got != tc.want {
			t.Fatalf("%s: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestHashDeterministic(t *testing.T) {
	a, err := App([]byte("hello")).Hash()
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	b, _ := App([]byte("hello")).Hash()
	if a != b {
		t.Fatalf("expected equal hashes")
	}
	c, _ := App([]byte("hello!")).Hash()
	if a == c {
		t.Fatalf("expected different hashes")
	}
	if a.Type() != hashing.TypeEntry {
		t.Fatalf("unexpected hash type %s", a.Type())
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	e := App([]byte("hello"))
	b, err := e.Canonical()
	if err != nil {
		t.Fatalf("Canonical: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Equal(e) {
		t.Fatalf("round trip mismatch")
	}
}

func TestAccessors(t *testing.T) {
	if b, ok := App([]byte("x")).AppBytes(); !ok || !bytes.Equal(b, []byte("x")) {
		t.Fatalf("AppBytes failed")
	}
	agent := hashing.AgentFromKey(bytes.Repeat([]byte{3}, 32))
	ak := AgentKey(agent)
	if _, ok := ak.AppBytes(); ok {
		t.Fatalf("agent key is not app bytes")
	}
	if got, ok := ak.AgentKeyHash(); !ok || got != agent {
		t.Fatalf("AgentKeyHash failed")
	}

	g, err := NewCapGrant(CapGrant{Tag: "t", Functions: []string{"f"}, Assignees: []hashing.Hash{agent}})
	if err != nil {
		t.Fatalf("NewCapGrant: %v", err)
	}
	got, ok := g.CapGrant()
	if !ok || got.Tag != "t" || len(got.Assignees) != 1 || got.Assignees[0] != agent {
		t.Fatalf("CapGrant decode failed: %+v", got)
	}
	if _, ok := g.CapClaim(); ok {
		t.Fatalf("grant is not a claim")
	}
}
