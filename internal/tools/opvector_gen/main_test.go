package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/facts"
)

func TestGenerateDeterministic(t *testing.T) {
	a, err := generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("output count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].name != b[i].name || !bytes.Equal(a[i].data, b[i].data) {
			t.Fatalf("output %s differs between runs", a[i].name)
		}
	}
}

func TestVectorsCoverEveryOpType(t *testing.T) {
	outs, err := generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	var vectors []recordVector
	var batch []byte
	for _, o := range outs {
		switch o.name {
		case "vectors.json":
			if err := json.Unmarshal(o.data, &vectors); err != nil {
				t.Fatalf("vectors.json: %v", err)
			}
		case "ops.cbor":
			batch = o.data
		}
	}

	seen := map[string]bool{}
	total := 0
	for _, v := range vectors {
		for _, op := range v.Ops {
			seen[op.Type] = true
			total++
		}
	}
	for _, typ := range []dhtop.Type{
		dhtop.TypeStoreElement, dhtop.TypeStoreEntry, dhtop.TypeRegisterAgentActivity,
		dhtop.TypeRegisterUpdatedContent, dhtop.TypeRegisterUpdatedElement,
		dhtop.TypeRegisterDeletedBy, dhtop.TypeRegisterDeletedEntryAction,
		dhtop.TypeRegisterAddLink, dhtop.TypeRegisterRemoveLink,
	} {
		if !seen[typ.String()] {
			t.Errorf("no vector for %s", typ)
		}
	}

	ops, err := dhtop.DecodeBatch(batch)
	if err != nil {
		t.Fatalf("DecodeBatch: %v", err)
	}
	if len(ops) != total {
		t.Fatalf("ops.cbor has %d ops, vectors list %d", len(ops), total)
	}
	if err := facts.CheckOpStream(ops); err != nil {
		t.Fatalf("CheckOpStream: %v", err)
	}
}
