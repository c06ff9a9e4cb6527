// opvector_gen writes DHT op conformance vectors for a fixed fixture chain:
// the chain's records, the ops derived from each and their hashes.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"xdao.co/agentchain/dhtop"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/internal/fixture"
	"xdao.co/agentchain/record"
)

type opVector struct {
	Type  string `json:"type"`
	Basis string `json:"basis"`
	Hash  string `json:"hash"`
}

type recordVector struct {
	Seq    uint32     `json:"seq"`
	Kind   string     `json:"kind"`
	Action string     `json:"action"`
	Entry  string     `json:"entry_status"`
	Record string     `json:"record_file"`
	Ops    []opVector `json:"ops"`
}

// vectorChain covers every action kind that derives ops, including a private
// entry and a link that is later removed.
func vectorChain() *fixture.Chain {
	c := fixture.Genesis(fixture.Signer(0xA1))
	pub := c.Create("public entry", entry.Public)
	c.Create("private entry", entry.Private)
	upd := c.Update(pub, "public entry v2")
	add := c.Link(pub.ActionAddress(), upd.ActionAddress(), "revision")
	c.Unlink(add)
	c.Delete(upd)
	return c
}

type output struct {
	name string
	data []byte
}

func generate() ([]output, error) {
	c := vectorChain()
	var (
		outs    []output
		vectors []recordVector
		all     []dhtop.Op
	)
	for _, r := range c.Records {
		data, err := record.Encode(r)
		if err != nil {
			return nil, err
		}
		a := r.Action()
		name := fmt.Sprintf("record-%02d.cbor", a.Seq())
		outs = append(outs, output{name: name, data: data})

		ops, err := dhtop.Derive(r)
		if err != nil {
			return nil, fmt.Errorf("derive seq %d: %w", a.Seq(), err)
		}
		v := recordVector{Seq: a.Seq(), Kind: a.Kind().String(), Action: r.ActionAddress().String(), Entry: r.Entry().Status().String(), Record: name}
		for _, op := range ops {
			h, err := dhtop.Hash(op)
			if err != nil {
				return nil, err
			}
			v.Ops = append(v.Ops, opVector{Type: op.Type().String(), Basis: op.Basis().String(), Hash: h.String()})
		}
		vectors = append(vectors, v)
		all = append(all, ops...)
	}

	batch, err := dhtop.EncodeBatch(all)
	if err != nil {
		return nil, err
	}
	outs = append(outs, output{name: "ops.cbor", data: batch})

	index, err := json.MarshalIndent(vectors, "", "  ")
	if err != nil {
		return nil, err
	}
	outs = append(outs, output{name: "vectors.json", data: append(index, '\n')})
	return outs, nil
}

func main() {
	outDir := flag.String("out", "", "output directory")
	flag.Parse()
	if *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: opvector_gen -out <dir>")
		os.Exit(2)
	}

	outs, err := generate()
	if err != nil {
		fatalf("generate: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fatalf("mkdir: %v", err)
	}
	for _, o := range outs {
		if err := os.WriteFile(filepath.Join(*outDir, o.name), o.data, 0o644); err != nil {
			fatalf("write %s: %v", o.name, err)
		}
	}
	fmt.Fprintf(os.Stderr, "wrote %d files to %s\n", len(outs), *outDir)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
