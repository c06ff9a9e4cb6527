package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/record"
	"xdao.co/agentchain/storage/bundle"
)

const headLabel = "head"

func cmdBundle(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "usage: agentchain bundle export|import ...")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(e, args[1:])
	case "import":
		return cmdBundleImport(e, args[1:])
	default:
		fmt.Fprintf(e.errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBundleExport(e *env, args []string) int {
	fs := newFlags(e, "bundle export")
	var af agentFlags
	af.register(fs)
	outPath := fs.String("out", "", "Output file")
	compression := fs.String("compression", "", "none|zstd|lz4 (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *outPath == "" {
		fmt.Fprintln(e.errOut, "missing --out")
		return 2
	}
	if *compression == "" {
		*compression = e.cfg.Bundle.Compression
	}
	comp, err := bundle.ParseCompression(*compression)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --compression: %v\n", err)
		return 2
	}

	ctx := context.Background()
	s, err := e.open(ctx, af, e.cfg.Mode())
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	defer s.close()
	head, ok := s.chain.Head()
	if !ok {
		fmt.Fprintln(e.errOut, "chain is empty")
		return 1
	}
	recs, err := s.chain.Records(ctx)
	if err != nil {
		fmt.Fprintf(e.errOut, "read chain: %v\n", err)
		return 1
	}
	var ids []cid.Cid
	for _, r := range recs {
		blocks, err := record.Blocks(r)
		if err != nil {
			fmt.Fprintf(e.errOut, "encode %s: %v\n", r.ActionAddress(), err)
			return 1
		}
		for _, b := range blocks {
			ids = append(ids, b.CID())
		}
	}

	f, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(e.errOut, "create: %v\n", err)
		return 1
	}
	opts := bundle.ExportOptions{
		Labels:       map[string]cid.Cid{headLabel: head.Hash.CID()},
		IncludeIndex: true,
		Compression:  comp,
	}
	if err := bundle.Export(f, s.cas, ids, opts); err != nil {
		f.Close()
		fmt.Fprintf(e.errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(e.errOut, "close: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.out, "Exported %d blocks, head %s\n", len(ids), head.Hash)
	return 0
}

func cmdBundleImport(e *env, args []string) int {
	fs := newFlags(e, "bundle import")
	inPath := fs.String("in", "", "Bundle file")
	setHead := fs.Bool("set-head", false, "Verify the labelled chain and record it as the author's head")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inPath == "" {
		fmt.Fprintln(e.errOut, "missing --in")
		return 2
	}
	f, err := os.Open(*inPath)
	if err != nil {
		fmt.Fprintf(e.errOut, "open: %v\n", err)
		return 1
	}
	defer f.Close()

	s, err := e.openStore()
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	defer s.close()

	ctx := context.Background()
	m, err := bundle.Import(ctx, f, s.cas)
	if err != nil {
		fmt.Fprintf(e.errOut, "import: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.out, "Imported %d blocks\n", len(m.Blocks))
	if !*setHead {
		return 0
	}

	c, ok := m.Labels[headLabel]
	if !ok {
		fmt.Fprintln(e.errOut, "bundle has no head label")
		return 1
	}
	head, err := hashing.FromCID(hashing.TypeAction, c)
	if err != nil {
		fmt.Fprintf(e.errOut, "head label: %v\n", err)
		return 1
	}
	// Signatures of foreign agents verify against the key in their agent hash.
	sc, err := chain.Load(ctx, s.cas, keys.NewKeystore(), head, e.cfg.Mode(), chain.Options{Logger: s.logger})
	if err != nil {
		fmt.Fprintf(e.errOut, "verify chain: %v\n", err)
		return 1
	}
	if err := e.writeHead(sc.Author(), head); err != nil {
		fmt.Fprintf(e.errOut, "save head: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.out, "Head of %s set to %s\n", sc.Author(), head)
	return 0
}
