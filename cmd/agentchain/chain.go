package main

import (
	"context"
	"errors"
	"fmt"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/record"
)

func cmdChain(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "usage: agentchain chain init|commit|update|delete|link|unlink|show|verify ...")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdChainInit(e, args[1:])
	case "commit":
		return cmdChainCommit(e, args[1:])
	case "update":
		return cmdChainUpdate(e, args[1:])
	case "delete":
		return cmdChainDelete(e, args[1:])
	case "link":
		return cmdChainLink(e, args[1:])
	case "unlink":
		return cmdChainUnlink(e, args[1:])
	case "show":
		return cmdChainShow(e, args[1:])
	case "verify":
		return cmdChainVerify(e, args[1:])
	default:
		fmt.Fprintf(e.errOut, "unknown chain subcommand: %s\n", args[0])
		return 2
	}
}

// commitWith opens the agent's chain, runs fn and persists the new head.
func commitWith(e *env, af agentFlags, fn func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error)) int {
	ctx := context.Background()
	s, err := e.open(ctx, af, e.cfg.Mode())
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	defer s.close()

	recs, err := fn(ctx, s.chain)
	if err != nil && !errors.Is(err, chain.ErrPublish) {
		fmt.Fprintf(e.errOut, "commit: %v\n", err)
		return 1
	}
	if err := s.saveHead(); err != nil {
		fmt.Fprintf(e.errOut, "save head: %v\n", err)
		return 1
	}
	for _, r := range recs {
		printRecord(e, r)
	}
	return 0
}

func one(r record.Record, err error) ([]record.Record, error) {
	if err != nil && !errors.Is(err, chain.ErrPublish) {
		return nil, err
	}
	return []record.Record{r}, err
}

func printRecord(e *env, r record.Record) {
	a := r.Action()
	fmt.Fprintf(e.out, "%d\t%s\t%s\t%s\n", a.Seq(), a.Kind(), r.ActionAddress(), r.Entry().Status())
}

func cmdChainInit(e *env, args []string) int {
	fs := newFlags(e, "chain init")
	var af agentFlags
	af.register(fs)
	proof := fs.String("membrane-proof", "", "Membrane proof recorded in the validation package")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	dna, err := e.cfg.DnaHash()
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	var mp []byte
	if *proof != "" {
		mp = []byte(*proof)
	}
	return commitWith(e, af, func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error) {
		return sc.Genesis(ctx, dna, mp)
	})
}

func cmdChainCommit(e *env, args []string) int {
	fs := newFlags(e, "chain commit")
	var af agentFlags
	af.register(fs)
	payload := fs.String("payload", "", "Entry payload")
	private := fs.Bool("private", false, "Keep the entry on the author's chain only")
	zome := fs.Uint8("zome", 0, "Zome index")
	appType := fs.Uint8("app-type", 0, "Application entry type index")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	vis := entry.Public
	if *private {
		vis = entry.Private
	}
	return commitWith(e, af, func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error) {
		return one(sc.Create(ctx, entry.AppType(*zome, *appType, vis), entry.App([]byte(*payload))))
	})
}

func cmdChainUpdate(e *env, args []string) int {
	fs := newFlags(e, "chain update")
	var af agentFlags
	af.register(fs)
	original := fs.String("original", "", "Action hash of the Create or Update being replaced")
	payload := fs.String("payload", "", "New entry payload")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	orig, err := hashing.Parse(hashing.TypeAction, *original)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --original: %v\n", err)
		return 2
	}
	return commitWith(e, af, func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error) {
		return one(sc.Update(ctx, orig, entry.App([]byte(*payload))))
	})
}

func cmdChainDelete(e *env, args []string) int {
	fs := newFlags(e, "chain delete")
	var af agentFlags
	af.register(fs)
	original := fs.String("original", "", "Action hash of the Create or Update being deleted")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	orig, err := hashing.Parse(hashing.TypeAction, *original)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --original: %v\n", err)
		return 2
	}
	return commitWith(e, af, func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error) {
		return one(sc.Delete(ctx, orig))
	})
}

func cmdChainLink(e *env, args []string) int {
	fs := newFlags(e, "chain link")
	var af agentFlags
	af.register(fs)
	base := fs.String("base", "", "Base address")
	target := fs.String("target", "", "Target address")
	tag := fs.String("tag", "", "Link tag")
	zome := fs.Uint8("zome", 0, "Zome index")
	linkType := fs.Uint8("link-type", 0, "Link type index")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	b, err := parseAddress(*base)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --base: %v\n", err)
		return 2
	}
	t, err := parseAddress(*target)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --target: %v\n", err)
		return 2
	}
	l := chain.Link{Base: b, Target: t, ZomeID: *zome, LinkType: *linkType, Tag: []byte(*tag)}
	return commitWith(e, af, func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error) {
		return one(sc.CreateLink(ctx, l))
	})
}

func cmdChainUnlink(e *env, args []string) int {
	fs := newFlags(e, "chain unlink")
	var af agentFlags
	af.register(fs)
	add := fs.String("add", "", "Action hash of the CreateLink to remove")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	h, err := hashing.Parse(hashing.TypeAction, *add)
	if err != nil {
		fmt.Fprintf(e.errOut, "invalid --add: %v\n", err)
		return 2
	}
	return commitWith(e, af, func(ctx context.Context, sc *chain.SourceChain) ([]record.Record, error) {
		return one(sc.DeleteLink(ctx, h))
	})
}

func cmdChainShow(e *env, args []string) int {
	fs := newFlags(e, "chain show")
	var af agentFlags
	af.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ctx := context.Background()
	s, err := e.open(ctx, af, e.cfg.Mode())
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	defer s.close()
	recs, err := s.chain.Records(ctx)
	if err != nil {
		fmt.Fprintf(e.errOut, "read chain: %v\n", err)
		return 1
	}
	for _, r := range recs {
		printRecord(e, r)
	}
	return 0
}

func cmdChainVerify(e *env, args []string) int {
	fs := newFlags(e, "chain verify")
	var af agentFlags
	af.register(fs)
	modeFlag := fs.String("mode", "", "Compliance mode: strict|permissive (default from config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	mode := e.cfg.Mode()
	if *modeFlag != "" {
		var err error
		if mode, err = compliance.Parse(*modeFlag); err != nil {
			fmt.Fprintf(e.errOut, "invalid --mode: %v\n", err)
			return 2
		}
	}
	ctx := context.Background()
	s, err := e.open(ctx, af, mode)
	if err != nil {
		fmt.Fprintf(e.errOut, "%v\n", err)
		return 1
	}
	defer s.close()
	h, ok := s.chain.Head()
	if !ok {
		fmt.Fprintln(e.errOut, "chain is empty")
		return 1
	}
	fmt.Fprintf(e.out, "OK %s seq=%d mode=%s\n", h.Hash, h.Seq, mode)
	return 0
}
