package main

import (
	"context"
	"fmt"

	"xdao.co/agentchain/dhtop"
)

func cmdOps(e *env, args []string) int {
	if len(args) == 0 || args[0] != "derive" {
		fmt.Fprintln(e.errOut, "usage: agentchain ops derive --key <name> [--agent <agent>] [--seq <n>]")
		return 2
	}
	fs := newFlags(e, "ops derive")
	var af agentFlags
	af.register(fs)
	seq := fs.Int("seq", -1, "Only derive ops for the action at this sequence number")
	if err := fs.Parse(args[1:]); err != nil {
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
	if *seq >= len(recs) {
		fmt.Fprintf(e.errOut, "no action at seq %d (chain length %d)\n", *seq, len(recs))
		return 1
	}
	for _, r := range recs {
		if *seq >= 0 && int(r.Action().Seq()) != *seq {
			continue
		}
		ops, err := dhtop.Derive(r)
		if err != nil {
			fmt.Fprintf(e.errOut, "derive %s: %v\n", r.ActionAddress(), err)
			return 1
		}
		for _, op := range ops {
			h, err := dhtop.Hash(op)
			if err != nil {
				fmt.Fprintf(e.errOut, "hash op: %v\n", err)
				return 1
			}
			fmt.Fprintf(e.out, "%d\t%s\t%s\t%s\n", r.Action().Seq(), op.Type(), op.Basis(), h)
		}
	}
	return 0
}
