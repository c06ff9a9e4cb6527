package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/casregistry"

	_ "xdao.co/agentchain/storage/grpccas"
	_ "xdao.co/agentchain/storage/localfs"
	_ "xdao.co/agentchain/storage/sqlitecas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "walk":
		return cmdWalk(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "cascli: block store tool for walkthroughs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cascli put --backend localfs --localfs-dir <dir> [--type external|entry] <file>")
	fmt.Fprintln(w, "  cascli get --backend localfs --localfs-dir <dir> --cid <cid> [--out <file>]")
	fmt.Fprintln(w, "  cascli inspect --backend sqlite --sqlite-path <db> --cid <cid>")
	fmt.Fprintln(w, "  cascli walk --backend sqlite --sqlite-path <db> --head <action cid> [--mode strict|permissive]")
	fmt.Fprintln(w, "  cascli get --backend grpc --grpc-target <host:port> --cid <cid>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - put wraps the file bytes in an unsigned block; the CID covers the bytes only")
	fmt.Fprintln(w, "  - grpc backend talks to agentchain-casd (or any CAS gRPC server)")
	fmt.Fprintln(w, "  - walk follows prev links from --head to genesis and checks the chain")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *commonFlags) openCAS() (storage.CAS, func() error, error) {
	return casregistry.Open(c.backend, casregistry.UsageCLI)
}

// parseFlags parses args and opens the store. A zero exit code with a nil
// CAS means the command already finished (e.g. --list-backends).
func parseFlags(fs *flag.FlagSet, common *commonFlags, args []string, out, errOut io.Writer) (storage.CAS, func(), int) {
	if err := fs.Parse(args); err != nil {
		return nil, nil, 2
	}
	if common.listBackends {
		casregistry.Describe(out, casregistry.UsageCLI)
		return nil, nil, 0
	}
	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return nil, nil, 1
	}
	return cas, func() {
		if closeFn != nil {
			_ = closeFn()
		}
	}, 0
}

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	typ := fs.String("type", "external", "Block type: external|entry")

	cas, done, code := parseFlags(fs, &common, args, out, errOut)
	if cas == nil {
		return code
	}
	defer done()
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: cascli put [common flags] [--type external|entry] <file>")
		return 2
	}
	var t hashing.Type
	switch *typ {
	case "external":
		t = hashing.TypeExternal
	case "entry":
		t = hashing.TypeEntry
	default:
		fmt.Fprintf(errOut, "invalid --type %q\n", *typ)
		return 2
	}

	p := fs.Arg(0)
	content, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	id, err := storage.PutBlock(cas, cidutil.Block{Type: t, Content: content})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	cidStr := fs.String("cid", "", "CID to fetch")
	outPath := fs.String("out", "", "Output file (optional; default stdout)")

	cas, done, code := parseFlags(fs, &common, args, out, errOut)
	if cas == nil {
		return code
	}
	defer done()
	id, err := cid.Decode(*cidStr)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 2
	}

	b, err := cas.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if *outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(*outPath, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", *outPath, err)
		return 1
	}
	return 0
}

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	cidStr := fs.String("cid", "", "Block CID")

	cas, done, code := parseFlags(fs, &common, args, out, errOut)
	if cas == nil {
		return code
	}
	defer done()
	id, err := cid.Decode(*cidStr)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 2
	}
	raw, err := cas.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	b, err := cidutil.DecodeBlock(raw)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "type\t%s\ncontent\t%d bytes\nsigned\t%t\n", b.Type, len(b.Content), len(b.Signature) > 0)
	if b.Type != hashing.TypeAction {
		return 0
	}
	a, err := action.Decode(b.Content)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	fmt.Fprintf(out, "kind\t%s\nauthor\t%s\nseq\t%d\ntime\t%s\n", a.Kind(), a.AuthorID(), a.Seq(), a.Time())
	if prev, ok := a.Prev(); ok {
		fmt.Fprintf(out, "prev\t%s\n", prev)
	}
	if eh, _, ok := a.EntryRef(); ok {
		fmt.Fprintf(out, "entry\t%s\n", eh)
	}
	return 0
}

func cmdWalk(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("walk", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	headStr := fs.String("head", "", "Head action CID")
	mode := fs.String("mode", "strict", "Compliance mode: strict|permissive")

	cas, done, code := parseFlags(fs, &common, args, out, errOut)
	if cas == nil {
		return code
	}
	defer done()
	m, err := compliance.Parse(*mode)
	if err != nil {
		fmt.Fprintln(errOut, "invalid --mode")
		return 2
	}
	head, err := hashing.Parse(hashing.TypeAction, *headStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --head: %v\n", err)
		return 2
	}

	ctx := context.Background()
	sc, err := chain.Load(ctx, cas, keys.NewKeystore(), head, m, chain.Options{})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	recs, err := sc.Records(ctx)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	for _, r := range recs {
		a := r.Action()
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", a.Seq(), a.Kind(), r.ActionAddress(), r.Entry().Status())
	}
	return 0
}
