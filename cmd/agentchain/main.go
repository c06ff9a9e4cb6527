// agentchain is a local command line front end for source chains: it
// manages keys, commits actions, derives DHT operations and moves chains
// between stores as bundles.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"xdao.co/agentchain/config"
	_ "xdao.co/agentchain/storage/grpccas"
	_ "xdao.co/agentchain/storage/localfs"
	_ "xdao.co/agentchain/storage/sqlitecas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// env carries what every subcommand needs after global flags are parsed.
type env struct {
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	fs := pflag.NewFlagSet("agentchain", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	fs.SetInterspersed(false)
	configPath := fs.String("config", "", "YAML config file (default $"+config.EnvVar+")")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(out)
			return 0
		}
		return 2
	}
	args = fs.Args()
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(errOut, "config: %v\n", err)
		return 1
	}
	e := &env{cfg: cfg, out: out, errOut: errOut}

	switch args[0] {
	case "key":
		return cmdKey(e, args[1:])
	case "chain":
		return cmdChain(e, args[1:])
	case "ops":
		return cmdOps(e, args[1:])
	case "bundle":
		return cmdBundle(e, args[1:])
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "agentchain: source chain CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  agentchain [--config <file>] <command> ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  agentchain key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  agentchain key derive --from <name> --agent <agent> [--force]")
	fmt.Fprintln(w, "  agentchain key list")
	fmt.Fprintln(w, "  agentchain chain init --key <name> [--agent <agent>] [--membrane-proof <text>]")
	fmt.Fprintln(w, "  agentchain chain commit --key <name> [--agent <agent>] --payload <text> [--private] [--zome <n>] [--app-type <n>]")
	fmt.Fprintln(w, "  agentchain chain update --key <name> --original <action> --payload <text>")
	fmt.Fprintln(w, "  agentchain chain delete --key <name> --original <action>")
	fmt.Fprintln(w, "  agentchain chain link --key <name> --base <addr> --target <addr> [--tag <text>]")
	fmt.Fprintln(w, "  agentchain chain unlink --key <name> --add <action>")
	fmt.Fprintln(w, "  agentchain chain show --key <name> [--agent <agent>]")
	fmt.Fprintln(w, "  agentchain chain verify --key <name> [--agent <agent>] [--mode strict|permissive]")
	fmt.Fprintln(w, "  agentchain ops derive --key <name> [--agent <agent>] [--seq <n>]")
	fmt.Fprintln(w, "  agentchain bundle export --key <name> [--agent <agent>] --out <file> [--compression none|zstd|lz4]")
	fmt.Fprintln(w, "  agentchain bundle import --in <file> [--set-head]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - addresses are CID strings; link addresses default to entry hashes and")
	fmt.Fprintln(w, "    take an action:, agent: or external: prefix otherwise")
	fmt.Fprintln(w, "  - chain heads are kept under paths.heads, one file per agent")
}
