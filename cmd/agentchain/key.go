package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"xdao.co/agentchain/keys"
)

func cmdKey(e *env, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(e.errOut, "usage: agentchain key init|derive|list ...")
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(e, args[1:])
	case "derive":
		return cmdKeyDerive(e, args[1:])
	case "list":
		return cmdKeyList(e, args[1:])
	default:
		fmt.Fprintf(e.errOut, "unknown key subcommand: %s\n", args[0])
		return 2
	}
}

func newFlags(e *env, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.errOut)
	return fs
}

func cmdKeyInit(e *env, args []string) int {
	fs := newFlags(e, "key init")
	name := fs.String("name", "", "Key name (directory under paths.keys)")
	seedHex := fs.String("seed-hex", "", "Optional ed25519 seed as 64 hex chars")
	force := fs.Bool("force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := keys.CheckKeyName(*name); err != nil {
		fmt.Fprintf(e.errOut, "invalid --name: %v\n", err)
		return 2
	}

	var seed []byte
	if *seedHex != "" {
		var err error
		if seed, err = keys.ParseSeedHex(*seedHex); err != nil {
			fmt.Fprintf(e.errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(e.errOut, "rand: %v\n", err)
			return 1
		}
	}

	store, err := keys.OpenFileStore(e.cfg.Paths.Keys)
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	agent, path, err := store.InitializeRootKey(*name, seed, *force)
	if err != nil {
		fmt.Fprintf(e.errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.out, "Created root key: %s\n", agent)
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyDerive(e *env, args []string) int {
	fs := newFlags(e, "key derive")
	from := fs.String("from", "", "Root key name")
	agentName := fs.String("agent", "", "Agent name to derive")
	force := fs.Bool("force", false, "Overwrite existing key files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := keys.CheckKeyName(*agentName); err != nil {
		fmt.Fprintf(e.errOut, "invalid --agent: %v\n", err)
		return 2
	}
	store, err := keys.OpenFileStore(e.cfg.Paths.Keys)
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	agent, path, err := store.DeriveAgent(*from, *agentName, *force)
	if err != nil {
		fmt.Fprintf(e.errOut, "derive agent key: %v\n", err)
		return 1
	}
	fmt.Fprintf(e.out, "Created agent key: %s\n", agent)
	fmt.Fprintf(e.out, "Stored at: %s\n", path)
	return 0
}

func cmdKeyList(e *env, args []string) int {
	fs := newFlags(e, "key list")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	store, err := keys.OpenFileStore(e.cfg.Paths.Keys)
	if err != nil {
		fmt.Fprintf(e.errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := store.ListKeys()
	if err != nil {
		fmt.Fprintf(e.errOut, "list keys: %v\n", err)
		return 1
	}
	for _, k := range entries {
		if len(k.Agents) == 0 {
			fmt.Fprintln(e.out, k.Identifier)
			continue
		}
		fmt.Fprintf(e.out, "%s\t%s\n", k.Identifier, strings.Join(k.Agents, ","))
	}
	return 0
}
