package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/internal/fixture"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/storage/sqlitecas"
)

func TestPutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "payload")
	if err := os.WriteFile(src, []byte("external payload"), 0o600); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	if code := run([]string{"put", "--backend", "localfs", "--localfs-dir", dir, src}, &out, &errOut); code != 0 {
		t.Fatalf("put: exit %d: %s", code, errOut.String())
	}
	id := strings.TrimSpace(out.String())

	out.Reset()
	if code := run([]string{"inspect", "--backend", "localfs", "--localfs-dir", dir, "--cid", id}, &out, &errOut); code != 0 {
		t.Fatalf("inspect: exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "type\texternal") || !strings.Contains(out.String(), "content\t16 bytes") {
		t.Fatalf("inspect printed %q", out.String())
	}

	out.Reset()
	if code := run([]string{"get", "--backend", "localfs", "--localfs-dir", dir, "--cid", "not-a-cid"}, &out, &errOut); code != 2 {
		t.Fatalf("get with bad cid: exit %d", code)
	}
}

func TestWalkChain(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "blocks.db")
	cas, err := sqlitecas.Open(dbPath, sqlitecas.Options{})
	if err != nil {
		t.Fatal(err)
	}
	signer := fixture.Signer(7)
	sc := chain.New(cas, keys.NewKeystore(signer), signer.AgentID(), chain.Options{})
	ctx := context.Background()
	if _, err := sc.Genesis(ctx, fixture.DnaHash(), nil); err != nil {
		t.Fatal(err)
	}
	if _, err := sc.Create(ctx, entry.AppType(0, 0, entry.Public), entry.App([]byte("walked"))); err != nil {
		t.Fatal(err)
	}
	head, _ := sc.Head()
	if err := cas.Close(); err != nil {
		t.Fatal(err)
	}

	var out, errOut bytes.Buffer
	args := []string{"walk", "--backend", "sqlite", "--sqlite-path", dbPath, "--head", head.Hash.String()}
	if code := run(args, &out, &errOut); code != 0 {
		t.Fatalf("walk: exit %d: %s", code, errOut.String())
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "0\tDna\t") {
		t.Fatalf("walk printed:\n%s", out.String())
	}
}
