package keys

import (
	"os"
	"testing"
)

func TestFileStoreRootAndAgents(t *testing.T) {
	fs, err := OpenFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("OpenFileStore: %v", err)
	}
	rootID, path, err := fs.InitializeRootKey("node1", testSeed(), false)
	if err != nil {
		t.Fatalf("InitializeRootKey: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("root key not written: %v", err)
	}
	if _, _, err := fs.InitializeRootKey("node1", testSeed(), false); err == nil {
		t.Fatalf("expected overwrite without flag to fail")
	}

	agentID, _, err := fs.DeriveAgent("node1", "alice", false)
	if err != nil {
		t.Fatalf("DeriveAgent: %v", err)
	}
	if agentID == rootID {
		t.Fatalf("derived agent should differ from root")
	}

	s, err := fs.LoadSigner("node1", "alice")
	if err != nil {
		t.Fatalf("LoadSigner: %v", err)
	}
	if s.AgentID() != agentID {
		t.Fatalf("loaded signer does not match derived agent")
	}

	list, err := fs.ListKeys()
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(list) != 1 || list[0].Identifier != "node1" || len(list[0].Agents) != 1 || list[0].Agents[0] != "alice" {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestParseSeedHex(t *testing.T) {
	if _, err := ParseSeedHex("0x00"); err == nil {
		t.Fatalf("expected short seed to fail")
	}
	if _, err := ParseSeedHex("zz"); err == nil {
		t.Fatalf("expected invalid hex to fail")
	}
}
