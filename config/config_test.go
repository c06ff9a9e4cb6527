package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/storage/casregistry"
	_ "xdao.co/agentchain/storage/localfs"
	_ "xdao.co/agentchain/storage/sqlitecas"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agentchain.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadFileExpandsRoot(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, `
paths:
  root: `+root+`
log:
  level: debug
chain:
  dna: my-app
  compliance: permissive
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Paths.Keys != filepath.Join(root, "keys") || cfg.Paths.Heads != filepath.Join(root, "heads") {
		t.Fatalf("derived paths = %+v", cfg.Paths)
	}
	if cfg.Store.Options["sqlite-path"] != filepath.Join(root, "blocks.db") {
		t.Fatalf("sqlite-path = %q", cfg.Store.Options["sqlite-path"])
	}
	if cfg.Mode() != compliance.Permissive {
		t.Fatalf("Mode = %v", cfg.Mode())
	}
	h, err := cfg.DnaHash()
	if err != nil || h != hashing.Sum(hashing.TypeDna, []byte("my-app")) {
		t.Fatalf("DnaHash = %s, %v", h, err)
	}
	if !cfg.Logger(os.Stderr).Enabled(t.Context(), slog.LevelDebug) {
		t.Fatalf("debug level not applied")
	}

	cas, closeFn, err := cfg.OpenStore(casregistry.UsageCLI)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer closeFn()
	if cas == nil {
		t.Fatalf("OpenStore returned nil CAS")
	}
}

func TestLoadEmbeddedCAS(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
paths:
  root: `+dir+`
store:
  cas:
    write_policy: all
    backends:
      - name: localfs
        id: a
        config: {localfs-dir: "${AGENTCHAIN_ROOT}/a"}
      - name: localfs
        id: b
        config: {localfs-dir: "${AGENTCHAIN_ROOT}/b"}
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got := cfg.Store.CAS.Backends[1].Config["localfs-dir"]; got != filepath.Join(dir, "b") {
		t.Fatalf("expanded localfs-dir = %q", got)
	}
	_, closeFn, err := cfg.OpenStore(casregistry.UsageCLI)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	_ = closeFn()
}

func TestValidateReportsAllProblems(t *testing.T) {
	path := writeConfig(t, `
log:
  level: loud
chain:
  dna: ""
  compliance: maybe
bundle:
  compression: gzip
`)
	_, err := LoadFile(path)
	if err == nil {
		t.Fatalf("invalid config accepted")
	}
	for _, want := range []string{"log.level", "chain.compliance", "chain.dna", "bundle.compression"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	path := writeConfig(t, "chain:\n  dna: from-env\n")
	t.Setenv(EnvVar, path)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Chain.Dna != "from-env" {
		t.Fatalf("Load ignored %s", EnvVar)
	}
}
