package casregistry

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"xdao.co/agentchain/storage"
)

func TestRegisterValidation(t *testing.T) {
	noop := func(*flag.FlagSet) {}
	open := func() (storage.CAS, func() error, error) { return storage.NewMemCAS(), nil, nil }
	cases := []Backend{
		{Name: "", RegisterFlags: noop, Open: open, Usage: UsageCLI},
		{Name: "x-noflags", Open: open, Usage: UsageCLI},
		{Name: "x-noopen", RegisterFlags: noop, Usage: UsageCLI},
		{Name: "x-nousage", RegisterFlags: noop, Open: open},
	}
	for _, b := range cases {
		if err := Register(b); err == nil {
			t.Fatalf("expected Register(%q) to fail", b.Name)
		}
	}
}

func TestOpenWithConfigSetsFlags(t *testing.T) {
	var path string
	var opened string
	MustRegister(Backend{
		Name:  "test-mem",
		Usage: UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&path, "test-mem-path", "", "")
		},
		Open: func() (storage.CAS, func() error, error) {
			opened = path
			return storage.NewMemCAS(), nil, nil
		},
	})
	if err := Register(Backend{Name: "test-mem", Usage: UsageCLI, RegisterFlags: func(*flag.FlagSet) {}, Open: func() (storage.CAS, func() error, error) { return nil, nil, nil }}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}

	if _, _, err := OpenWithConfig("test-mem", UsageDaemon, map[string]string{"test-mem-path": "/x"}); err != nil {
		t.Fatalf("OpenWithConfig: %v", err)
	}
	if opened != "/x" {
		t.Fatalf("flag value not applied: %q", opened)
	}
	if _, _, err := OpenWithConfig("test-mem", UsageDaemon, map[string]string{"bogus": "1"}); err == nil {
		t.Fatalf("unknown config key should fail")
	}
	if _, _, err := OpenWithConfig("test-mem", UsageCLI, nil); !errors.Is(err, ErrUsage) {
		t.Fatalf("usage mismatch: %v", err)
	}
	if _, _, err := Open("nope", UsageDaemon); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("unknown backend: %v", err)
	}
	found := false
	for _, n := range Names(UsageDaemon) {
		if n == "test-mem" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Names should list the registered backend")
	}
}

func TestTransactionalDeclarationChecked(t *testing.T) {
	closed := false
	MustRegister(Backend{
		Name:          "test-liar",
		Usage:         UsageCLI,
		Transactional: true,
		RegisterFlags: func(*flag.FlagSet) {},
		Open: func() (storage.CAS, func() error, error) {
			return storage.NewMemCAS(), func() error { closed = true; return nil }, nil
		},
	})
	MustRegister(Backend{
		Name:          "test-multi",
		Description:   "multi over memory",
		Usage:         UsageCLI,
		Transactional: true,
		RegisterFlags: func(*flag.FlagSet) {},
		Open: func() (storage.CAS, func() error, error) {
			return storage.MultiCAS{Adapters: []storage.CAS{storage.NewMemCAS()}}, nil, nil
		},
	})

	if _, _, err := Open("test-liar", UsageCLI); err == nil {
		t.Fatalf("non-transactional store accepted")
	}
	if !closed {
		t.Fatalf("rejected store was not closed")
	}
	if _, _, err := Open("test-multi", UsageCLI); err != nil {
		t.Fatalf("Open(test-multi): %v", err)
	}

	var buf bytes.Buffer
	Describe(&buf, UsageCLI)
	if !strings.Contains(buf.String(), "test-multi\tmulti over memory\t(transactional)") {
		t.Fatalf("Describe output:\n%s", buf.String())
	}
}
