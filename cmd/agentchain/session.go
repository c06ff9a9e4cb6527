package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"xdao.co/agentchain/chain"
	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/casregistry"
)

// agentFlags selects the signing key for chain commands.
type agentFlags struct {
	key   string
	agent string
}

func (a *agentFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&a.key, "key", "", "Root key name")
	fs.StringVar(&a.agent, "agent", "", "Derived agent name under --key (default: the root key)")
}

// session is an opened store plus the agent's chain, if it has one.
type session struct {
	e      *env
	logger *slog.Logger
	signer keys.Signer
	ks     *keys.Keystore
	cas    storage.CAS
	close  func() error
	chain  *chain.SourceChain
}

func (e *env) open(ctx context.Context, af agentFlags, mode compliance.ComplianceMode) (*session, error) {
	if af.key == "" {
		return nil, errors.New("missing --key")
	}
	store, err := keys.OpenFileStore(e.cfg.Paths.Keys)
	if err != nil {
		return nil, err
	}
	signer, err := store.LoadSigner(af.key, af.agent)
	if err != nil {
		return nil, fmt.Errorf("load key: %w", err)
	}
	s, err := e.openStore()
	if err != nil {
		return nil, err
	}
	s.signer = signer
	s.ks = keys.NewKeystore(signer)

	opts := chain.Options{Logger: s.logger}
	head, ok, err := e.readHead(signer.AgentID())
	switch {
	case err != nil:
		s.close()
		return nil, err
	case ok:
		s.chain, err = chain.Load(ctx, s.cas, s.ks, head, mode, opts)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("load chain: %w", err)
		}
	default:
		s.chain = chain.New(s.cas, s.ks, signer.AgentID(), opts)
	}
	return s, nil
}

func (e *env) openStore() (*session, error) {
	cas, closeFn, err := e.cfg.OpenStore(casregistry.UsageCLI)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &session{e: e, logger: e.cfg.Logger(e.errOut), cas: cas, close: closeFn}, nil
}

func (e *env) headPath(agent hashing.Hash) string {
	return filepath.Join(e.cfg.Paths.Heads, agent.String()+".head")
}

func (e *env) readHead(agent hashing.Hash) (hashing.Hash, bool, error) {
	data, err := os.ReadFile(e.headPath(agent))
	if errors.Is(err, fs.ErrNotExist) {
		return hashing.Hash{}, false, nil
	}
	if err != nil {
		return hashing.Hash{}, false, err
	}
	h, err := hashing.Parse(hashing.TypeAction, strings.TrimSpace(string(data)))
	if err != nil {
		return hashing.Hash{}, false, fmt.Errorf("head file %s: %w", e.headPath(agent), err)
	}
	return h, true, nil
}

func (e *env) writeHead(agent, head hashing.Hash) error {
	path := e.headPath(agent)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(head.String()+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// saveHead persists the chain head after a commit.
func (s *session) saveHead() error {
	h, ok := s.chain.Head()
	if !ok {
		return nil
	}
	return s.e.writeHead(s.chain.Author(), h.Hash)
}

// parseAddress reads a link address: a CID string with an optional
// "action:", "entry:", "agent:" or "external:" prefix. Entry is the default.
func parseAddress(s string) (hashing.Hash, error) {
	t := hashing.TypeEntry
	if kind, rest, ok := strings.Cut(s, ":"); ok {
		switch kind {
		case "action":
			t = hashing.TypeAction
		case "entry":
		case "agent":
			t = hashing.TypeAgent
		case "external":
			t = hashing.TypeExternal
		default:
			return hashing.Hash{}, fmt.Errorf("unknown address kind %q", kind)
		}
		s = rest
	}
	return hashing.Parse(t, s)
}
