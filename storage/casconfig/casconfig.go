package casconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/casregistry"
)

// Config describes how to open one or more CAS backends via casregistry.
//
// It is read from a standalone JSON file (LoadFile) or embedded in the node's
// YAML configuration under store.cas.
// Callers still need to link desired backend plugins via blank imports.
//
// WritePolicy values:
// - "first" (default): write only to the first backend; reads fall back in order
// - "all": write to all backends and require CID equality (see storage.ReplicatingCAS)
//
// Example:
//
//	{
//	  "write_policy": "all",
//	  "backends": [
//	    {"name":"sqlite", "config":{"sqlite-path":"/var/lib/agentchain/blocks.db"}},
//	    {"name":"localfs", "config":{"localfs-dir":"/var/lib/agentchain/mirror"}}
//	  ]
//	}
//
// Note: Config values are backend-specific.
// Each backend may document accepted keys (usually mirroring CLI flag names).
type Config struct {
	WritePolicy string          `json:"write_policy,omitempty" yaml:"write_policy,omitempty"`
	Backends    []BackendConfig `json:"backends" yaml:"backends"`
}

type BackendConfig struct {
	// Name is the casregistry backend name to open (e.g. "grpc", "localfs", "sqlite").
	Name string `json:"name" yaml:"name"`
	// ID is an optional stable alias used for identification and per-backend CID maps.
	// If empty, Name is used.
	ID     string            `json:"id,omitempty" yaml:"id,omitempty"`
	Config map[string]string `json:"config,omitempty" yaml:"config,omitempty"`
}

// LoadFile reads and validates a JSON config.
func LoadFile(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, errors.New("casconfig: empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("casconfig: %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// id is the name a backend is known by in logs and ReplicatingCAS errors.
func (b BackendConfig) id() string {
	if b.ID != "" {
		return b.ID
	}
	return b.Name
}

func (c Config) Validate() error {
	if len(c.Backends) == 0 {
		return errors.New("casconfig: at least one backend is required")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.Name == "" {
			return errors.New("casconfig: backend name is required")
		}
		if seen[b.id()] {
			return fmt.Errorf("casconfig: duplicate backend id %q", b.id())
		}
		seen[b.id()] = true
	}
	switch c.WritePolicy {
	case "", "first", "all":
		return nil
	default:
		return fmt.Errorf("casconfig: invalid write_policy %q", c.WritePolicy)
	}
}

// ordered returns the backends with preferred (a name or id) moved first.
func (c Config) ordered(preferred string) ([]BackendConfig, error) {
	out := slices.Clone(c.Backends)
	if preferred == "" {
		return out, nil
	}
	idx := slices.IndexFunc(out, func(b BackendConfig) bool { return b.Name == preferred || b.ID == preferred })
	if idx < 0 {
		return nil, fmt.Errorf("casconfig: preferred backend %q not found in config", preferred)
	}
	b := out[idx]
	out = slices.Delete(out, idx, idx+1)
	return slices.Insert(out, 0, b), nil
}

// closers closes in reverse opening order and joins every error.
type closers []func() error

func (cs closers) close() error {
	var errs []error
	for i := len(cs) - 1; i >= 0; i-- {
		errs = append(errs, cs[i]())
	}
	return errors.Join(errs...)
}

// Open opens every configured backend and combines them per WritePolicy.
// With preferredBackend set, that backend is moved first and so takes the
// writes under the "first" policy.
func (c Config) Open(usage casregistry.Usage, preferredBackend string) (storage.CAS, func() error, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	ordered, err := c.ordered(preferredBackend)
	if err != nil {
		return nil, nil, err
	}

	var (
		named []storage.NamedCAS
		cs    closers
	)
	for _, b := range ordered {
		cas, closeFn, err := casregistry.OpenWithConfig(b.Name, usage, b.Config)
		if err != nil {
			_ = cs.close()
			return nil, nil, fmt.Errorf("casconfig: backend %q: %w", b.id(), err)
		}
		named = append(named, storage.NamedCAS{Name: b.id(), CAS: cas})
		if closeFn != nil {
			cs = append(cs, closeFn)
		}
	}

	if len(named) == 1 {
		return named[0].CAS, cs.close, nil
	}
	if c.WritePolicy == "all" {
		return storage.ReplicatingCAS{Backends: named}, cs.close, nil
	}
	adapters := make([]storage.CAS, len(named))
	for i, n := range named {
		adapters[i] = n.CAS
	}
	return storage.MultiCAS{Adapters: adapters}, cs.close, nil
}
