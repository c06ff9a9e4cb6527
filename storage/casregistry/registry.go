package casregistry

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"

	"xdao.co/agentchain/storage"
)

var (
	ErrUnknownBackend = errors.New("casregistry: unknown backend")
	ErrUsage          = errors.New("casregistry: backend not supported in this binary")
)

// Backend is a block store linked into the binary.
//
// Backends register themselves in init():
//
//	casregistry.MustRegister(casregistry.Backend{ ... })
//
// and are enabled by a blank import of the backend package.
type Backend struct {
	Name        string
	Description string
	Usage       Usage

	// Transactional declares that Open returns a storage.Transactional, so
	// chain appends and bundle imports commit in one native transaction.
	// Other backends get the staged fallback of storage.Begin.
	Transactional bool

	// RegisterFlags adds backend-specific flags to fs. Flag names are
	// prefixed with the backend name (e.g. "sqlite-path").
	RegisterFlags func(fs *flag.FlagSet)

	// Open builds the store from the values parsed into the flags above.
	// The close function may be nil.
	Open func() (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register adds b to the registry.
func Register(b Backend) error {
	switch {
	case b.Name == "":
		return errors.New("casregistry: backend name is required")
	case b.RegisterFlags == nil:
		return fmt.Errorf("casregistry: backend %q missing RegisterFlags", b.Name)
	case b.Open == nil:
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	case b.Usage == 0:
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is Register for init functions.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns the backends allowed for usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	mu.RUnlock()
	slices.SortFunc(out, func(a, b Backend) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Names is List reduced to names.
func Names(usage Usage) []string {
	var names []string
	for _, b := range List(usage) {
		names = append(names, b.Name)
	}
	return names
}

// Describe renders one line per backend for --list-backends output.
func Describe(w io.Writer, usage Usage) {
	for _, b := range List(usage) {
		line := b.Name
		if b.Description != "" {
			line += "\t" + b.Description
		}
		if b.Transactional {
			line += "\t(transactional)"
		}
		fmt.Fprintln(w, line)
	}
}

// RegisterFlags registers the flags of every backend allowed for usage, so
// one parse pass accepts any backend's flags.
func RegisterFlags(fs *flag.FlagSet, usage Usage) {
	for _, b := range List(usage) {
		b.RegisterFlags(fs)
	}
}

func lookup(name string, usage Usage) (Backend, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return Backend{}, fmt.Errorf("%w %q", ErrUnknownBackend, name)
	}
	if !b.Usage.allows(usage) {
		return Backend{}, fmt.Errorf("%w: %q", ErrUsage, name)
	}
	return b, nil
}

func open(b Backend) (storage.CAS, func() error, error) {
	cas, closeFn, err := b.Open()
	if err != nil {
		return nil, nil, err
	}
	if _, ok := cas.(storage.Transactional); b.Transactional && !ok {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, nil, fmt.Errorf("casregistry: backend %q declared transactional but %T is not", b.Name, cas)
	}
	return cas, closeFn, nil
}

// Open opens the named backend using flags already parsed by RegisterFlags.
func Open(name string, usage Usage) (storage.CAS, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}
	return open(b)
}

// OpenWithConfig opens the named backend with flag values taken from cfg.
// Keys are the backend's flag names without dashes (e.g. "localfs-dir").
// Unknown keys are rejected.
func OpenWithConfig(name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	b, err := lookup(name, usage)
	if err != nil {
		return nil, nil, err
	}

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	b.RegisterFlags(fs)

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if fs.Lookup(k) == nil {
			return nil, nil, fmt.Errorf("backend %q: unknown config key %q", name, k)
		}
		if err := fs.Set(k, cfg[k]); err != nil {
			return nil, nil, fmt.Errorf("backend %q: config %q: %w", name, k, err)
		}
	}
	return open(b)
}
