// Package config loads node configuration for agentchain binaries.
//
// Configuration comes from a single YAML file named by the --config flag or
// the AGENTCHAIN_CONFIG environment variable. Without either, Default is
// used as is. ${HOME} and ${AGENTCHAIN_ROOT} are expanded in paths.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"xdao.co/agentchain/compliance"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/storage"
	"xdao.co/agentchain/storage/bundle"
	"xdao.co/agentchain/storage/casconfig"
	"xdao.co/agentchain/storage/casregistry"
)

// EnvVar names the environment variable holding the config path.
const EnvVar = "AGENTCHAIN_CONFIG"

type Config struct {
	Paths  PathsConfig  `yaml:"paths"`
	Store  StoreConfig  `yaml:"store"`
	Log    LogConfig    `yaml:"log"`
	Chain  ChainConfig  `yaml:"chain"`
	Bundle BundleConfig `yaml:"bundle"`
}

type PathsConfig struct {
	// Root is the base directory for node data.
	Root string `yaml:"root"`
	// Keys is the key store directory.
	Keys string `yaml:"keys"`
	// Heads holds one file per agent naming its chain head.
	Heads string `yaml:"heads"`
}

// StoreConfig selects the block store. CAS, when set, takes precedence over
// Backend/Options and may name several backends.
type StoreConfig struct {
	Backend string            `yaml:"backend"`
	Options map[string]string `yaml:"options,omitempty"`
	CAS     *casconfig.Config `yaml:"cas,omitempty"`
	// CASFile names a JSON casconfig file, used when CAS is unset.
	CASFile string `yaml:"cas_file,omitempty"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

type ChainConfig struct {
	// Dna names the application; its DNA hash is derived from the name
	// unless DnaHash is set.
	Dna     string `yaml:"dna"`
	DnaHash string `yaml:"dna_hash,omitempty"`
	// Compliance is strict or permissive and applies when loading chains.
	Compliance string `yaml:"compliance"`
}

type BundleConfig struct {
	Compression string `yaml:"compression"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	home, _ := os.UserHomeDir()
	root := filepath.Join(home, ".agentchain")
	return &Config{
		Paths: PathsConfig{
			Root:  root,
			Keys:  filepath.Join(root, "keys"),
			Heads: filepath.Join(root, "heads"),
		},
		Store: StoreConfig{
			Backend: "sqlite",
			Options: map[string]string{"sqlite-path": filepath.Join(root, "blocks.db")},
		},
		Log:    LogConfig{Level: "info"},
		Chain:  ChainConfig{Dna: "agentchain", Compliance: "strict"},
		Bundle: BundleConfig{Compression: "zstd"},
	}
}

// Load reads the file named by path, or by AGENTCHAIN_CONFIG when path is
// empty. With neither it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile reads path over Default, expands variables and validates.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg := Default()
	// Paths derived from the default root follow an overridden root.
	cfg.Paths = PathsConfig{}
	cfg.Store.Options = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.fillDerived()
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDerived() {
	if c.Paths.Root == "" {
		c.Paths.Root = Default().Paths.Root
	}
	if c.Paths.Keys == "" {
		c.Paths.Keys = "${AGENTCHAIN_ROOT}/keys"
	}
	if c.Paths.Heads == "" {
		c.Paths.Heads = "${AGENTCHAIN_ROOT}/heads"
	}
	if c.Store.Backend == "sqlite" && c.Store.Options["sqlite-path"] == "" && c.Store.CAS == nil && c.Store.CASFile == "" {
		if c.Store.Options == nil {
			c.Store.Options = map[string]string{}
		}
		c.Store.Options["sqlite-path"] = "${AGENTCHAIN_ROOT}/blocks.db"
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	vars := map[string]string{"HOME": os.Getenv("HOME")}
	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["AGENTCHAIN_ROOT"] = c.Paths.Root

	c.Paths.Keys = expandVars(c.Paths.Keys, vars)
	c.Paths.Heads = expandVars(c.Paths.Heads, vars)
	c.Store.CASFile = expandVars(c.Store.CASFile, vars)
	for k, v := range c.Store.Options {
		c.Store.Options[k] = expandVars(v, vars)
	}
	if c.Store.CAS != nil {
		for _, b := range c.Store.CAS.Backends {
			for k, v := range b.Config {
				b.Config[k] = expandVars(v, vars)
			}
		}
	}
}

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value, ok := vars[parts[1]]; ok && value != "" {
			return value
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.Paths.Root == "" {
		errs = append(errs, errors.New("paths.root is required"))
	}
	if c.Paths.Keys == "" {
		errs = append(errs, errors.New("paths.keys is required"))
	}
	if c.Paths.Heads == "" {
		errs = append(errs, errors.New("paths.heads is required"))
	}
	switch {
	case c.Store.CAS != nil:
		if err := c.Store.CAS.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("store.cas: %w", err))
		}
	case c.Store.CASFile != "":
	case c.Store.Backend == "":
		errs = append(errs, errors.New("store.backend is required"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := compliance.Parse(c.Chain.Compliance); err != nil {
		errs = append(errs, fmt.Errorf("chain.compliance: %w", err))
	}
	if _, err := c.DnaHash(); err != nil {
		errs = append(errs, err)
	}
	if _, err := bundle.ParseCompression(c.Bundle.Compression); err != nil {
		errs = append(errs, fmt.Errorf("bundle.compression: %w", err))
	}
	return errors.Join(errs...)
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("log.level: unknown level %q", s)
	}
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, _ := ParseLevel(c.Log.Level)
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// Mode returns the compliance mode for loading chains.
func (c *Config) Mode() compliance.ComplianceMode {
	m, _ := compliance.Parse(c.Chain.Compliance)
	return m
}

// DnaHash returns the configured DNA hash.
func (c *Config) DnaHash() (hashing.Hash, error) {
	if c.Chain.DnaHash != "" {
		h, err := hashing.Parse(hashing.TypeDna, c.Chain.DnaHash)
		if err != nil {
			return hashing.Hash{}, fmt.Errorf("chain.dna_hash: %w", err)
		}
		return h, nil
	}
	if c.Chain.Dna == "" {
		return hashing.Hash{}, errors.New("chain.dna or chain.dna_hash is required")
	}
	return hashing.Sum(hashing.TypeDna, []byte(c.Chain.Dna)), nil
}

// OpenStore opens the configured block store.
func (c *Config) OpenStore(usage casregistry.Usage) (storage.CAS, func() error, error) {
	if c.Store.CAS != nil {
		return c.Store.CAS.Open(usage, "")
	}
	if c.Store.CASFile != "" {
		cc, err := casconfig.LoadFile(c.Store.CASFile)
		if err != nil {
			return nil, nil, err
		}
		return cc.Open(usage, "")
	}
	if dir := filepath.Dir(c.Store.Options["sqlite-path"]); c.Store.Backend == "sqlite" && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
	}
	cas, closeFn, err := casregistry.OpenWithConfig(c.Store.Backend, usage, c.Store.Options)
	if err != nil {
		return nil, nil, err
	}
	if closeFn == nil {
		closeFn = func() error { return nil }
	}
	return cas, closeFn, nil
}
