package keys

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"xdao.co/agentchain/hashing"
)

// FileStore keeps Ed25519 seeds on the local filesystem.
//
// EXPERIMENTAL: this storage surface is not part of the stable chain API.
//
// Layout:
//
//	<dir>/<identifier>/root.key
//	<dir>/<identifier>/agents/<name>.key
//
// Agent seeds are derived from the root seed with DeriveAgentSeed.
type FileStore struct {
	Directory string
}

type KeyEntry struct {
	Identifier string
	Agents     []string
}

func GetDefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".agentchain", "keys"), nil
}

func OpenFileStore(directory string) (*FileStore, error) {
	if directory == "" {
		var err error
		directory, err = GetDefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &FileStore{Directory: directory}, nil
}

func (fs *FileStore) rootKeyPath(identifier string) string {
	return filepath.Join(fs.Directory, identifier, "root.key")
}

func (fs *FileStore) agentKeyPath(identifier, name string) string {
	return filepath.Join(fs.Directory, identifier, "agents", name+".key")
}

func CheckKeyName(identifier string) error {
	if identifier == "" {
		return errors.New("identifier cannot be empty")
	}
	for _, char := range identifier {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in identifier", char)
	}
	return nil
}

func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) != ed25519.SeedSize {
		return nil, fmt.Errorf("expected seed length of %d bytes, got %d", ed25519.SeedSize, len(data))
	}
	return data, nil
}

func saveSeed(filePath string, seed []byte, overwrite bool) error {
	if len(seed) != ed25519.SeedSize {
		return fmt.Errorf("expected seed length of %d bytes", ed25519.SeedSize)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(filePath, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

func loadSeed(filePath string) ([]byte, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return ParseSeedHex(string(data))
}

func agentIDForSeed(seed []byte) hashing.Hash {
	pub := ed25519.NewKeyFromSeed(seed).Public().(ed25519.PublicKey)
	return hashing.AgentFromKey(pub)
}

// InitializeRootKey writes a root seed and returns the agent id it signs as.
func (fs *FileStore) InitializeRootKey(identifier string, seed []byte, overwrite bool) (agent hashing.Hash, filePath string, err error) {
	if err := CheckKeyName(identifier); err != nil {
		return hashing.Hash{}, "", err
	}
	filePath = fs.rootKeyPath(identifier)
	if err := saveSeed(filePath, seed, overwrite); err != nil {
		return hashing.Hash{}, "", err
	}
	return agentIDForSeed(seed), filePath, nil
}

// DeriveAgent derives and stores a named agent seed under a root key.
func (fs *FileStore) DeriveAgent(from, name string, overwrite bool) (agent hashing.Hash, filePath string, err error) {
	if err := CheckKeyName(from); err != nil {
		return hashing.Hash{}, "", err
	}
	rootSeed, err := loadSeed(fs.rootKeyPath(from))
	if err != nil {
		return hashing.Hash{}, "", err
	}
	seed, err := DeriveAgentSeed(rootSeed, name)
	if err != nil {
		return hashing.Hash{}, "", err
	}
	filePath = fs.agentKeyPath(from, name)
	if err := saveSeed(filePath, seed, overwrite); err != nil {
		return hashing.Hash{}, "", err
	}
	return agentIDForSeed(seed), filePath, nil
}

// LoadSeed resolves a seed from, in order: a hex string, a key file, or a
// stored identifier with optional agent name.
func (fs *FileStore) LoadSeed(seedHex, identifier, name, keyFile string) ([]byte, error) {
	if seedHex != "" {
		return ParseSeedHex(seedHex)
	}
	if keyFile != "" {
		return loadSeed(keyFile)
	}
	if identifier != "" {
		if err := CheckKeyName(identifier); err != nil {
			return nil, err
		}
		if name == "" {
			return loadSeed(fs.rootKeyPath(identifier))
		}
		if err := CheckKeyName(name); err != nil {
			return nil, err
		}
		return loadSeed(fs.agentKeyPath(identifier, name))
	}
	return nil, errors.New("no signer provided")
}

// LoadSigner is LoadSeed followed by NewEd25519Signer.
func (fs *FileStore) LoadSigner(identifier, name string) (*Ed25519Signer, error) {
	seed, err := fs.LoadSeed("", identifier, name, "")
	if err != nil {
		return nil, err
	}
	return NewEd25519Signer(seed)
}

func (fs *FileStore) ListKeys() ([]KeyEntry, error) {
	entries, err := os.ReadDir(fs.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var identifiers []string
	for _, entry := range entries {
		if entry.IsDir() {
			identifiers = append(identifiers, entry.Name())
		}
	}
	sort.Strings(identifiers)

	var result []KeyEntry
	for _, identifier := range identifiers {
		agentEntries, rerr := os.ReadDir(filepath.Join(fs.Directory, identifier, "agents"))
		var agents []string
		if rerr == nil {
			for _, e := range agentEntries {
				if !e.IsDir() && strings.HasSuffix(e.Name(), ".key") {
					agents = append(agents, strings.TrimSuffix(e.Name(), ".key"))
				}
			}
			sort.Strings(agents)
		}
		result = append(result, KeyEntry{Identifier: identifier, Agents: agents})
	}
	return result, nil
}
