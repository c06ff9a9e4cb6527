package keys

import (
	"errors"
	"fmt"
	"sync"

	"xdao.co/agentchain/hashing"
)

var ErrUnknownAgent = errors.New("keys: unknown agent")

// Keystore maps agent ids to signers. It is the explicit context object
// passed to chains and the conductor; there is no process-wide keystore.
// Safe for concurrent use.
type Keystore struct {
	mu      sync.RWMutex
	signers map[hashing.Hash]Signer
}

func NewKeystore(signers ...Signer) *Keystore {
	ks := &Keystore{signers: make(map[hashing.Hash]Signer, len(signers))}
	for _, s := range signers {
		ks.Add(s)
	}
	return ks
}

// Add registers s and returns its agent id.
func (ks *Keystore) Add(s Signer) hashing.Hash {
	id := s.AgentID()
	ks.mu.Lock()
	ks.signers[id] = s
	ks.mu.Unlock()
	return id
}

func (ks *Keystore) Signer(agent hashing.Hash) (Signer, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	s, ok := ks.signers[agent]
	return s, ok
}

// Sign signs message as agent.
func (ks *Keystore) Sign(agent hashing.Hash, message []byte) (Signature, error) {
	s, ok := ks.Signer(agent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agent)
	}
	return s.Sign(message)
}

// Verify checks a signature by agent. Registered agents verify with their
// signer; unregistered agents fall back to the Ed25519 key in the agent hash.
func (ks *Keystore) Verify(agent hashing.Hash, message []byte, sig Signature) error {
	if s, ok := ks.Signer(agent); ok {
		if !s.Verify(message, sig) {
			return ErrBadSignature
		}
		return nil
	}
	return VerifyAgent(agent, message, sig)
}
