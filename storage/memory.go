package storage

import (
	"sync"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/cidutil"
)

// MemCAS is an in-memory CAS. It is safe for concurrent use.
type MemCAS struct {
	mu      sync.RWMutex
	objects map[cid.Cid][]byte
}

var _ CAS = (*MemCAS)(nil)

func NewMemCAS() *MemCAS {
	return &MemCAS{objects: make(map[cid.Cid][]byte)}
}

func (m *MemCAS) Put(bytes []byte) (cid.Cid, error) {
	id, err := cidutil.BlockCID(bytes)
	if err != nil {
		return cid.Undef, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.objects[id]; ok {
		if string(existing) != string(bytes) {
			return cid.Undef, ErrImmutable
		}
		return id, nil
	}
	m.objects[id] = append([]byte(nil), bytes...)
	return id, nil
}

func (m *MemCAS) Get(id cid.Cid) ([]byte, error) {
	if !id.Defined() {
		return nil, ErrInvalidCID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (m *MemCAS) Has(id cid.Cid) bool {
	if !id.Defined() {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[id]
	return ok
}

// Len returns the number of stored objects.
func (m *MemCAS) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
