// Package entry defines the payloads that entry-creating actions reference.
package entry

import (
	"fmt"

	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/hashing"
)

// Visibility controls whether an entry may leave its author's chain.
type Visibility uint8

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// Kind distinguishes system entries from application payloads.
type Kind uint8

const (
	KindApp Kind = iota + 1
	KindAgentKey
	KindCapClaim
	KindCapGrant
)

func (k Kind) String() string {
	switch k {
	case KindApp:
		return "app"
	case KindAgentKey:
		return "agent-key"
	case KindCapClaim:
		return "cap-claim"
	case KindCapGrant:
		return "cap-grant"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Type is the entry type recorded on an action. It decides visibility, so a
// private entry is known to be private even when its bytes are absent.
type Type struct {
	Kind          Kind       `cbor:"1,keyasint"`
	AppID         uint8      `cbor:"2,keyasint,omitempty"`
	ZomeID        uint8      `cbor:"3,keyasint,omitempty"`
	AppVisibility Visibility `cbor:"4,keyasint,omitempty"`
}

// AppType returns an application entry type.
func AppType(zomeID, appID uint8, v Visibility) Type {
	return Type{Kind: KindApp, AppID: appID, ZomeID: zomeID, AppVisibility: v}
}

func AgentKeyType() Type { return Type{Kind: KindAgentKey} }
func CapClaimType() Type { return Type{Kind: KindCapClaim} }
func CapGrantType() Type { return Type{Kind: KindCapGrant} }

// Visibility is fixed for system kinds: agent keys are public, capability
// claims and grants are private.
func (t Type) Visibility() Visibility {
	switch t.Kind {
	case KindApp:
		return t.AppVisibility
	case KindAgentKey:
		return Public
	default:
		return Private
	}
}

// Entry is opaque application bytes or a system payload.
type Entry struct {
	Kind    Kind   `cbor:"1,keyasint"`
	Payload []byte `cbor:"2,keyasint"`
}

func App(payload []byte) *Entry {
	return &Entry{Kind: KindApp, Payload: append([]byte(nil), payload...)}
}

// AgentKey is the entry committed at genesis holding the agent's public key.
func AgentKey(agent hashing.Hash) *Entry {
	b, _ := agent.MarshalBinary()
	return &Entry{Kind: KindAgentKey, Payload: b}
}

func (e *Entry) HashType() hashing.Type { return hashing.TypeEntry }

func (e *Entry) Canonical() ([]byte, error) { return codec.Marshal(e) }

func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	return &Entry{Kind: e.Kind, Payload: append([]byte(nil), e.Payload...)}
}

// Hash returns the entry hash.
func (e *Entry) Hash() (hashing.Hash, error) {
	b, err := e.Canonical()
	if err != nil {
		return hashing.Hash{}, err
	}
	return hashing.Sum(hashing.TypeEntry, b), nil
}

// Equal compares kind and payload.
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	return e.Kind == o.Kind && string(e.Payload) == string(o.Payload)
}

// AppBytes returns the payload of an application entry.
func (e *Entry) AppBytes() ([]byte, bool) {
	if e == nil || e.Kind != KindApp {
		return nil, false
	}
	return append([]byte(nil), e.Payload...), true
}

// AgentKeyHash returns the agent carried by an agent-key entry.
func (e *Entry) AgentKeyHash() (hashing.Hash, bool) {
	if e == nil || e.Kind != KindAgentKey {
		return hashing.Hash{}, false
	}
	var h hashing.Hash
	if err := h.UnmarshalBinary(e.Payload); err != nil || h.Type() != hashing.TypeAgent {
		return hashing.Hash{}, false
	}
	return h, true
}

// Decode parses canonical entry bytes.
func Decode(data []byte) (*Entry, error) {
	var e Entry
	if err := codec.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
