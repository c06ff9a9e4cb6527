// Package action defines the closed set of actions an agent appends to its
// source chain.
//
// Every variant is a pointer type implementing Action. Code that must handle
// every kind goes through Accept with a Visitor, so adding a variant breaks
// the build until every visitor handles it.
package action

import (
	"fmt"
	"time"

	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
)

// Kind tags an action variant.
type Kind uint8

const (
	KindDna Kind = iota + 1
	KindAgentValidationPkg
	KindInitZomesComplete
	KindOpenChain
	KindCloseChain
	KindCreate
	KindUpdate
	KindDelete
	KindCreateLink
	KindDeleteLink
)

var kindNames = map[Kind]string{
	KindDna:                "Dna",
	KindAgentValidationPkg: "AgentValidationPkg",
	KindInitZomesComplete:  "InitZomesComplete",
	KindOpenChain:          "OpenChain",
	KindCloseChain:         "CloseChain",
	KindCreate:             "Create",
	KindUpdate:             "Update",
	KindDelete:             "Delete",
	KindCreateLink:         "CreateLink",
	KindDeleteLink:         "DeleteLink",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Timestamp is microseconds since the Unix epoch.
type Timestamp int64

func TimestampOf(t time.Time) Timestamp { return Timestamp(t.UnixMicro()) }

func (t Timestamp) Time() time.Time { return time.UnixMicro(int64(t)).UTC() }

func (t Timestamp) String() string { return t.Time().Format(time.RFC3339Nano) }

// Action is one entry in an agent's append-only chain.
type Action interface {
	Kind() Kind
	AuthorID() hashing.Hash
	Time() Timestamp
	// Seq is the position on the chain. The genesis Dna action is 0.
	Seq() uint32
	// Prev is the hash of the preceding action; false only for Dna.
	Prev() (hashing.Hash, bool)
	// EntryRef is the referenced entry for entry-creating actions.
	EntryRef() (hashing.Hash, entry.Type, bool)
	// SeqMut exposes the sequence field for fixture construction and
	// fuzzing. It is nil for Dna, which carries no sequence field.
	SeqMut() *uint32
	Accept(v Visitor) error

	HashType() hashing.Type
	Canonical() ([]byte, error)
	Clone() Action

	isAction()
}

// Common holds the fields every non-genesis action carries.
type Common struct {
	Author     hashing.Hash `cbor:"1,keyasint"`
	Timestamp  Timestamp    `cbor:"2,keyasint"`
	ActionSeq  uint32       `cbor:"3,keyasint"`
	PrevAction hashing.Hash `cbor:"4,keyasint"`
}

func (c *Common) AuthorID() hashing.Hash     { return c.Author }
func (c *Common) Time() Timestamp            { return c.Timestamp }
func (c *Common) Seq() uint32                { return c.ActionSeq }
func (c *Common) Prev() (hashing.Hash, bool) { return c.PrevAction, true }
func (c *Common) SeqMut() *uint32            { return &c.ActionSeq }

func (c *Common) HashType() hashing.Type { return hashing.TypeAction }

func (c *Common) isAction() {}

// noEntry is embedded by variants that reference no entry.
type noEntry struct{}

func (noEntry) EntryRef() (hashing.Hash, entry.Type, bool) { return hashing.Hash{}, entry.Type{}, false }

// NewEntryAction is an action that creates an entry: Create or Update.
type NewEntryAction interface {
	Action
	NewEntry() (hashing.Hash, entry.Type)
	isNewEntryAction()
}

// IsBookkeeping reports whether k only manages the chain itself.
func IsBookkeeping(k Kind) bool {
	switch k {
	case KindDna, KindAgentValidationPkg, KindInitZomesComplete, KindOpenChain, KindCloseChain:
		return true
	}
	return false
}
