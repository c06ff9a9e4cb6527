// Package dhtop derives the DHT operations implied by a chain record.
//
// Each op is one independently publishable facet of an action, routed to
// the peers responsible for its basis hash. Ops are never mutated after
// derivation.
package dhtop

import (
	"fmt"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
)

// Type tags an op variant.
type Type uint8

const (
	TypeStoreElement Type = iota + 1
	TypeStoreEntry
	TypeRegisterAgentActivity
	TypeRegisterUpdatedContent
	TypeRegisterUpdatedElement
	TypeRegisterDeletedBy
	TypeRegisterDeletedEntryAction
	TypeRegisterAddLink
	TypeRegisterRemoveLink
)

var typeNames = map[Type]string{
	TypeStoreElement:               "StoreElement",
	TypeStoreEntry:                 "StoreEntry",
	TypeRegisterAgentActivity:      "RegisterAgentActivity",
	TypeRegisterUpdatedContent:     "RegisterUpdatedContent",
	TypeRegisterUpdatedElement:     "RegisterUpdatedElement",
	TypeRegisterDeletedBy:          "RegisterDeletedBy",
	TypeRegisterDeletedEntryAction: "RegisterDeletedEntryAction",
	TypeRegisterAddLink:            "RegisterAddLink",
	TypeRegisterRemoveLink:         "RegisterRemoveLink",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Op is a DHT operation.
type Op interface {
	Type() Type
	// Signature is the author's signature over ActionHash.
	Signature() keys.Signature
	ActionHash() hashing.Hash
	// Action returns a copy of the wrapped action.
	Action() action.Action
	// Entry returns a copy of the attached entry, if any.
	Entry() (*entry.Entry, bool)
	// Basis is the routing address of the op.
	Basis() hashing.Hash
	// SeqMut exposes the wrapped action's sequence field, or nil when the
	// action has none.
	SeqMut() *uint32
	Clone() Op

	isOp()
}

// header is shared by every variant.
type header struct {
	Sig  keys.Signature
	Hash hashing.Hash
}

func (h *header) Signature() keys.Signature { return h.Sig.Clone() }
func (h *header) ActionHash() hashing.Hash  { return h.Hash }
func (h *header) isOp()                     {}

func (h header) clone() header { return header{Sig: h.Sig.Clone(), Hash: h.Hash} }

type noEntry struct{}

func (noEntry) Entry() (*entry.Entry, bool) { return nil, false }

func optEntry(e *entry.Entry) (*entry.Entry, bool) {
	if e == nil {
		return nil, false
	}
	return e.Clone(), true
}

// StoreElement asks the action's authorities to hold the whole record.
type StoreElement struct {
	header
	Act action.Action
	Ent *entry.Entry
}

func (o *StoreElement) Type() Type                  { return TypeStoreElement }
func (o *StoreElement) Action() action.Action       { return o.Act.Clone() }
func (o *StoreElement) Entry() (*entry.Entry, bool) { return optEntry(o.Ent) }
func (o *StoreElement) Basis() hashing.Hash         { return o.Hash }
func (o *StoreElement) SeqMut() *uint32             { return o.Act.SeqMut() }
func (o *StoreElement) Clone() Op {
	return &StoreElement{header: o.header.clone(), Act: o.Act.Clone(), Ent: o.Ent.Clone()}
}

// StoreEntry asks the entry's authorities to hold the entry.
type StoreEntry struct {
	header
	Act action.NewEntryAction
	Ent *entry.Entry
}

func (o *StoreEntry) Type() Type                  { return TypeStoreEntry }
func (o *StoreEntry) Action() action.Action       { return o.Act.Clone() }
func (o *StoreEntry) Entry() (*entry.Entry, bool) { return optEntry(o.Ent) }
func (o *StoreEntry) Basis() hashing.Hash {
	h, _ := o.Act.NewEntry()
	return h
}
func (o *StoreEntry) SeqMut() *uint32 { return o.Act.SeqMut() }
func (o *StoreEntry) Clone() Op {
	return &StoreEntry{header: o.header.clone(), Act: o.Act.Clone().(action.NewEntryAction), Ent: o.Ent.Clone()}
}

// RegisterAgentActivity lets the author's authorities audit the full chain.
type RegisterAgentActivity struct {
	header
	noEntry
	Act action.Action
}

func (o *RegisterAgentActivity) Type() Type            { return TypeRegisterAgentActivity }
func (o *RegisterAgentActivity) Action() action.Action { return o.Act.Clone() }
func (o *RegisterAgentActivity) Basis() hashing.Hash   { return o.Act.AuthorID() }
func (o *RegisterAgentActivity) SeqMut() *uint32       { return o.Act.SeqMut() }
func (o *RegisterAgentActivity) Clone() Op {
	return &RegisterAgentActivity{header: o.header.clone(), Act: o.Act.Clone()}
}

// RegisterUpdatedContent tells the original entry's authorities about an update.
type RegisterUpdatedContent struct {
	header
	Update *action.Update
	Ent    *entry.Entry
}

func (o *RegisterUpdatedContent) Type() Type                  { return TypeRegisterUpdatedContent }
func (o *RegisterUpdatedContent) Action() action.Action       { return o.Update.Clone() }
func (o *RegisterUpdatedContent) Entry() (*entry.Entry, bool) { return optEntry(o.Ent) }
func (o *RegisterUpdatedContent) Basis() hashing.Hash         { return o.Update.OriginalEntryAddress }
func (o *RegisterUpdatedContent) SeqMut() *uint32             { return &o.Update.ActionSeq }
func (o *RegisterUpdatedContent) Clone() Op {
	return &RegisterUpdatedContent{header: o.header.clone(), Update: o.Update.Clone().(*action.Update), Ent: o.Ent.Clone()}
}

// RegisterUpdatedElement tells the original action's authorities about an update.
type RegisterUpdatedElement struct {
	header
	Update *action.Update
	Ent    *entry.Entry
}

func (o *RegisterUpdatedElement) Type() Type                  { return TypeRegisterUpdatedElement }
func (o *RegisterUpdatedElement) Action() action.Action       { return o.Update.Clone() }
func (o *RegisterUpdatedElement) Entry() (*entry.Entry, bool) { return optEntry(o.Ent) }
func (o *RegisterUpdatedElement) Basis() hashing.Hash         { return o.Update.OriginalActionAddress }
func (o *RegisterUpdatedElement) SeqMut() *uint32             { return &o.Update.ActionSeq }
func (o *RegisterUpdatedElement) Clone() Op {
	return &RegisterUpdatedElement{header: o.header.clone(), Update: o.Update.Clone().(*action.Update), Ent: o.Ent.Clone()}
}

// RegisterDeletedBy tells the deleted action's authorities about a delete.
type RegisterDeletedBy struct {
	header
	noEntry
	Delete *action.Delete
}

func (o *RegisterDeletedBy) Type() Type            { return TypeRegisterDeletedBy }
func (o *RegisterDeletedBy) Action() action.Action { return o.Delete.Clone() }
func (o *RegisterDeletedBy) Basis() hashing.Hash   { return o.Delete.DeletesAddress }
func (o *RegisterDeletedBy) SeqMut() *uint32       { return &o.Delete.ActionSeq }
func (o *RegisterDeletedBy) Clone() Op {
	return &RegisterDeletedBy{header: o.header.clone(), Delete: o.Delete.Clone().(*action.Delete)}
}

// RegisterDeletedEntryAction tells the deleted entry's authorities about a delete.
type RegisterDeletedEntryAction struct {
	header
	noEntry
	Delete *action.Delete
}

func (o *RegisterDeletedEntryAction) Type() Type            { return TypeRegisterDeletedEntryAction }
func (o *RegisterDeletedEntryAction) Action() action.Action { return o.Delete.Clone() }
func (o *RegisterDeletedEntryAction) Basis() hashing.Hash   { return o.Delete.DeletesEntryAddress }
func (o *RegisterDeletedEntryAction) SeqMut() *uint32       { return &o.Delete.ActionSeq }
func (o *RegisterDeletedEntryAction) Clone() Op {
	return &RegisterDeletedEntryAction{header: o.header.clone(), Delete: o.Delete.Clone().(*action.Delete)}
}

// RegisterAddLink tells the base's authorities about a new link.
type RegisterAddLink struct {
	header
	noEntry
	CreateLink *action.CreateLink
}

func (o *RegisterAddLink) Type() Type            { return TypeRegisterAddLink }
func (o *RegisterAddLink) Action() action.Action { return o.CreateLink.Clone() }
func (o *RegisterAddLink) Basis() hashing.Hash   { return o.CreateLink.BaseAddress }
func (o *RegisterAddLink) SeqMut() *uint32       { return &o.CreateLink.ActionSeq }
func (o *RegisterAddLink) Clone() Op {
	return &RegisterAddLink{header: o.header.clone(), CreateLink: o.CreateLink.Clone().(*action.CreateLink)}
}

// RegisterRemoveLink tells the base's authorities a link was removed.
type RegisterRemoveLink struct {
	header
	noEntry
	DeleteLink *action.DeleteLink
}

func (o *RegisterRemoveLink) Type() Type            { return TypeRegisterRemoveLink }
func (o *RegisterRemoveLink) Action() action.Action { return o.DeleteLink.Clone() }
func (o *RegisterRemoveLink) Basis() hashing.Hash   { return o.DeleteLink.BaseAddress }
func (o *RegisterRemoveLink) SeqMut() *uint32       { return &o.DeleteLink.ActionSeq }
func (o *RegisterRemoveLink) Clone() Op {
	return &RegisterRemoveLink{header: o.header.clone(), DeleteLink: o.DeleteLink.Clone().(*action.DeleteLink)}
}

var (
	_ Op = (*StoreElement)(nil)
	_ Op = (*StoreEntry)(nil)
	_ Op = (*RegisterAgentActivity)(nil)
	_ Op = (*RegisterUpdatedContent)(nil)
	_ Op = (*RegisterUpdatedElement)(nil)
	_ Op = (*RegisterDeletedBy)(nil)
	_ Op = (*RegisterDeletedEntryAction)(nil)
	_ Op = (*RegisterAddLink)(nil)
	_ Op = (*RegisterRemoveLink)(nil)
)
