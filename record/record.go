// Package record pairs a signed action with the view of its entry.
//
// The entry view is decided once, at construction, from the action's entry
// type and whether an entry was supplied. Privatized is the only
// transformation and it can only remove data.
package record

import (
	"xdao.co/agentchain/action"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/integrity"
	"xdao.co/agentchain/keys"
)

// Record is a signed action plus its entry view.
type Record struct {
	signed action.SignedActionHashed
	entry  RecordEntry
}

// New builds a record. Supplying an entry for an action that references
// none is a caller bug and panics.
func New(sa action.SignedActionHashed, e *entry.Entry) Record {
	_, typ, hasEntry := sa.Content().EntryRef()
	var re RecordEntry
	switch {
	case e != nil && hasEntry:
		re = PresentEntry(e)
	case e != nil:
		integrity.Invariant(integrity.RuleEntryPresent, "entry supplied for an action that references no entry")
	case !hasEntry:
		re = NotApplicableEntry()
	case typ.Visibility() == entry.Private:
		re = HiddenEntry()
	default:
		re = NotStoredEntry()
	}
	return Record{signed: sa, entry: re}
}

// Privatized returns r with any Present private entry replaced by Hidden.
// Applying it more than once has no further effect.
func (r Record) Privatized() Record {
	if _, typ, ok := r.Action().EntryRef(); ok && typ.Visibility() == entry.Private && r.entry.status == Present {
		return Record{signed: r.signed, entry: HiddenEntry()}
	}
	return r
}

// IntoInner splits r into its parts.
func (r Record) IntoInner() (action.SignedActionHashed, RecordEntry) { return r.signed, r.entry }

func (r Record) SignedAction() action.SignedActionHashed { return r.signed }

func (r Record) Signature() keys.Signature { return r.signed.Signature() }

func (r Record) ActionAddress() hashing.Hash { return r.signed.Hash() }

// Action returns a copy of the action.
func (r Record) Action() action.Action { return r.signed.Content() }

func (r Record) ActionHashed() action.ActionHashed { return r.signed.Hashed() }

func (r Record) Entry() RecordEntry { return r.entry }

// Equal compares signed action identity and entry view.
func (r Record) Equal(o Record) bool {
	return r.signed.Equal(o.signed) && r.entry.Equal(o.entry)
}

// CreateLink returns the action when r records a CreateLink.
func (r Record) CreateLink() (*action.CreateLink, bool) {
	a, ok := r.Action().(*action.CreateLink)
	return a, ok
}

// DeleteLink returns the action when r records a DeleteLink.
func (r Record) DeleteLink() (*action.DeleteLink, bool) {
	a, ok := r.Action().(*action.DeleteLink)
	return a, ok
}
