package action

import (
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashing"
)

// Dna is the genesis action. It is always at sequence 0 and has no
// predecessor.
type Dna struct {
	Author    hashing.Hash `cbor:"1,keyasint"`
	Timestamp Timestamp    `cbor:"2,keyasint"`
	Hash      hashing.Hash `cbor:"5,keyasint"`
}

func (a *Dna) Kind() Kind                                  { return KindDna }
func (a *Dna) AuthorID() hashing.Hash                      { return a.Author }
func (a *Dna) Time() Timestamp                             { return a.Timestamp }
func (a *Dna) Seq() uint32                                 { return 0 }
func (a *Dna) Prev() (hashing.Hash, bool)                  { return hashing.Hash{}, false }
func (a *Dna) EntryRef() (hashing.Hash, entry.Type, bool) { return hashing.Hash{}, entry.Type{}, false }
func (a *Dna) SeqMut() *uint32                             { return nil }
func (a *Dna) Accept(v Visitor) error                      { return v.VisitDna(a) }
func (a *Dna) HashType() hashing.Type                      { return hashing.TypeAction }
func (a *Dna) Canonical() ([]byte, error)                  { return canonical(a) }
func (a *Dna) Clone() Action                               { c := *a; return &c }
func (a *Dna) isAction()                                   {}

// AgentValidationPkg carries the membrane proof presented at genesis.
type AgentValidationPkg struct {
	Common
	noEntry
	MembraneProof []byte `cbor:"5,keyasint,omitempty"`
}

func (a *AgentValidationPkg) Kind() Kind                 { return KindAgentValidationPkg }
func (a *AgentValidationPkg) Accept(v Visitor) error     { return v.VisitAgentValidationPkg(a) }
func (a *AgentValidationPkg) Canonical() ([]byte, error) { return canonical(a) }
func (a *AgentValidationPkg) Clone() Action {
	c := *a
	c.MembraneProof = cloneBytes(a.MembraneProof)
	return &c
}

// InitZomesComplete marks the end of application initialisation.
type InitZomesComplete struct {
	Common
	noEntry
}

func (a *InitZomesComplete) Kind() Kind                 { return KindInitZomesComplete }
func (a *InitZomesComplete) Accept(v Visitor) error     { return v.VisitInitZomesComplete(a) }
func (a *InitZomesComplete) Canonical() ([]byte, error) { return canonical(a) }
func (a *InitZomesComplete) Clone() Action              { c := *a; return &c }

// OpenChain continues a chain migrated from a previous DNA.
type OpenChain struct {
	Common
	noEntry
	PrevDnaHash hashing.Hash `cbor:"5,keyasint"`
}

func (a *OpenChain) Kind() Kind                 { return KindOpenChain }
func (a *OpenChain) Accept(v Visitor) error     { return v.VisitOpenChain(a) }
func (a *OpenChain) Canonical() ([]byte, error) { return canonical(a) }
func (a *OpenChain) Clone() Action              { c := *a; return &c }

// CloseChain ends a chain that migrates to a new DNA.
type CloseChain struct {
	Common
	noEntry
	NewDnaHash hashing.Hash `cbor:"5,keyasint"`
}

func (a *CloseChain) Kind() Kind                 { return KindCloseChain }
func (a *CloseChain) Accept(v Visitor) error     { return v.VisitCloseChain(a) }
func (a *CloseChain) Canonical() ([]byte, error) { return canonical(a) }
func (a *CloseChain) Clone() Action              { c := *a; return &c }

// Create commits a new entry.
type Create struct {
	Common
	EntryType entry.Type   `cbor:"5,keyasint"`
	EntryHash hashing.Hash `cbor:"6,keyasint"`
}

func (a *Create) Kind() Kind { return KindCreate }
func (a *Create) EntryRef() (hashing.Hash, entry.Type, bool) {
	return a.EntryHash, a.EntryType, true
}
func (a *Create) NewEntry() (hashing.Hash, entry.Type) { return a.EntryHash, a.EntryType }
func (a *Create) Accept(v Visitor) error               { return v.VisitCreate(a) }
func (a *Create) Canonical() ([]byte, error)           { return canonical(a) }
func (a *Create) Clone() Action                        { c := *a; return &c }
func (a *Create) isNewEntryAction()                    {}

// Update commits a new entry that replaces an earlier one.
type Update struct {
	Common
	OriginalActionAddress hashing.Hash `cbor:"5,keyasint"`
	OriginalEntryAddress  hashing.Hash `cbor:"6,keyasint"`
	EntryType             entry.Type   `cbor:"7,keyasint"`
	EntryHash             hashing.Hash `cbor:"8,keyasint"`
}

func (a *Update) Kind() Kind { return KindUpdate }
func (a *Update) EntryRef() (hashing.Hash, entry.Type, bool) {
	return a.EntryHash, a.EntryType, true
}
func (a *Update) NewEntry() (hashing.Hash, entry.Type) { return a.EntryHash, a.EntryType }
func (a *Update) Accept(v Visitor) error               { return v.VisitUpdate(a) }
func (a *Update) Canonical() ([]byte, error)           { return canonical(a) }
func (a *Update) Clone() Action                        { c := *a; return &c }
func (a *Update) isNewEntryAction()                    {}

// Delete marks an earlier entry-creating action as deleted.
type Delete struct {
	Common
	noEntry
	DeletesAddress      hashing.Hash `cbor:"5,keyasint"`
	DeletesEntryAddress hashing.Hash `cbor:"6,keyasint"`
}

func (a *Delete) Kind() Kind                 { return KindDelete }
func (a *Delete) Accept(v Visitor) error     { return v.VisitDelete(a) }
func (a *Delete) Canonical() ([]byte, error) { return canonical(a) }
func (a *Delete) Clone() Action              { c := *a; return &c }

// CreateLink adds a directed, tagged link from a base to a target.
type CreateLink struct {
	Common
	noEntry
	BaseAddress   hashing.Hash `cbor:"5,keyasint"`
	TargetAddress hashing.Hash `cbor:"6,keyasint"`
	ZomeID        uint8        `cbor:"7,keyasint"`
	LinkType      uint8        `cbor:"8,keyasint"`
	Tag           []byte       `cbor:"9,keyasint,omitempty"`
}

func (a *CreateLink) Kind() Kind                 { return KindCreateLink }
func (a *CreateLink) Accept(v Visitor) error     { return v.VisitCreateLink(a) }
func (a *CreateLink) Canonical() ([]byte, error) { return canonical(a) }
func (a *CreateLink) Clone() Action {
	c := *a
	c.Tag = cloneBytes(a.Tag)
	return &c
}

// DeleteLink removes a link added by an earlier CreateLink.
type DeleteLink struct {
	Common
	noEntry
	BaseAddress    hashing.Hash `cbor:"5,keyasint"`
	LinkAddAddress hashing.Hash `cbor:"6,keyasint"`
}

func (a *DeleteLink) Kind() Kind                 { return KindDeleteLink }
func (a *DeleteLink) Accept(v Visitor) error     { return v.VisitDeleteLink(a) }
func (a *DeleteLink) Canonical() ([]byte, error) { return canonical(a) }
func (a *DeleteLink) Clone() Action              { c := *a; return &c }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

var (
	_ Action         = (*Dna)(nil)
	_ Action         = (*AgentValidationPkg)(nil)
	_ Action         = (*InitZomesComplete)(nil)
	_ Action         = (*OpenChain)(nil)
	_ Action         = (*CloseChain)(nil)
	_ NewEntryAction = (*Create)(nil)
	_ NewEntryAction = (*Update)(nil)
	_ Action         = (*Delete)(nil)
	_ Action         = (*CreateLink)(nil)
	_ Action         = (*DeleteLink)(nil)
)
