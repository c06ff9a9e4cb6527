package dhtop

import (
	"errors"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/record"
)

var ErrEmptyRecord = errors.New("dhtop: record has no action")

// Derive returns the ops implied by r, in publish order:
//
//	Create                 StoreElement, StoreEntry, RegisterAgentActivity
//	Update                 StoreElement, RegisterUpdatedContent, RegisterUpdatedElement, RegisterAgentActivity
//	Delete                 RegisterDeletedBy, RegisterDeletedEntryAction, RegisterAgentActivity
//	CreateLink             RegisterAddLink, RegisterAgentActivity
//	DeleteLink             RegisterRemoveLink, RegisterAgentActivity
//	Dna, AgentValidationPkg,
//	InitZomesComplete,
//	OpenChain, CloseChain  StoreElement, RegisterAgentActivity
//
// RegisterAgentActivity is always last. Entry content is attached only when
// the record's entry is Present and the entry type is public; StoreEntry is
// omitted entirely when there is nothing to store.
//
// Derive is pure. It either returns the full set or an error and no ops.
func Derive(r record.Record) ([]Op, error) {
	sa := r.SignedAction()
	if sa.Hash().IsZero() {
		return nil, ErrEmptyRecord
	}
	d := &deriver{
		h:     header{Sig: sa.Signature(), Hash: sa.Hash()},
		entry: attachable(r),
	}
	if err := sa.Content().Accept(d); err != nil {
		return nil, err
	}
	return d.ops, nil
}

// attachable returns the entry that may travel with ops derived from r.
func attachable(r record.Record) *entry.Entry {
	e, ok := r.Entry().AsOption()
	if !ok {
		return nil
	}
	_, typ, hasEntry := r.Action().EntryRef()
	if !hasEntry || typ.Visibility() != entry.Public {
		return nil
	}
	return e
}

type deriver struct {
	h     header
	entry *entry.Entry
	ops   []Op
}

var _ action.Visitor = (*deriver)(nil)

func (d *deriver) add(ops ...Op) { d.ops = append(d.ops, ops...) }

func (d *deriver) hdr() header { return d.h.clone() }

func (d *deriver) storeElement(a action.Action) Op {
	return &StoreElement{header: d.hdr(), Act: a.Clone(), Ent: d.entry.Clone()}
}

func (d *deriver) activity(a action.Action) Op {
	return &RegisterAgentActivity{header: d.hdr(), Act: a.Clone()}
}

func (d *deriver) bookkeeping(a action.Action) error {
	d.add(d.storeElement(a), d.activity(a))
	return nil
}

func (d *deriver) VisitDna(a *action.Dna) error { return d.bookkeeping(a) }
func (d *deriver) VisitAgentValidationPkg(a *action.AgentValidationPkg) error {
	return d.bookkeeping(a)
}
func (d *deriver) VisitInitZomesComplete(a *action.InitZomesComplete) error {
	return d.bookkeeping(a)
}
func (d *deriver) VisitOpenChain(a *action.OpenChain) error   { return d.bookkeeping(a) }
func (d *deriver) VisitCloseChain(a *action.CloseChain) error { return d.bookkeeping(a) }

func (d *deriver) VisitCreate(a *action.Create) error {
	d.add(d.storeElement(a))
	if d.entry != nil {
		d.add(&StoreEntry{header: d.hdr(), Act: a.Clone().(action.NewEntryAction), Ent: d.entry.Clone()})
	}
	d.add(d.activity(a))
	return nil
}

func (d *deriver) VisitUpdate(a *action.Update) error {
	d.add(
		d.storeElement(a),
		&RegisterUpdatedContent{header: d.hdr(), Update: a.Clone().(*action.Update), Ent: d.entry.Clone()},
		&RegisterUpdatedElement{header: d.hdr(), Update: a.Clone().(*action.Update), Ent: d.entry.Clone()},
		d.activity(a),
	)
	return nil
}

func (d *deriver) VisitDelete(a *action.Delete) error {
	d.add(
		&RegisterDeletedBy{header: d.hdr(), Delete: a.Clone().(*action.Delete)},
		&RegisterDeletedEntryAction{header: d.hdr(), Delete: a.Clone().(*action.Delete)},
		d.activity(a),
	)
	return nil
}

func (d *deriver) VisitCreateLink(a *action.CreateLink) error {
	d.add(&RegisterAddLink{header: d.hdr(), CreateLink: a.Clone().(*action.CreateLink)}, d.activity(a))
	return nil
}

func (d *deriver) VisitDeleteLink(a *action.DeleteLink) error {
	d.add(&RegisterRemoveLink{header: d.hdr(), DeleteLink: a.Clone().(*action.DeleteLink)}, d.activity(a))
	return nil
}
