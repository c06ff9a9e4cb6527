package record

import (
	"fmt"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/hashed"
	"xdao.co/agentchain/integrity"
	"xdao.co/agentchain/keys"
)

type wireRecord struct {
	Action    codec.RawMessage `cbor:"1,keyasint"`
	Signature []byte           `cbor:"2,keyasint"`
	Status    Status           `cbor:"3,keyasint"`
	Entry     *entry.Entry     `cbor:"4,keyasint,omitempty"`
}

// Encode returns the canonical wire form of r.
func Encode(r Record) ([]byte, error) {
	ab, err := action.Encode(r.signed.Content())
	if err != nil {
		return nil, err
	}
	w := wireRecord{Action: ab, Signature: r.signed.Signature(), Status: r.entry.status}
	if r.entry.status == Present {
		w.Entry = r.entry.entry
	}
	return codec.Marshal(w)
}

// Decode parses the wire form. The action hash is recomputed from the action
// bytes, and the entry view must be consistent with the action; untrusted
// bytes never reach the panic in New.
func Decode(data []byte) (Record, error) {
	var w wireRecord
	if err := codec.Unmarshal(data, &w); err != nil {
		return Record{}, err
	}
	a, err := action.Decode(w.Action)
	if err != nil {
		return Record{}, err
	}
	ah, err := action.NewHashed(a)
	if err != nil {
		return Record{}, err
	}
	sa := hashed.WithPresigned(ah, keys.Signature(w.Signature))

	eh, typ, hasEntry := a.EntryRef()
	var re RecordEntry
	switch w.Status {
	case Present:
		if !hasEntry || w.Entry == nil {
			return Record{}, decodeErr("present entry on action %s without entry", a.Kind())
		}
		got, err := w.Entry.Hash()
		if err != nil {
			return Record{}, err
		}
		if got != eh {
			return Record{}, integrity.Chain(integrity.RuleEntryHash,
				fmt.Sprintf("entry hash %s does not match action entry hash %s", got, eh))
		}
		re = PresentEntry(w.Entry)
	case Hidden:
		if !hasEntry || typ.Visibility() != entry.Private {
			return Record{}, decodeErr("hidden entry on %s action", a.Kind())
		}
		re = HiddenEntry()
	case NotStored:
		if !hasEntry {
			return Record{}, decodeErr("not-stored entry on %s action", a.Kind())
		}
		re = NotStoredEntry()
	case NotApplicable:
		if hasEntry {
			return Record{}, decodeErr("entry marked not applicable on %s action", a.Kind())
		}
		re = NotApplicableEntry()
	default:
		return Record{}, decodeErr("unknown entry status %d", uint8(w.Status))
	}
	if w.Status != Present && w.Entry != nil {
		return Record{}, decodeErr("entry bytes attached with status %s", w.Status)
	}
	return Record{signed: sa, entry: re}, nil
}

func decodeErr(format string, args ...any) error {
	return integrity.New(integrity.KindSerialization, integrity.RuleDecode, "record: "+fmt.Sprintf(format, args...))
}
