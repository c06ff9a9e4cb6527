package dhtop

import (
	"fmt"

	"xdao.co/agentchain/action"
	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/entry"
	"xdao.co/agentchain/integrity"
	"xdao.co/agentchain/keys"
)

type wireOp struct {
	Type      Type             `cbor:"1,keyasint"`
	Signature []byte           `cbor:"2,keyasint"`
	Action    codec.RawMessage `cbor:"3,keyasint"`
	Entry     *entry.Entry     `cbor:"4,keyasint,omitempty"`
}

// Encode returns the wire form of op. The full action is always carried so
// the receiver can recompute the action hash.
func Encode(op Op) ([]byte, error) {
	ab, err := action.Encode(op.Action())
	if err != nil {
		return nil, err
	}
	w := wireOp{Type: op.Type(), Signature: op.Signature(), Action: ab}
	if e, ok := op.Entry(); ok {
		w.Entry = e
	}
	return codec.Marshal(w)
}

// Decode parses the wire form of an op, recomputing its action hash. It
// rejects ops whose action kind does not match the op type and ops carrying
// entry content they could never have been derived with.
func Decode(data []byte) (Op, error) {
	var w wireOp
	if err := codec.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	a, err := action.Decode(w.Action)
	if err != nil {
		return nil, err
	}
	ah, err := action.NewHashed(a)
	if err != nil {
		return nil, err
	}
	h := header{Sig: keys.Signature(w.Signature), Hash: ah.Hash()}

	if w.Entry != nil {
		if err := checkEntry(w.Type, a, w.Entry); err != nil {
			return nil, err
		}
	}

	switch w.Type {
	case TypeStoreElement:
		return &StoreElement{header: h, Act: a, Ent: w.Entry}, nil
	case TypeStoreEntry:
		ne, ok := a.(action.NewEntryAction)
		if !ok || w.Entry == nil {
			return nil, mismatch(w.Type, a)
		}
		return &StoreEntry{header: h, Act: ne, Ent: w.Entry}, nil
	case TypeRegisterAgentActivity:
		return &RegisterAgentActivity{header: h, Act: a}, nil
	case TypeRegisterUpdatedContent:
		u, ok := a.(*action.Update)
		if !ok {
			return nil, mismatch(w.Type, a)
		}
		return &RegisterUpdatedContent{header: h, Update: u, Ent: w.Entry}, nil
	case TypeRegisterUpdatedElement:
		u, ok := a.(*action.Update)
		if !ok {
			return nil, mismatch(w.Type, a)
		}
		return &RegisterUpdatedElement{header: h, Update: u, Ent: w.Entry}, nil
	case TypeRegisterDeletedBy:
		d, ok := a.(*action.Delete)
		if !ok {
			return nil, mismatch(w.Type, a)
		}
		return &RegisterDeletedBy{header: h, Delete: d}, nil
	case TypeRegisterDeletedEntryAction:
		d, ok := a.(*action.Delete)
		if !ok {
			return nil, mismatch(w.Type, a)
		}
		return &RegisterDeletedEntryAction{header: h, Delete: d}, nil
	case TypeRegisterAddLink:
		l, ok := a.(*action.CreateLink)
		if !ok {
			return nil, mismatch(w.Type, a)
		}
		return &RegisterAddLink{header: h, CreateLink: l}, nil
	case TypeRegisterRemoveLink:
		l, ok := a.(*action.DeleteLink)
		if !ok {
			return nil, mismatch(w.Type, a)
		}
		return &RegisterRemoveLink{header: h, DeleteLink: l}, nil
	default:
		return nil, wireErr("unknown op type %d", uint8(w.Type))
	}
}

func checkEntry(t Type, a action.Action, e *entry.Entry) error {
	switch t {
	case TypeStoreElement, TypeStoreEntry, TypeRegisterUpdatedContent, TypeRegisterUpdatedElement:
	default:
		return wireErr("%s carries entry content", t)
	}
	eh, typ, ok := a.EntryRef()
	if !ok {
		return wireErr("%s on %s action carries entry content", t, a.Kind())
	}
	if typ.Visibility() != entry.Public {
		return wireErr("%s carries private entry content", t)
	}
	got, err := e.Hash()
	if err != nil {
		return err
	}
	if got != eh {
		return integrity.Chain(integrity.RuleEntryHash,
			fmt.Sprintf("dhtop: entry hash %s does not match action entry hash %s", got, eh))
	}
	return nil
}

func mismatch(t Type, a action.Action) error {
	return wireErr("%s cannot wrap %s action", t, a.Kind())
}

func wireErr(format string, args ...any) error {
	return integrity.New(integrity.KindSerialization, integrity.RuleDecode, "dhtop: "+fmt.Sprintf(format, args...))
}

// EncodeBatch encodes ops as one CBOR array, preserving order.
func EncodeBatch(ops []Op) ([]byte, error) {
	items := make([]codec.RawMessage, len(ops))
	for i, op := range ops {
		b, err := Encode(op)
		if err != nil {
			return nil, err
		}
		items[i] = b
	}
	return codec.Marshal(items)
}

// DecodeBatch is the inverse of EncodeBatch. It fails as a whole if any op
// fails to decode.
func DecodeBatch(data []byte) ([]Op, error) {
	var items []codec.RawMessage
	if err := codec.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	ops := make([]Op, 0, len(items))
	for i, b := range items {
		op, err := Decode(b)
		if err != nil {
			return nil, fmt.Errorf("dhtop: batch item %d: %w", i, err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}
