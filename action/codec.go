package action

import (
	"fmt"

	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/integrity"
)

// envelope is the canonical encoding of any action: [kind, body].
type envelope struct {
	_    struct{} `cbor:",toarray"`
	Kind Kind
	Body codec.RawMessage
}

func canonical(a Action) ([]byte, error) {
	body, err := codec.Marshal(a)
	if err != nil {
		return nil, err
	}
	return codec.Marshal(envelope{Kind: a.Kind(), Body: body})
}

// Encode returns the canonical bytes of a. They are the bytes the action
// hash is computed over.
func Encode(a Action) ([]byte, error) { return a.Canonical() }

func newOfKind(k Kind) (Action, error) {
	switch k {
	case KindDna:
		return &Dna{}, nil
	case KindAgentValidationPkg:
		return &AgentValidationPkg{}, nil
	case KindInitZomesComplete:
		return &InitZomesComplete{}, nil
	case KindOpenChain:
		return &OpenChain{}, nil
	case KindCloseChain:
		return &CloseChain{}, nil
	case KindCreate:
		return &Create{}, nil
	case KindUpdate:
		return &Update{}, nil
	case KindDelete:
		return &Delete{}, nil
	case KindCreateLink:
		return &CreateLink{}, nil
	case KindDeleteLink:
		return &DeleteLink{}, nil
	default:
		return nil, integrity.New(integrity.KindSerialization, integrity.RuleDecode,
			fmt.Sprintf("unknown action kind %d", uint8(k)))
	}
}

// Decode parses canonical action bytes.
func Decode(data []byte) (Action, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	a, err := newOfKind(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := codec.Unmarshal(env.Body, a); err != nil {
		return nil, err
	}
	return a, nil
}
