package action

import "xdao.co/agentchain/codec"

func codecMarshalEnvelope(k Kind) ([]byte, error) {
	body, err := codec.Marshal(struct{}{})
	if err != nil {
		return nil, err
	}
	return codec.Marshal(envelope{Kind: k, Body: body})
}
