package entry

import (
	"xdao.co/agentchain/codec"
	"xdao.co/agentchain/hashing"
)

// CapGrant authorises assignees to call functions on the grantor's behalf.
type CapGrant struct {
	Tag       string         `cbor:"1,keyasint"`
	Secret    []byte         `cbor:"2,keyasint,omitempty"`
	Assignees []hashing.Hash `cbor:"3,keyasint,omitempty"`
	Functions []string       `cbor:"4,keyasint,omitempty"`
}

// CapClaim records a secret received from a grantor.
type CapClaim struct {
	Tag     string       `cbor:"1,keyasint"`
	Grantor hashing.Hash `cbor:"2,keyasint"`
	Secret  []byte       `cbor:"3,keyasint"`
}

func NewCapGrant(g CapGrant) (*Entry, error) {
	b, err := codec.Marshal(g)
	if err != nil {
		return nil, err
	}
	return &Entry{Kind: KindCapGrant, Payload: b}, nil
}

func NewCapClaim(c CapClaim) (*Entry, error) {
	b, err := codec.Marshal(c)
	if err != nil {
		return nil, err
	}
	return &Entry{Kind: KindCapClaim, Payload: b}, nil
}

// CapGrant decodes a grant entry.
func (e *Entry) CapGrant() (CapGrant, bool) {
	var g CapGrant
	if e == nil || e.Kind != KindCapGrant {
		return g, false
	}
	if err := codec.Unmarshal(e.Payload, &g); err != nil {
		return CapGrant{}, false
	}
	return g, true
}

// CapClaim decodes a claim entry.
func (e *Entry) CapClaim() (CapClaim, bool) {
	var c CapClaim
	if e == nil || e.Kind != KindCapClaim {
		return c, false
	}
	if err := codec.Unmarshal(e.Payload, &c); err != nil {
		return CapClaim{}, false
	}
	return c, true
}
