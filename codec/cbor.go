package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"

	"xdao.co/agentchain/integrity"
)

// encMode is configured with Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length items.
var encMode cbor.EncMode

// decMode rejects duplicate map keys, indefinite-length items and fields the
// target struct does not declare.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v canonically. Failures are KindSerialization errors.
func Marshal(v any) ([]byte, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return nil, integrity.Wrap(integrity.KindSerialization, integrity.RuleEncode, "codec: encode", err)
	}
	return b, nil
}

// Unmarshal decodes CBOR data into v. Failures are KindSerialization errors.
func Unmarshal(data []byte, v any) error {
	if err := decMode.Unmarshal(data, v); err != nil {
		return integrity.Wrap(integrity.KindSerialization, integrity.RuleDecode, "codec: decode", err)
	}
	return nil
}

// RawMessage is a raw encoded CBOR value, used to delay decoding of a tagged
// union body until its tag is known.
type RawMessage = cbor.RawMessage

// Encoder is a canonical CBOR stream encoder.
type Encoder = cbor.Encoder

// Decoder is a CBOR stream decoder.
type Decoder = cbor.Decoder

// NewEncoder returns a stream encoder writing canonical CBOR to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return decMode.NewDecoder(r)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for data.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
