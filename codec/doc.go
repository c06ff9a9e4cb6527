// Package codec is the canonical serialization choke point.
//
// Every value that is hashed (actions, entries, op light forms, storage
// blocks) is encoded here with CBOR Core Deterministic Encoding, so the same
// logical value always produces the same bytes and therefore the same hash.
package codec
