// Package storage defines the content-addressed store that holds chain
// blocks, and the write buffer chains use to commit atomically.
package storage

import "github.com/ipfs/go-cid"

// CAS is a minimal content-addressable storage interface over encoded
// cidutil.Block bytes.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable: re-putting a CID with different bytes fails with ErrImmutable.
// - CIDs MUST be cidutil.BlockCID of the bytes written.
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(bytes []byte) (cid.Cid, error)
	Get(id cid.Cid) ([]byte, error)
	Has(id cid.Cid) bool
}
