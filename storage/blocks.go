package storage

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/agentchain/cidutil"
	"xdao.co/agentchain/hashing"
)

// Putter is the write half of CAS, also satisfied by Buffer and Txn.
type Putter interface {
	Put(bytes []byte) (cid.Cid, error)
}

// PutBlock encodes b and writes it to p.
func PutBlock(p Putter, b cidutil.Block) (cid.Cid, error) {
	data, err := cidutil.EncodeBlock(b)
	if err != nil {
		return cid.Undef, err
	}
	return p.Put(data)
}

// GetBlock reads the block addressed by h from cas.
func GetBlock(cas CAS, h hashing.Hash) (cidutil.Block, error) {
	data, err := cas.Get(h.CID())
	if err != nil {
		return cidutil.Block{}, err
	}
	return checkBlock(data, h)
}

// GetBlock reads the block addressed by h, staged or stored.
func (b *Buffer) GetBlock(ctx context.Context, h hashing.Hash) (cidutil.Block, error) {
	data, err := b.Get(ctx, h.CID())
	if err != nil {
		return cidutil.Block{}, err
	}
	return checkBlock(data, h)
}

func checkBlock(data []byte, h hashing.Hash) (cidutil.Block, error) {
	blk, err := cidutil.DecodeBlock(data)
	if err != nil {
		return cidutil.Block{}, err
	}
	if got := blk.Hash(); got != h {
		return cidutil.Block{}, fmt.Errorf("%w: got %s want %s", ErrCIDMismatch, got, h)
	}
	return blk, nil
}
