//go:build testutil

package hashed

import (
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
)

// The accessors below exist only in builds tagged testutil. They let fixtures
// and fuzzers corrupt values that production code can never change.

// ContentMut exposes the wrapped value without rehashing.
func (h *Hashed[T]) ContentMut() *T { return &h.content }

// HashMut exposes the stored hash.
func (h *Hashed[T]) HashMut() *hashing.Hash { return &h.hash }

// HashedMut exposes the hashed part of a signed value.
func (s *Signed[T]) HashedMut() *Hashed[T] { return &s.hashed }

// SignatureMut exposes the signature bytes.
func (s *Signed[T]) SignatureMut() *keys.Signature { return &s.signature }
