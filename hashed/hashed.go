// Package hashed binds content to its content hash and, optionally, to a
// detached signature over that hash.
//
// Values are immutable after construction: Content returns a deep copy and
// there are no setters. Test builds may opt into mutators with the testutil
// build tag.
package hashed

import (
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
)

// Hashable is content with a canonical byte form.
type Hashable[T any] interface {
	HashType() hashing.Type
	Canonical() ([]byte, error)
	Clone() T
}

// Hashed owns content plus the hash of its canonical bytes.
type Hashed[T Hashable[T]] struct {
	content T
	hash    hashing.Hash
}

// New hashes content. It fails only when content cannot be canonically encoded.
func New[T Hashable[T]](content T) (Hashed[T], error) {
	b, err := content.Canonical()
	if err != nil {
		return Hashed[T]{}, err
	}
	return Hashed[T]{content: content.Clone(), hash: hashing.Sum(content.HashType(), b)}, nil
}

// WithPreHashed trusts h as the hash of content. Callers must only use it to
// re-wrap content already known to hash to h; nothing here checks it.
func WithPreHashed[T Hashable[T]](content T, h hashing.Hash) Hashed[T] {
	return Hashed[T]{content: content.Clone(), hash: h}
}

// Content returns a copy of the wrapped value.
func (h Hashed[T]) Content() T { return h.content.Clone() }

func (h Hashed[T]) Hash() hashing.Hash { return h.hash }

// Equal compares by hash.
func (h Hashed[T]) Equal(o Hashed[T]) bool { return h.hash == o.hash }

// Signed is Hashed content plus a signature over the hash bytes.
type Signed[T Hashable[T]] struct {
	hashed    Hashed[T]
	signature keys.Signature
}

// WithPresigned wraps already-signed content. The signature is copied as is
// and never verified here.
func WithPresigned[T Hashable[T]](h Hashed[T], sig keys.Signature) Signed[T] {
	return Signed[T]{hashed: h, signature: sig.Clone()}
}

func (s Signed[T]) Hashed() Hashed[T] { return s.hashed }

func (s Signed[T]) Hash() hashing.Hash { return s.hashed.hash }

func (s Signed[T]) Content() T { return s.hashed.Content() }

func (s Signed[T]) Signature() keys.Signature { return s.signature.Clone() }

// IntoInner splits s into its parts.
func (s Signed[T]) IntoInner() (Hashed[T], keys.Signature) {
	return s.hashed, s.signature.Clone()
}

// Equal compares hash and signature; identical content signed twice with
// different signatures is not equal.
func (s Signed[T]) Equal(o Signed[T]) bool {
	return s.hashed.hash == o.hashed.hash && s.signature.Equal(o.signature)
}

// Key returns a comparable identity consistent with Equal, for use as a map key.
func (s Signed[T]) Key() string {
	d := s.hashed.hash.Digest()
	return string([]byte{byte(s.hashed.hash.Type())}) + string(d[:]) + string(s.signature)
}
