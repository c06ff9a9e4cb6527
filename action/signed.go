package action

import (
	"xdao.co/agentchain/hashed"
	"xdao.co/agentchain/hashing"
	"xdao.co/agentchain/keys"
)

// ActionHashed is an action with its hash.
type ActionHashed = hashed.Hashed[Action]

// SignedActionHashed is an action with its hash and the author's signature
// over the hash bytes.
type SignedActionHashed = hashed.Signed[Action]

// NewHashed hashes a.
func NewHashed(a Action) (ActionHashed, error) {
	return hashed.New[Action](a)
}

// Sign hashes a and signs the hash bytes with s.
func Sign(a Action, s keys.Signer) (SignedActionHashed, error) {
	h, err := NewHashed(a)
	if err != nil {
		return SignedActionHashed{}, err
	}
	hb := h.Hash().Bytes()
	sig, err := s.Sign(hb)
	if err != nil {
		return SignedActionHashed{}, err
	}
	return hashed.WithPresigned(h, sig), nil
}

// RawFromSameHash re-wraps a variant that was split off a signed action,
// reusing the hash and signature of the original. a must be the same action
// that h was computed from.
func RawFromSameHash(a Action, h hashing.Hash, sig keys.Signature) SignedActionHashed {
	return hashed.WithPresigned(hashed.WithPreHashed[Action](a, h), sig)
}

// VerifySignature checks the author's signature on s.
func VerifySignature(ks *keys.Keystore, s SignedActionHashed) error {
	hb := s.Hash().Bytes()
	return ks.Verify(s.Content().AuthorID(), hb, s.Signature())
}
