// Package integrity defines the error taxonomy shared by the chain core.
//
// Callers should branch on Kind/RuleID rather than matching error strings.
package integrity

import "errors"

// Kind is a stable category for programmatic error handling.
type Kind string

const (
	// KindChainIntegrity marks a broken sequence or hash link. It is never
	// recoverable locally and always aborts the append in progress.
	KindChainIntegrity Kind = "ChainIntegrity"
	// KindInvariant marks a programming error. Values of this kind are raised
	// with panic, not returned.
	KindInvariant Kind = "Invariant"
	// KindSerialization marks content that could not be canonically encoded
	// or decoded.
	KindSerialization Kind = "Serialization"
)

// Stable rule identifiers.
const (
	RuleSeq          = "CHAIN-SEQ-001"
	RuleLink         = "CHAIN-LINK-001"
	RuleGenesis      = "CHAIN-GEN-001"
	RuleAuthor       = "CHAIN-AUTH-001"
	RuleTime         = "CHAIN-TIME-001"
	RuleEntryHash    = "CHAIN-ENTRY-001"
	RuleEntryPresent = "REC-ENTRY-001"
	RuleEncode       = "CODEC-ENC-001"
	RuleDecode       = "CODEC-DEC-001"
)

// Error is the structured error type of the chain core.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New returns a structured error without a cause.
func New(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg}
}

// Wrap returns a structured error wrapping cause. A nil cause behaves like New.
func Wrap(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return New(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause}
}

// Chain returns a KindChainIntegrity error.
func Chain(ruleID, msg string) error {
	return New(KindChainIntegrity, ruleID, msg)
}

// Invariant panics with a KindInvariant *Error. It must only guard states that
// untrusted input can never reach.
func Invariant(ruleID, msg string) {
	panic(&Error{Kind: KindInvariant, RuleID: ruleID, Message: msg})
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}
