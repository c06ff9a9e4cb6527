// Package compliance selects how much verification a reader performs on data
// it did not produce itself.
package compliance

import "fmt"

// ComplianceMode selects how aggressively untrusted chain data is checked.
//
// Both modes check sequence numbers and hash links. Strict additionally
// verifies every author signature, and rejects the whole input on the
// first failure.
//
// The zero value is Strict.
type ComplianceMode int

const (
	Strict ComplianceMode = iota
	Permissive
)

func (m ComplianceMode) String() string {
	switch m {
	case Permissive:
		return "permissive"
	case Strict:
		return "strict"
	default:
		return fmt.Sprintf("ComplianceMode(%d)", int(m))
	}
}

// VerifySignatures reports whether author signatures must be checked.
func (m ComplianceMode) VerifySignatures() bool { return m == Strict }

// Parse accepts "permissive" or "strict". The empty string is Strict.
func Parse(s string) (ComplianceMode, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "permissive":
		return Permissive, nil
	default:
		return 0, fmt.Errorf("compliance: unknown mode %q", s)
	}
}
