package record

import (
	"fmt"

	"xdao.co/agentchain/entry"
)

// Status says whether a record carries its entry and, if not, why.
type Status uint8

const (
	// Present: the action references an entry and the entry is attached.
	Present Status = iota + 1
	// Hidden: the entry is private and excluded from this view.
	Hidden
	// NotApplicable: the action references no entry.
	NotApplicable
	// NotStored: the entry is public but the holder did not keep it.
	NotStored
)

func (s Status) String() string {
	switch s {
	case Present:
		return "Present"
	case Hidden:
		return "Hidden"
	case NotApplicable:
		return "NotApplicable"
	case NotStored:
		return "NotStored"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// RecordEntry is the entry view of a record.
type RecordEntry struct {
	status Status
	entry  *entry.Entry
}

func PresentEntry(e *entry.Entry) RecordEntry {
	return RecordEntry{status: Present, entry: e.Clone()}
}

func HiddenEntry() RecordEntry        { return RecordEntry{status: Hidden} }
func NotApplicableEntry() RecordEntry { return RecordEntry{status: NotApplicable} }
func NotStoredEntry() RecordEntry     { return RecordEntry{status: NotStored} }

func (re RecordEntry) Status() Status { return re.status }

// AsOption returns a copy of the entry when Present.
func (re RecordEntry) AsOption() (*entry.Entry, bool) {
	if re.status != Present {
		return nil, false
	}
	return re.entry.Clone(), true
}

// AppBytes returns application bytes when an app entry is Present.
func (re RecordEntry) AppBytes() ([]byte, bool) {
	e, ok := re.AsOption()
	if !ok {
		return nil, false
	}
	return e.AppBytes()
}

// CapGrant returns the grant when a grant entry is Present.
func (re RecordEntry) CapGrant() (entry.CapGrant, bool) {
	e, ok := re.AsOption()
	if !ok {
		return entry.CapGrant{}, false
	}
	return e.CapGrant()
}

func (re RecordEntry) Equal(o RecordEntry) bool {
	return re.status == o.status && re.entry.Equal(o.entry)
}
