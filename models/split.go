package models

// FilterKind names the property of a message a split filter tests
type FilterKind string

const (
	FilterFrom     FilterKind = "from"
	FilterTo       FilterKind = "to"
	FilterSubject  FilterKind = "subject"
	FilterCalendar FilterKind = "calendar"
	FilterHeader   FilterKind = "header"
)

// SplitFilter is a single rule inside a split inbox. For the
// from and to kinds Pattern is a glob; for subject it is a
// case-insensitive regular expression; calendar and header
// ignore the pattern and test for a calendar part. Name is an
// optional label for the clause.
type SplitFilter struct {
	Kind    FilterKind `json:"kind"`
	Pattern string     `json:"pattern"`
	Name    string     `json:"name,omitempty"`
}

// SplitInbox groups messages matching its filters under one tab.
// Icon is an optional image URL for the tab.
type SplitInbox struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Icon     string        `json:"icon,omitempty"`
	Filters  []SplitFilter `json:"filters"`
	MatchAll bool          `json:"match_all,omitempty"`
}

// SplitsConfig is the persisted rule set
type SplitsConfig struct {
	Splits []SplitInbox `json:"splits"`
}

// PrimarySplitID is the reserved id for the tab of messages
// matching no split at all.
const PrimarySplitID = "primary"
