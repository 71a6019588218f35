package models

import "time"

// ParsedQuery is the structured form of a search box query.
// Repeated from/to/subject clauses accumulate; nil pointers mean
// the operator was absent; Text collects everything that was not
// an operator.
type ParsedQuery struct {
	Text          string
	From          []string
	To            []string
	Subject       []string
	HasAttachment bool
	IsUnread      *bool
	IsFlagged     *bool
	Before        *time.Time
	After         *time.Time
}

// IsEmpty reports whether the query carries no conditions at all
func (q *ParsedQuery) IsEmpty() bool {
	return q.Text == "" && len(q.From) == 0 && len(q.To) == 0 && len(q.Subject) == 0 &&
		!q.HasAttachment && q.IsUnread == nil && q.IsFlagged == nil &&
		q.Before == nil && q.After == nil
}
