package models

// Mailbox is a folder on the mail store, identified by id and
// optionally carrying a well-known role (inbox, archive, drafts,
// sent, trash).
type Mailbox struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ParentID     string `json:"parent_id,omitempty"`
	Role         string `json:"role,omitempty"`
	TotalEmails  int64  `json:"total_emails"`
	UnreadEmails int64  `json:"unread_emails"`
	SortOrder    int    `json:"sort_order"`
}

// Identity is a sending identity registered on the mail store
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
