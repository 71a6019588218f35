package models

// Address is a single mail address with an optional display name
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Attachment describes a downloadable MIME part of a message
type Attachment struct {
	BlobID   string `json:"blob_id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}

// Email represents a message as served by the mail store
type Email struct {
	ID              string          `json:"id"`
	ThreadID        string          `json:"thread_id"`
	MailboxIDs      []string        `json:"mailbox_ids"`
	Keywords        map[string]bool `json:"keywords"`
	From            []Address       `json:"from"`
	To              []Address       `json:"to"`
	Cc              []Address       `json:"cc"`
	ReplyTo         []Address       `json:"reply_to,omitempty"`
	Subject         string          `json:"subject"`
	ReceivedAt      string          `json:"received_at"`
	Preview         string          `json:"preview"`
	Size            int64           `json:"size"`
	HasAttachment   bool            `json:"has_attachment"`
	Attachments     []Attachment    `json:"attachments,omitempty"`
	TextBody        string          `json:"text_body,omitempty"`
	HTMLBody        string          `json:"html_body,omitempty"`
	CalendarPartID  string          `json:"calendar_part_id,omitempty"`
	MessageID       []string        `json:"message_id,omitempty"`
	ListUnsubscribe string          `json:"list_unsubscribe,omitempty"`
}

// IsUnread reports whether the message lacks the seen keyword
func (e *Email) IsUnread() bool {
	return !e.Keywords["$seen"]
}

// IsFlagged reports whether the message carries the flagged keyword
func (e *Email) IsFlagged() bool {
	return e.Keywords["$flagged"]
}

// HasCalendar reports whether the message carries a calendar part
func (e *Email) HasCalendar() bool {
	return e.CalendarPartID != ""
}

// RecipientAddresses returns all To and Cc addresses
func (e *Email) RecipientAddresses() []string {
	out := make([]string, 0, len(e.To)+len(e.Cc))
	for _, a := range e.To {
		out = append(out, a.Email)
	}
	for _, a := range e.Cc {
		out = append(out, a.Email)
	}
	return out
}
