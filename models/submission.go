package models

// Submission is an outgoing message to be created and submitted
// in a single round trip. HTMLBody and CalendarICS are mutually
// exclusive; setting both is a caller bug.
type Submission struct {
	From        string       `json:"from,omitempty"`
	IdentityID  string       `json:"identity_id,omitempty"`
	To          []Address    `json:"to"`
	Cc          []Address    `json:"cc,omitempty"`
	Bcc         []Address    `json:"bcc,omitempty"`
	Subject     string       `json:"subject"`
	TextBody    string       `json:"text_body"`
	HTMLBody    string       `json:"html_body,omitempty"`
	CalendarICS string       `json:"calendar_ics,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	InReplyTo   []string     `json:"in_reply_to,omitempty"`
	References  []string     `json:"references,omitempty"`
}
