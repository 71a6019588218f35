package models

import (
	"fmt"
	"time"
)

// Attendee is a participant listed on a calendar event
type Attendee struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	PartStat string `json:"part_stat"`
}

// CalendarEvent is a single VEVENT extracted from an iCalendar
// document. Zero time values mean the property was missing or
// unparsable.
type CalendarEvent struct {
	Method        string     `json:"method"`
	UID           string     `json:"uid"`
	Summary       string     `json:"summary"`
	Description   string     `json:"description,omitempty"`
	Location      string     `json:"location,omitempty"`
	Organizer     string     `json:"organizer,omitempty"`
	OrganizerName string     `json:"organizer_name,omitempty"`
	Start         time.Time  `json:"start,omitempty"`
	End           time.Time  `json:"end,omitempty"`
	AllDay        bool       `json:"all_day"`
	Sequence      int        `json:"sequence"`
	Status        string     `json:"status,omitempty"`
	Attendees     []Attendee `json:"attendees,omitempty"`
}

// IsCancellation reports whether the event announces a cancellation
func (e *CalendarEvent) IsCancellation() bool {
	return e.Method == "CANCEL"
}

// RsvpStatus is a reply to a calendar invitation
type RsvpStatus string

const (
	RsvpAccepted  RsvpStatus = "accepted"
	RsvpDeclined  RsvpStatus = "declined"
	RsvpTentative RsvpStatus = "tentative"
)

// ParseRsvpStatus validates a client-supplied status string
func ParseRsvpStatus(s string) (RsvpStatus, error) {
	switch RsvpStatus(s) {
	case RsvpAccepted, RsvpDeclined, RsvpTentative:
		return RsvpStatus(s), nil
	}
	return "", fmt.Errorf("invalid rsvp status: %q", s)
}

// ICSValue returns the PARTSTAT parameter value for the status
func (s RsvpStatus) ICSValue() string {
	switch s {
	case RsvpAccepted:
		return "ACCEPTED"
	case RsvpDeclined:
		return "DECLINED"
	case RsvpTentative:
		return "TENTATIVE"
	}
	return "NEEDS-ACTION"
}
