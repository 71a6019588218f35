package calendar

import (
	"strings"
	"testing"
	"time"

	"splitmail/models"
)

const sampleInvite = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//Test//EN\r\n" +
	"METHOD:REQUEST\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:event-123@example.com\r\n" +
	"SUMMARY:Team Sync\r\n" +
	"DESCRIPTION:Weekly status\r\n" +
	"LOCATION:Room 4\r\n" +
	"ORGANIZER;CN=Alice:mailto:alice@example.com\r\n" +
	"DTSTART:20260915T140000Z\r\n" +
	"DTEND:20260915T150000Z\r\n" +
	"SEQUENCE:2\r\n" +
	"ATTENDEE;CN=Bob;PARTSTAT=NEEDS-ACTION:mailto:bob@example.com\r\n" +
	"ATTENDEE;CN=Carol;PARTSTAT=ACCEPTED:mailto:carol@example.com\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParseICSBasic(t *testing.T) {
	event := ParseICS(sampleInvite)
	if event == nil {
		t.Fatal("expected event")
	}
	if event.UID != "event-123@example.com" {
		t.Errorf("uid = %q", event.UID)
	}
	if event.Method != "REQUEST" {
		t.Errorf("method = %q", event.Method)
	}
	if event.Summary != "Team Sync" {
		t.Errorf("summary = %q", event.Summary)
	}
	if event.Location != "Room 4" {
		t.Errorf("location = %q", event.Location)
	}
	if event.Organizer != "alice@example.com" {
		t.Errorf("organizer = %q", event.Organizer)
	}
	if event.OrganizerName != "Alice" {
		t.Errorf("organizer name = %q", event.OrganizerName)
	}
	if event.Sequence != 2 {
		t.Errorf("sequence = %d", event.Sequence)
	}

	want := time.Date(2026, 9, 15, 14, 0, 0, 0, time.UTC)
	if !event.Start.Equal(want) {
		t.Errorf("start = %v, want %v", event.Start, want)
	}
	if event.AllDay {
		t.Error("timed event marked all-day")
	}

	if len(event.Attendees) != 2 {
		t.Fatalf("attendees = %d", len(event.Attendees))
	}
	if event.Attendees[0].Email != "bob@example.com" || event.Attendees[0].Name != "Bob" {
		t.Errorf("first attendee = %+v", event.Attendees[0])
	}
	if event.Attendees[1].PartStat != "ACCEPTED" {
		t.Errorf("second attendee partstat = %q", event.Attendees[1].PartStat)
	}
}

func TestParseICSDefaults(t *testing.T) {
	ics := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:u1\nDTSTART:20261003T090000Z\nATTENDEE:mailto:x@y.z\nEND:VEVENT\nEND:VCALENDAR\n"
	event := ParseICS(ics)
	if event == nil {
		t.Fatal("expected event")
	}
	if event.Method != "REQUEST" {
		t.Errorf("default method = %q, want REQUEST", event.Method)
	}
	if event.Sequence != 0 {
		t.Errorf("default sequence = %d, want 0", event.Sequence)
	}
	if event.Attendees[0].PartStat != "NEEDS-ACTION" {
		t.Errorf("default partstat = %q", event.Attendees[0].PartStat)
	}
}

func TestParseICSMissingStart(t *testing.T) {
	ics := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:u1\nSUMMARY:No start\nEND:VEVENT\nEND:VCALENDAR\n"
	if ParseICS(ics) != nil {
		t.Error("event without DTSTART should parse to nil")
	}
	ics = "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:u1\nDTSTART:garbage\nEND:VEVENT\nEND:VCALENDAR\n"
	if ParseICS(ics) != nil {
		t.Error("event with unparsable DTSTART should parse to nil")
	}
}

func TestParseICSMissingWrapper(t *testing.T) {
	ics := "BEGIN:VEVENT\nUID:u1\nDTSTART:20261003T090000Z\nEND:VEVENT\n"
	if ParseICS(ics) != nil {
		t.Error("bare VEVENT without VCALENDAR wrapper should parse to nil")
	}
}

func TestParseICSAllDay(t *testing.T) {
	ics := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:u2\nDTSTART;VALUE=DATE:20261003\nEND:VEVENT\nEND:VCALENDAR\n"
	event := ParseICS(ics)
	if event == nil {
		t.Fatal("expected event")
	}
	if !event.AllDay {
		t.Error("VALUE=DATE should mark the event all-day")
	}
	want := time.Date(2026, 10, 3, 0, 0, 0, 0, time.UTC)
	if !event.Start.Equal(want) {
		t.Errorf("start = %v, want midnight %v", event.Start, want)
	}

	// A bare 8-digit value is an all-day date too.
	ics = "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:u3\nDTSTART:20261003\nEND:VEVENT\nEND:VCALENDAR\n"
	event = ParseICS(ics)
	if event == nil || !event.AllDay {
		t.Error("8-digit DTSTART should mark the event all-day")
	}
}

func TestParseICSMissingUID(t *testing.T) {
	ics := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nSUMMARY:No id\nDTSTART:20261003T090000Z\nEND:VEVENT\nEND:VCALENDAR\n"
	if ParseICS(ics) != nil {
		t.Error("event without UID should parse to nil")
	}
	if ParseICS("not a calendar at all") != nil {
		t.Error("garbage should parse to nil")
	}
}

func TestParseICSFoldedLines(t *testing.T) {
	ics := "BEGIN:VCALENDAR\r\nBEGIN:VEVENT\r\nUID:u4\r\nDTSTART:20261003T090000Z\r\nSUMMARY:A very long\r\n  meeting title\r\nEND:VEVENT\r\nEND:VCALENDAR\r\n"
	event := ParseICS(ics)
	if event == nil {
		t.Fatal("expected event")
	}
	if event.Summary != "A very long meeting title" {
		t.Errorf("folded summary = %q", event.Summary)
	}
}

func TestParseICSCancellation(t *testing.T) {
	ics := "BEGIN:VCALENDAR\nMETHOD:CANCEL\nBEGIN:VEVENT\nUID:u5\nDTSTART:20261003T090000Z\nEND:VEVENT\nEND:VCALENDAR\n"
	event := ParseICS(ics)
	if event == nil || !event.IsCancellation() {
		t.Error("METHOD:CANCEL should mark a cancellation")
	}
}

func TestGenerateRSVP(t *testing.T) {
	event := ParseICS(sampleInvite)
	reply := GenerateRSVP(event, "bob@example.com", "Bob", models.RsvpAccepted)

	for _, want := range []string{
		"METHOD:REPLY",
		"UID:event-123@example.com",
		"SEQUENCE:2",
		"DTSTART:20260915T140000Z",
		"DTEND:20260915T150000Z",
		"ATTENDEE;CN=Bob;PARTSTAT=ACCEPTED:mailto:bob@example.com",
		"ORGANIZER;CN=Alice:mailto:alice@example.com",
	} {
		if !strings.Contains(reply, want) {
			t.Errorf("reply missing %q:\n%s", want, reply)
		}
	}
	if !strings.Contains(reply, "\r\n") {
		t.Error("reply should use CRLF line endings")
	}
	if strings.Contains(reply, "carol@example.com") {
		t.Error("reply must list only the responding attendee")
	}
}

func TestGenerateRSVPDeclined(t *testing.T) {
	event := &models.CalendarEvent{
		UID:       "u6",
		Method:    "REQUEST",
		Organizer: "boss@example.com",
		Start:     time.Date(2026, 10, 3, 9, 0, 0, 0, time.UTC),
	}
	reply := GenerateRSVP(event, "me@example.com", "", models.RsvpDeclined)
	if !strings.Contains(reply, "ATTENDEE;PARTSTAT=DECLINED:mailto:me@example.com") {
		t.Errorf("unexpected attendee line:\n%s", reply)
	}
}

func TestUpdatePartstat(t *testing.T) {
	updated := UpdatePartstat(sampleInvite, "bob@example.com", models.RsvpAccepted)
	if !strings.Contains(updated, "ATTENDEE;CN=Bob;PARTSTAT=ACCEPTED:mailto:bob@example.com") {
		t.Errorf("bob's partstat not updated:\n%s", updated)
	}
	// Everyone else stays untouched.
	if !strings.Contains(updated, "ATTENDEE;CN=Carol;PARTSTAT=ACCEPTED:mailto:carol@example.com") {
		t.Error("carol's line was modified")
	}
	if !strings.Contains(updated, "SUMMARY:Team Sync") {
		t.Error("unrelated content was modified")
	}
}

func TestUpdatePartstatCaseInsensitive(t *testing.T) {
	updated := UpdatePartstat(sampleInvite, "BOB@Example.COM", models.RsvpTentative)
	if !strings.Contains(updated, "PARTSTAT=TENTATIVE") {
		t.Error("address match should ignore case")
	}
}

func TestUpdatePartstatInsertsWhenMissing(t *testing.T) {
	ics := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:u7\nATTENDEE:mailto:me@example.com\nEND:VEVENT\nEND:VCALENDAR\n"
	updated := UpdatePartstat(ics, "me@example.com", models.RsvpAccepted)
	if !strings.Contains(updated, "ATTENDEE;PARTSTAT=ACCEPTED:mailto:me@example.com") {
		t.Errorf("partstat not inserted:\n%s", updated)
	}
}

func TestUnfold(t *testing.T) {
	if got := Unfold("A:one\r\n two\r\nB:three\r\n"); got != "A:onetwo\r\nB:three\r\n" {
		t.Errorf("Unfold = %q", got)
	}
	if got := Unfold("A:one\n\ttwo\n"); got != "A:onetwo\n" {
		t.Errorf("Unfold tab continuation = %q", got)
	}
}
