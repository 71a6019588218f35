// Package calendar parses iCalendar invitations found in mail and
// produces the REPLY documents sent back to organizers. Only the
// small slice of RFC 5545 that invitation mail actually uses is
// handled; anything unparsable is treated as absent rather than
// failing the whole message.
package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"splitmail/models"
)

const (
	dateTimeLayout = "20060102T150405"
	dateLayout     = "20060102"
	prodID         = "-//splitmail//calendar//EN"
)

// Unfold joins continuation lines. A line starting with a space or
// tab continues the previous line, for both CRLF and bare LF input.
func Unfold(data string) string {
	r := strings.NewReplacer(
		"\r\n ", "",
		"\r\n\t", "",
		"\n ", "",
		"\n\t", "",
	)
	return r.Replace(data)
}

// contentLine is one unfolded NAME;PARAM=V:VALUE line
type contentLine struct {
	name   string
	params map[string]string
	value  string
}

func parseContentLine(line string) (contentLine, bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return contentLine{}, false
	}
	head := line[:colon]
	value := line[colon+1:]

	name := head
	params := map[string]string{}
	if semi := strings.Index(head, ";"); semi >= 0 {
		name = head[:semi]
		for _, p := range strings.Split(head[semi+1:], ";") {
			if eq := strings.Index(p, "="); eq >= 0 {
				params[strings.ToUpper(p[:eq])] = strings.Trim(p[eq+1:], `"`)
			}
		}
	}
	return contentLine{
		name:   strings.ToUpper(strings.TrimSpace(name)),
		params: params,
		value:  strings.TrimSpace(value),
	}, true
}

// parseTime interprets an iCalendar date or date-time value. All-day
// dates normalize to midnight UTC. The second result reports the
// all-day case; a zero time means the value did not parse.
func parseTime(value string, params map[string]string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if params["VALUE"] == "DATE" || len(value) == 8 {
		t, err := time.ParseInLocation(dateLayout, value, time.UTC)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	v := strings.TrimSuffix(value, "Z")
	t, err := time.ParseInLocation(dateTimeLayout, v, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, false
}

func stripMailto(v string) string {
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}

// ParseICS extracts the first VEVENT from an iCalendar document.
// Returns nil when the VCALENDAR wrapper is missing, when there is
// no VEVENT, or when UID or a parsable DTSTART is absent; other bad
// properties are dropped silently.
func ParseICS(data string) *models.CalendarEvent {
	if !strings.Contains(data, "BEGIN:VCALENDAR") {
		return nil
	}

	unfolded := Unfold(data)
	lines := strings.Split(strings.ReplaceAll(unfolded, "\r\n", "\n"), "\n")

	event := &models.CalendarEvent{Method: "REQUEST"}
	inEvent := false
	seenEvent := false
	hasStart := false

	for _, raw := range lines {
		cl, ok := parseContentLine(raw)
		if !ok {
			continue
		}

		switch cl.name {
		case "BEGIN":
			if strings.EqualFold(cl.value, "VEVENT") && !seenEvent {
				inEvent = true
				seenEvent = true
			}
			continue
		case "END":
			if strings.EqualFold(cl.value, "VEVENT") {
				inEvent = false
			}
			continue
		case "METHOD":
			if v := strings.ToUpper(cl.value); v != "" {
				event.Method = v
			}
			continue
		}

		if !inEvent {
			continue
		}

		switch cl.name {
		case "UID":
			event.UID = cl.value
		case "SUMMARY":
			event.Summary = cl.value
		case "DESCRIPTION":
			event.Description = cl.value
		case "LOCATION":
			event.Location = cl.value
		case "STATUS":
			event.Status = strings.ToUpper(cl.value)
		case "ORGANIZER":
			event.Organizer = stripMailto(cl.value)
			event.OrganizerName = cl.params["CN"]
		case "SEQUENCE":
			if n, err := strconv.Atoi(cl.value); err == nil {
				event.Sequence = n
			}
		case "DTSTART":
			if t, allDay := parseTime(cl.value, cl.params); !t.IsZero() {
				event.Start = t
				event.AllDay = allDay
				hasStart = true
			}
		case "DTEND":
			if t, _ := parseTime(cl.value, cl.params); !t.IsZero() {
				event.End = t
			}
		case "ATTENDEE":
			att := models.Attendee{
				Email:    stripMailto(cl.value),
				Name:     cl.params["CN"],
				PartStat: "NEEDS-ACTION",
			}
			if ps := cl.params["PARTSTAT"]; ps != "" {
				att.PartStat = strings.ToUpper(ps)
			}
			event.Attendees = append(event.Attendees, att)
		}
	}

	if !seenEvent || event.UID == "" || !hasStart {
		return nil
	}
	return event
}

// GenerateRSVP builds the METHOD:REPLY document answering an
// invitation on behalf of the given attendee. The original UID,
// times, summary, organizer and sequence are echoed back.
func GenerateRSVP(event *models.CalendarEvent, attendeeEmail, attendeeName string, status models.RsvpStatus) string {
	attendee := "ATTENDEE"
	if attendeeName != "" {
		attendee += ";CN=" + attendeeName
	}
	attendee += fmt.Sprintf(";PARTSTAT=%s:mailto:%s", status.ICSValue(), attendeeEmail)

	organizer := "ORGANIZER"
	if event.OrganizerName != "" {
		organizer += ";CN=" + event.OrganizerName
	}
	organizer += ":mailto:" + event.Organizer

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + prodID,
		"METHOD:REPLY",
		"BEGIN:VEVENT",
		"UID:" + event.UID,
	}
	if event.AllDay {
		lines = append(lines, "DTSTART;VALUE=DATE:"+event.Start.Format(dateLayout))
	} else {
		lines = append(lines, "DTSTART:"+event.Start.Format(dateTimeLayout)+"Z")
	}
	if !event.End.IsZero() {
		if event.AllDay {
			lines = append(lines, "DTEND;VALUE=DATE:"+event.End.Format(dateLayout))
		} else {
			lines = append(lines, "DTEND:"+event.End.Format(dateTimeLayout)+"Z")
		}
	}
	lines = append(lines,
		"SUMMARY:"+event.Summary,
		organizer,
		attendee,
		"SEQUENCE:"+strconv.Itoa(event.Sequence),
		"END:VEVENT",
		"END:VCALENDAR",
	)

	return strings.Join(lines, "\r\n") + "\r\n"
}

// UpdatePartstat returns a copy of an iCalendar document where the
// PARTSTAT of the attendee with the given address is replaced (or
// inserted when absent). Every other byte of the document is kept
// as is, folded lines included.
func UpdatePartstat(data, attendeeEmail string, status models.RsvpStatus) string {
	newline := "\n"
	if strings.Contains(data, "\r\n") {
		newline = "\r\n"
	}

	physical := strings.Split(data, newline)
	var out []string

	for i := 0; i < len(physical); i++ {
		line := physical[i]
		if !strings.HasPrefix(strings.ToUpper(line), "ATTENDEE") {
			out = append(out, line)
			continue
		}

		// Collect the full logical line including continuations.
		logical := line
		j := i + 1
		for j < len(physical) && (strings.HasPrefix(physical[j], " ") || strings.HasPrefix(physical[j], "\t")) {
			logical += physical[j][1:]
			j++
		}

		lower := strings.ToLower(logical)
		if !strings.Contains(lower, "mailto:"+strings.ToLower(attendeeEmail)) {
			for ; i < j; i++ {
				out = append(out, physical[i])
			}
			i--
			continue
		}

		out = append(out, replacePartstat(logical, status))
		i = j - 1
	}

	return strings.Join(out, newline)
}

func replacePartstat(logical string, status models.RsvpStatus) string {
	upper := strings.ToUpper(logical)
	start := strings.Index(upper, "PARTSTAT=")
	if start < 0 {
		// No PARTSTAT parameter yet, add one right after the name.
		return "ATTENDEE;PARTSTAT=" + status.ICSValue() + logical[len("ATTENDEE"):]
	}
	end := start + len("PARTSTAT=")
	for end < len(logical) && logical[end] != ';' && logical[end] != ':' {
		end++
	}
	return logical[:start] + "PARTSTAT=" + status.ICSValue() + logical[end:]
}
