package jmap

import (
	"strings"

	"splitmail/models"
)

// extractBodies joins the values of the parts listed in textBody
// and htmlBody. Several parts of the same kind concatenate with a
// newline between them; parts without a fetched value contribute
// nothing.
func extractBodies(item Value) (text string, html string) {
	bodyValues := item.Get("bodyValues")

	join := func(list Value) string {
		var parts []string
		for _, p := range list.Array() {
			partID := p.Get("partId").Str()
			if partID == "" {
				continue
			}
			v := bodyValues.Get(partID).Get("value")
			if v.Exists() {
				parts = append(parts, v.Str())
			}
		}
		return strings.Join(parts, "\n")
	}

	return join(item.Get("textBody")), join(item.Get("htmlBody"))
}

// collectAttachments walks a body-structure tree and picks the
// leaves worth showing as attachments. inRelated is true only for
// direct children of a multipart/related container, so inline
// images referenced by the HTML part are skipped without hiding
// attachments nested deeper.
func collectAttachments(part Value, inRelated bool) []models.Attachment {
	partType := strings.ToLower(part.Get("type").Str())
	subParts := part.Get("subParts").Array()

	if len(subParts) > 0 {
		childInRelated := partType == "multipart/related"
		var out []models.Attachment
		for _, sub := range subParts {
			out = append(out, collectAttachments(sub, childInRelated)...)
		}
		return out
	}

	// Leaf part.
	disposition := strings.ToLower(part.Get("disposition").Str())
	name := part.Get("name").Str()

	switch partType {
	case "text/plain", "text/html", "text/calendar":
		return nil
	}
	if inRelated && disposition == "inline" {
		return nil
	}

	// Explicitly attached, inline outside a related container, or
	// anything carrying a filename.
	wanted := disposition == "attachment" || disposition == "inline" || name != ""
	if !wanted {
		return nil
	}

	blobID := part.Get("blobId").Str()
	if blobID == "" {
		return nil
	}

	if name == "" {
		name = "attachment"
	}
	if partType == "" {
		partType = "application/octet-stream"
	}
	return []models.Attachment{{
		BlobID:   blobID,
		Name:     name,
		MimeType: partType,
		Size:     part.Get("size").Int(),
	}}
}

// findCalendarPart returns the partId of the first leaf that is
// text/calendar or named *.ics, searching depth first. Some senders
// attach invitations as application/octet-stream with an .ics name.
func findCalendarPart(part Value) (string, bool) {
	subParts := part.Get("subParts").Array()
	if len(subParts) > 0 {
		for _, sub := range subParts {
			if id, ok := findCalendarPart(sub); ok {
				return id, true
			}
		}
		return "", false
	}

	partType := strings.ToLower(part.Get("type").Str())
	name := strings.ToLower(part.Get("name").Str())
	if strings.HasPrefix(partType, "text/calendar") || strings.HasSuffix(name, ".ics") {
		if id := part.Get("partId").Str(); id != "" {
			return id, true
		}
	}
	return "", false
}

// buildDraft assembles the Email/set create object for an outgoing
// message. HTMLBody and CalendarICS together are a caller bug, not
// an input condition, hence the panic.
func buildDraft(sub *models.Submission, fromAddr, draftsID string) map[string]interface{} {
	if sub.HTMLBody != "" && sub.CalendarICS != "" {
		panic("buildDraft: html body and calendar part are mutually exclusive")
	}

	bodyValues := map[string]interface{}{
		"text": map[string]interface{}{"value": sub.TextBody},
	}
	textPart := map[string]interface{}{"type": "text/plain", "partId": "text"}

	var structure map[string]interface{}
	switch {
	case sub.HTMLBody != "":
		bodyValues["html"] = map[string]interface{}{"value": sub.HTMLBody}
		structure = map[string]interface{}{
			"type": "multipart/alternative",
			"subParts": []interface{}{
				textPart,
				map[string]interface{}{"type": "text/html", "partId": "html"},
			},
		}
	case sub.CalendarICS != "":
		bodyValues["calendar"] = map[string]interface{}{"value": sub.CalendarICS}
		structure = map[string]interface{}{
			"type": "multipart/mixed",
			"subParts": []interface{}{
				textPart,
				map[string]interface{}{
					"type":   "text/calendar; method=REPLY",
					"partId": "calendar",
				},
			},
		}
	default:
		structure = textPart
	}

	if len(sub.Attachments) > 0 {
		attachmentParts := make([]interface{}, 0, len(sub.Attachments))
		for _, a := range sub.Attachments {
			attachmentParts = append(attachmentParts, map[string]interface{}{
				"blobId":      a.BlobID,
				"type":        a.MimeType,
				"name":        a.Name,
				"disposition": "attachment",
			})
		}
		if structure["type"] == "multipart/mixed" {
			structure["subParts"] = append(structure["subParts"].([]interface{}), attachmentParts...)
		} else {
			structure = map[string]interface{}{
				"type":     "multipart/mixed",
				"subParts": append([]interface{}{structure}, attachmentParts...),
			}
		}
	}

	draft := map[string]interface{}{
		"from":          []interface{}{map[string]interface{}{"email": fromAddr}},
		"to":            addressList(sub.To),
		"subject":       sub.Subject,
		"keywords":      map[string]interface{}{"$draft": true, "$seen": true},
		"mailboxIds":    map[string]interface{}{draftsID: true},
		"bodyValues":    bodyValues,
		"bodyStructure": structure,
	}
	if len(sub.Cc) > 0 {
		draft["cc"] = addressList(sub.Cc)
	}
	if len(sub.Bcc) > 0 {
		draft["bcc"] = addressList(sub.Bcc)
	}
	if len(sub.InReplyTo) > 0 {
		draft["inReplyTo"] = stringList(sub.InReplyTo)
	}
	if len(sub.References) > 0 {
		draft["references"] = stringList(sub.References)
	}
	return draft
}

func addressList(addrs []models.Address) []interface{} {
	out := make([]interface{}, 0, len(addrs))
	for _, a := range addrs {
		m := map[string]interface{}{"email": a.Email}
		if a.Name != "" {
			m["name"] = a.Name
		}
		out = append(out, m)
	}
	return out
}

func stringList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
