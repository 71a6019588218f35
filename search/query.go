// Package search turns search box input into the filter objects
// the mail store's query method understands.
package search

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"splitmail/models"
)

// ParseQuery interprets the operator mini-language of the search
// box. Tokens that are not recognized operators, and operator
// values that do not parse, fall through into free text.
func ParseQuery(input string) models.ParsedQuery {
	var q models.ParsedQuery
	var text []string

	for _, token := range tokenize(input) {
		op, value, hasOp := strings.Cut(token, ":")
		if !hasOp {
			text = append(text, unquote(token))
			continue
		}

		value = unquote(value)
		switch strings.ToLower(op) {
		case "from":
			if value != "" {
				q.From = append(q.From, value)
				continue
			}
		case "to":
			if value != "" {
				q.To = append(q.To, value)
				continue
			}
		case "subject":
			if value != "" {
				q.Subject = append(q.Subject, value)
				continue
			}
		case "has":
			if strings.EqualFold(value, "attachment") {
				q.HasAttachment = true
				continue
			}
		case "is":
			switch strings.ToLower(value) {
			case "unread":
				q.IsUnread = boolPtr(true)
				continue
			case "read":
				q.IsUnread = boolPtr(false)
				continue
			case "flagged", "starred":
				q.IsFlagged = boolPtr(true)
				continue
			case "unflagged":
				q.IsFlagged = boolPtr(false)
				continue
			}
		case "before":
			if t, ok := parseDate(value); ok {
				q.Before = &t
				continue
			}
		case "after":
			if t, ok := parseDate(value); ok {
				q.After = &t
				continue
			}
		case "newer_than":
			if t, ok := parseAge(value); ok {
				q.After = &t
				continue
			}
		case "older_than":
			if t, ok := parseAge(value); ok {
				q.Before = &t
				continue
			}
		}
		// Unknown operator or bad value, keep the raw token.
		text = append(text, unquote(token))
	}

	q.Text = strings.Join(text, " ")
	return q
}

// tokenize splits on whitespace outside double quotes. An
// unterminated quote runs to the end of the input.
func tokenize(input string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	for _, r := range input {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens
}

func unquote(s string) string {
	return strings.Trim(s, `"`)
}

func boolPtr(b bool) *bool {
	return &b
}

// parseDate accepts YYYY-MM-DD, midnight UTC
func parseDate(value string) (time.Time, bool) {
	t, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// parseAge accepts a relative age (Nd, Nw, Nm with N > 0) or an
// absolute MM-DD-YY / MM-DD-YYYY date, returning the cut-off day
// at midnight UTC.
func parseAge(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	unit := value[len(value)-1]
	if unit == 'd' || unit == 'w' || unit == 'm' {
		n, err := strconv.Atoi(value[:len(value)-1])
		if err == nil && n > 0 {
			now := time.Now().UTC()
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
			switch unit {
			case 'd':
				return today.AddDate(0, 0, -n), true
			case 'w':
				return today.AddDate(0, 0, -7*n), true
			case 'm':
				return today.AddDate(0, -n, 0), true
			}
		}
		return time.Time{}, false
	}

	for _, layout := range []string{"01-02-06", "01-02-2006"} {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ToFilter translates a parsed query into the store's filter
// object. No conditions gives an empty filter, one condition is
// passed bare, several are joined under an AND operator.
func ToFilter(q models.ParsedQuery) map[string]interface{} {
	var conds []map[string]interface{}

	if q.Text != "" {
		conds = append(conds, map[string]interface{}{"text": q.Text})
	}
	for _, from := range q.From {
		conds = append(conds, map[string]interface{}{"from": from})
	}
	for _, to := range q.To {
		conds = append(conds, map[string]interface{}{"to": to})
	}
	for _, subject := range q.Subject {
		conds = append(conds, map[string]interface{}{"subject": subject})
	}
	if q.HasAttachment {
		conds = append(conds, map[string]interface{}{"hasAttachment": true})
	}
	if q.Before != nil {
		conds = append(conds, map[string]interface{}{"before": formatInstant(*q.Before)})
	}
	if q.After != nil {
		conds = append(conds, map[string]interface{}{"after": formatInstant(*q.After)})
	}
	if q.IsUnread != nil {
		if *q.IsUnread {
			conds = append(conds, map[string]interface{}{"notKeyword": "$seen"})
		} else {
			conds = append(conds, map[string]interface{}{"hasKeyword": "$seen"})
		}
	}
	if q.IsFlagged != nil {
		if *q.IsFlagged {
			conds = append(conds, map[string]interface{}{"hasKeyword": "$flagged"})
		} else {
			conds = append(conds, map[string]interface{}{"notKeyword": "$flagged"})
		}
	}

	switch len(conds) {
	case 0:
		return map[string]interface{}{}
	case 1:
		return conds[0]
	default:
		anyConds := make([]interface{}, len(conds))
		for i, c := range conds {
			anyConds[i] = c
		}
		return map[string]interface{}{
			"operator":   "AND",
			"conditions": anyConds,
		}
	}
}

func formatInstant(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
