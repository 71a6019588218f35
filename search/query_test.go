package search

import (
	"testing"
	"time"
)

func TestParseQueryFreeText(t *testing.T) {
	q := ParseQuery("hello world")
	if q.Text != "hello world" {
		t.Errorf("text = %q", q.Text)
	}
	empty := ParseQuery("")
	if !empty.IsEmpty() {
		t.Error("empty input should give an empty query")
	}
}

func TestParseQueryOperators(t *testing.T) {
	q := ParseQuery("from:alice@example.com to:bob subject:report has:attachment is:unread")
	if len(q.From) != 1 || q.From[0] != "alice@example.com" {
		t.Errorf("from = %q", q.From)
	}
	if len(q.To) != 1 || q.To[0] != "bob" {
		t.Errorf("to = %q", q.To)
	}
	if len(q.Subject) != 1 || q.Subject[0] != "report" {
		t.Errorf("subject = %q", q.Subject)
	}
	if !q.HasAttachment {
		t.Error("has:attachment not recognized")
	}
	if q.IsUnread == nil || !*q.IsUnread {
		t.Error("is:unread not recognized")
	}
	if q.Text != "" {
		t.Errorf("text = %q, want empty", q.Text)
	}
}

func TestParseQueryQuotedValues(t *testing.T) {
	q := ParseQuery(`subject:"quarterly report" urgent`)
	if len(q.Subject) != 1 || q.Subject[0] != "quarterly report" {
		t.Errorf("subject = %q", q.Subject)
	}
	if q.Text != "urgent" {
		t.Errorf("text = %q", q.Text)
	}

	// Unterminated quote runs to the end of the input.
	q = ParseQuery(`subject:"no closing quote here`)
	if len(q.Subject) != 1 || q.Subject[0] != "no closing quote here" {
		t.Errorf("subject = %q", q.Subject)
	}
}

func TestParseQueryRepeatedClauses(t *testing.T) {
	q := ParseQuery("from:a@b.com from:c@d.com subject:one subject:two")
	if len(q.From) != 2 || q.From[0] != "a@b.com" || q.From[1] != "c@d.com" {
		t.Errorf("from = %q, repeated clauses must accumulate", q.From)
	}
	if len(q.Subject) != 2 {
		t.Errorf("subject = %q", q.Subject)
	}

	f := ToFilter(q)
	if f["operator"] != "AND" {
		t.Fatalf("filter = %v", f)
	}
	conds := f["conditions"].([]interface{})
	if len(conds) != 4 {
		t.Fatalf("conditions = %v, want one per clause", conds)
	}
	if c := conds[0].(map[string]interface{}); c["from"] != "a@b.com" {
		t.Errorf("first condition = %v", c)
	}
	if c := conds[1].(map[string]interface{}); c["from"] != "c@d.com" {
		t.Errorf("second condition = %v", c)
	}
}

func TestParseQueryIsValues(t *testing.T) {
	q := ParseQuery("is:read")
	if q.IsUnread == nil || *q.IsUnread {
		t.Error("is:read should give IsUnread=false")
	}
	q = ParseQuery("is:starred")
	if q.IsFlagged == nil || !*q.IsFlagged {
		t.Error("is:starred should give IsFlagged=true")
	}
	q = ParseQuery("is:unflagged")
	if q.IsFlagged == nil || *q.IsFlagged {
		t.Error("is:unflagged should give IsFlagged=false")
	}
	// Unknown is: value falls back to free text.
	q = ParseQuery("is:blue")
	if q.IsUnread != nil || q.IsFlagged != nil || q.Text != "is:blue" {
		t.Errorf("unknown is: should be text, got %+v", q)
	}
}

func TestParseQueryDates(t *testing.T) {
	q := ParseQuery("before:2026-03-01 after:2026-01-15")
	if q.Before == nil || !q.Before.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("before = %v", q.Before)
	}
	if q.After == nil || !q.After.Equal(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("after = %v", q.After)
	}

	// Bad dates become free text.
	q = ParseQuery("before:notadate")
	if q.Before != nil || q.Text != "before:notadate" {
		t.Errorf("bad date should be text, got %+v", q)
	}
}

func TestParseQueryRelativeAges(t *testing.T) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	q := ParseQuery("newer_than:7d")
	if q.After == nil || !q.After.Equal(today.AddDate(0, 0, -7)) {
		t.Errorf("newer_than:7d after = %v", q.After)
	}

	q = ParseQuery("older_than:2w")
	if q.Before == nil || !q.Before.Equal(today.AddDate(0, 0, -14)) {
		t.Errorf("older_than:2w before = %v", q.Before)
	}

	q = ParseQuery("newer_than:1m")
	if q.After == nil || !q.After.Equal(today.AddDate(0, -1, 0)) {
		t.Errorf("newer_than:1m after = %v", q.After)
	}

	// Zero and negative counts are rejected.
	q = ParseQuery("newer_than:0d")
	if q.After != nil || q.Text != "newer_than:0d" {
		t.Errorf("zero age should be text, got %+v", q)
	}

	// Absolute cut-off dates, short and long year forms.
	q = ParseQuery("older_than:03-15-26")
	if q.Before == nil || !q.Before.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("older_than absolute = %v", q.Before)
	}
	q = ParseQuery("newer_than:03-15-2026")
	if q.After == nil || !q.After.Equal(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("newer_than absolute = %v", q.After)
	}
}

func TestParseQueryUnknownOperator(t *testing.T) {
	q := ParseQuery("label:work hello")
	if q.Text != "label:work hello" {
		t.Errorf("text = %q", q.Text)
	}
}

func TestToFilterEmpty(t *testing.T) {
	f := ToFilter(ParseQuery(""))
	if len(f) != 0 {
		t.Errorf("empty query filter = %v", f)
	}
}

func TestToFilterSingleCondition(t *testing.T) {
	f := ToFilter(ParseQuery("from:alice@example.com"))
	if f["from"] != "alice@example.com" {
		t.Errorf("filter = %v", f)
	}
	if _, ok := f["operator"]; ok {
		t.Error("single condition must not be wrapped in an operator")
	}
}

func TestToFilterMultipleConditions(t *testing.T) {
	f := ToFilter(ParseQuery("from:alice is:unread report"))
	if f["operator"] != "AND" {
		t.Errorf("operator = %v", f["operator"])
	}
	conds, ok := f["conditions"].([]interface{})
	if !ok || len(conds) != 3 {
		t.Fatalf("conditions = %v", f["conditions"])
	}
	// Fixed ordering: text first, then from, then keyword.
	if c := conds[0].(map[string]interface{}); c["text"] != "report" {
		t.Errorf("first condition = %v", c)
	}
	if c := conds[1].(map[string]interface{}); c["from"] != "alice" {
		t.Errorf("second condition = %v", c)
	}
	if c := conds[2].(map[string]interface{}); c["notKeyword"] != "$seen" {
		t.Errorf("third condition = %v", c)
	}
}

func TestToFilterKeywordsAndDates(t *testing.T) {
	f := ToFilter(ParseQuery("is:read"))
	if f["hasKeyword"] != "$seen" {
		t.Errorf("is:read filter = %v", f)
	}

	f = ToFilter(ParseQuery("before:2026-03-01"))
	if f["before"] != "2026-03-01T00:00:00Z" {
		t.Errorf("before filter = %v", f)
	}
}
