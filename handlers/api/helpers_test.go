package api

import "testing"

func TestParseListUnsubscribeMailto(t *testing.T) {
	target, ok := parseListUnsubscribe("<mailto:leave@list.example?subject=unsubscribe>")
	if !ok {
		t.Fatal("expected a target")
	}
	if target.MailTo != "leave@list.example" {
		t.Errorf("mailto = %q", target.MailTo)
	}
	if target.Subject != "unsubscribe" {
		t.Errorf("subject = %q", target.Subject)
	}
}

func TestParseListUnsubscribeMailtoWinsOverHTTP(t *testing.T) {
	header := "<https://list.example/unsub?u=1>, <mailto:leave@list.example>"
	target, ok := parseListUnsubscribe(header)
	if !ok || target.MailTo != "leave@list.example" {
		t.Errorf("mailto should win, got %+v", target)
	}
}

func TestParseListUnsubscribeHTTPOnly(t *testing.T) {
	target, ok := parseListUnsubscribe("<https://list.example/unsub?u=1>")
	if !ok || target.URL != "https://list.example/unsub?u=1" || target.MailTo != "" {
		t.Errorf("got %+v", target)
	}
}

func TestParseListUnsubscribeGarbage(t *testing.T) {
	if _, ok := parseListUnsubscribe("nothing useful here"); ok {
		t.Error("garbage header should yield no target")
	}
	if _, ok := parseListUnsubscribe(""); ok {
		t.Error("empty header should yield no target")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../../etc/passwd"); got != ".._.._etc_passwd" {
		t.Errorf("sanitizeFilename = %q", got)
	}
	if got := sanitizeFilename(""); got != "attachment" {
		t.Errorf("empty name = %q", got)
	}
	if got := sanitizeFilename("report.pdf"); got != "report.pdf" {
		t.Errorf("clean name = %q", got)
	}
}
