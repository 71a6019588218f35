package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// queryInt reads an integer query parameter with bounds
func queryInt(c *fiber.Ctx, name string, def, min, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// unsubscribeTarget is one actionable entry of a List-Unsubscribe
// header: either a mailto recipient or a URL to visit.
type unsubscribeTarget struct {
	MailTo  string
	Subject string
	URL     string
}

// parseListUnsubscribe picks the first usable target from a
// List-Unsubscribe header. Mailto entries win over http ones
// because they can be acted on without the user.
func parseListUnsubscribe(header string) (unsubscribeTarget, bool) {
	var httpTarget unsubscribeTarget
	haveHTTP := false

	for _, entry := range strings.Split(header, ",") {
		entry = strings.TrimSpace(entry)
		entry = strings.TrimPrefix(entry, "<")
		entry = strings.TrimSuffix(entry, ">")

		switch {
		case strings.HasPrefix(strings.ToLower(entry), "mailto:"):
			u, err := url.Parse(entry)
			if err != nil || u.Opaque == "" {
				continue
			}
			return unsubscribeTarget{
				MailTo:  u.Opaque,
				Subject: u.Query().Get("subject"),
			}, true
		case strings.HasPrefix(strings.ToLower(entry), "http://"),
			strings.HasPrefix(strings.ToLower(entry), "https://"):
			if !haveHTTP {
				httpTarget = unsubscribeTarget{URL: entry}
				haveHTTP = true
			}
		}
	}
	return httpTarget, haveHTTP
}

// sanitizeFilename keeps a client-supplied download name safe to
// echo into headers
func sanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." {
		return "attachment"
	}
	return name
}
