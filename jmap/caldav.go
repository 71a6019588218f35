package jmap

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"splitmail/utils"
)

// CalDAVEnabled reports whether a calendar server is configured
func (s *Session) CalDAVEnabled() bool {
	return s.caldavURL != ""
}

func (s *Session) caldavEventURL(uid string) string {
	base := strings.TrimRight(s.caldavURL, "/")
	return fmt.Sprintf("%s/%s/Default/%s.ics", base, url.PathEscape(s.username), url.PathEscape(uid))
}

// AddToCalendar stores an event on the calendar server. Create
// only: an event already stored under the same UID is left alone.
func (s *Session) AddToCalendar(ctx context.Context, icsData, uid string) error {
	return s.putCalendarEvent(ctx, icsData, uid, false)
}

// UpdateInCalendar stores an event, replacing any existing copy
// under the same UID. Used after answering an invitation, so the
// stored copy reflects the new participation status.
func (s *Session) UpdateInCalendar(ctx context.Context, icsData, uid string) error {
	return s.putCalendarEvent(ctx, icsData, uid, true)
}

func (s *Session) putCalendarEvent(ctx context.Context, icsData, uid string, overwrite bool) error {
	if !s.CalDAVEnabled() {
		utils.Log.Debug("CalDAV not configured, skipping add of %s", uid)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.caldavEventURL(uid), strings.NewReader(icsData))
	if err != nil {
		return utils.InternalServerError("building calendar request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	if !overwrite {
		req.Header.Set("If-None-Match", "*")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return utils.NetworkError("calendar server unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPreconditionFailed:
		// Already on the calendar.
		utils.Log.Debug("Event %s already on calendar", uid)
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return utils.UnauthorizedError("calendar server rejected credentials", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return utils.NetworkError(fmt.Sprintf("calendar server returned %d", resp.StatusCode), nil)
	}
	utils.Log.Info("Added event %s to calendar", uid)
	return nil
}

// RemoveFromCalendar deletes an event by UID. A missing event is
// not an error.
func (s *Session) RemoveFromCalendar(ctx context.Context, uid string) error {
	if !s.CalDAVEnabled() {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.caldavEventURL(uid), nil)
	if err != nil {
		return utils.InternalServerError("building calendar request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return utils.NetworkError("calendar server unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return utils.UnauthorizedError("calendar server rejected credentials", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return utils.NetworkError(fmt.Sprintf("calendar server returned %d", resp.StatusCode), nil)
	}
	utils.Log.Info("Removed event %s from calendar", uid)
	return nil
}
