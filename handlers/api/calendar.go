package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"splitmail/calendar"
	"splitmail/jmap"
	"splitmail/models"
	"splitmail/utils"
)

// CalendarHandler answers invitations and manages the calendar
// bridge for individual messages.
type CalendarHandler struct {
	session  *jmap.Session
	notifier *NotificationHandler
}

// NewCalendarHandler creates a new calendar handler
func NewCalendarHandler(session *jmap.Session, notifier *NotificationHandler) *CalendarHandler {
	return &CalendarHandler{session: session, notifier: notifier}
}

// eventFromMessage loads and parses the calendar part of a message
func (h *CalendarHandler) eventFromMessage(c *fiber.Ctx, id string) (*models.Email, string, *models.CalendarEvent, error) {
	email, err := h.session.GetEmail(c.Context(), id)
	if err != nil {
		return nil, "", nil, err
	}
	data, err := h.session.CalendarData(c.Context(), email)
	if err != nil {
		return nil, "", nil, err
	}
	event := calendar.ParseICS(data)
	if event == nil {
		return nil, "", nil, utils.NotFoundError("message has no parsable calendar event", nil)
	}
	return email, data, event, nil
}

// RSVP answers an invitation: a METHOD:REPLY goes to the organizer
// and the stored copy of the event gets the new participation
// status in the background.
func (h *CalendarHandler) RSVP(c *fiber.Ctx) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}
	status, err := models.ParseRsvpStatus(body.Status)
	if err != nil {
		return utils.BadRequestError("status must be accepted, declined or tentative", err)
	}

	_, data, event, err := h.eventFromMessage(c, c.Params("id"))
	if err != nil {
		return err
	}
	if event.Organizer == "" {
		return utils.BadRequestError("event has no organizer to reply to", nil)
	}

	me := h.session.Username()
	name := ""
	for _, att := range event.Attendees {
		if strings.EqualFold(att.Email, me) {
			name = att.Name
			break
		}
	}

	reply := calendar.GenerateRSVP(event, me, name, status)
	sub := &models.Submission{
		To:          []models.Address{{Email: event.Organizer}},
		Subject:     rsvpSubject(event, status),
		TextBody:    rsvpBodyText(event, status),
		CalendarICS: reply,
	}
	if _, err := h.session.SendEmail(c.Context(), sub); err != nil {
		return err
	}

	// Update the stored event copy off the request path.
	updated := calendar.UpdatePartstat(data, me, status)
	uid := event.UID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		if err := h.session.UpdateInCalendar(ctx, updated, uid); err != nil {
			utils.Log.Warn("Updating event %s after rsvp: %v", uid, err)
		}
	}()

	h.notifier.Broadcast("rsvp", "Invitation answered", fiber.Map{"uid": uid, "status": string(status)})
	return c.JSON(fiber.Map{"status": "ok", "rsvp": string(status)})
}

// AddToCalendar stores a message's event on the calendar server
// explicitly, regardless of its method.
func (h *CalendarHandler) AddToCalendar(c *fiber.Ctx) error {
	_, data, event, err := h.eventFromMessage(c, c.Params("id"))
	if err != nil {
		return err
	}
	if err := h.session.AddToCalendar(c.Context(), data, event.UID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "ok", "uid": event.UID})
}

// GetEvent returns the parsed event of a message, for rendering an
// invitation card.
func (h *CalendarHandler) GetEvent(c *fiber.Ctx) error {
	_, _, event, err := h.eventFromMessage(c, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(event)
}

func rsvpSubject(event *models.CalendarEvent, status models.RsvpStatus) string {
	verb := map[models.RsvpStatus]string{
		models.RsvpAccepted:  "Accepted",
		models.RsvpDeclined:  "Declined",
		models.RsvpTentative: "Tentative",
	}[status]
	if event.Summary == "" {
		return verb + ": invitation"
	}
	return fmt.Sprintf("%s: %s", verb, event.Summary)
}

func rsvpBodyText(event *models.CalendarEvent, status models.RsvpStatus) string {
	switch status {
	case models.RsvpAccepted:
		return "I will attend."
	case models.RsvpDeclined:
		return "I will not attend."
	default:
		return "I might attend."
	}
}
