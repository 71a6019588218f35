package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"splitmail/calendar"
	"splitmail/config"
	"splitmail/jmap"
	"splitmail/models"
	"splitmail/search"
	"splitmail/splits"
	"splitmail/utils"
)

// backgroundTimeout bounds the fire-and-forget calendar work that
// outlives the originating request
const backgroundTimeout = 30 * time.Second

// EmailHandler serves the message list and per-message actions
type EmailHandler struct {
	session  *jmap.Session
	config   *config.Config
	notifier *NotificationHandler
}

// NewEmailHandler creates a new email handler
func NewEmailHandler(session *jmap.Session, cfg *config.Config, notifier *NotificationHandler) *EmailHandler {
	return &EmailHandler{session: session, config: cfg, notifier: notifier}
}

// ListMailboxes returns the cached mailbox list
func (h *EmailHandler) ListMailboxes(c *fiber.Ctx) error {
	if !h.session.Connected() {
		return utils.NotConnectedError()
	}

	const cacheKey = "mailboxes"
	if cached, ok := utils.GlobalCache.Get(cacheKey); ok {
		return c.JSON(fiber.Map{"mailboxes": cached})
	}

	if err := h.session.RefreshMailboxes(c.Context()); err != nil {
		return err
	}
	mailboxes := h.session.Mailboxes()
	utils.GlobalCache.Set(cacheKey, mailboxes, 30*time.Second)
	return c.JSON(fiber.Map{"mailboxes": mailboxes})
}

// resolveMailbox turns the mailbox query parameter (a role name,
// defaulting to inbox) into a mailbox id.
func (h *EmailHandler) resolveMailbox(c *fiber.Ctx) (models.Mailbox, error) {
	role := c.Query("mailbox", "inbox")
	return h.session.MailboxByRole(role)
}

// ListEmails lists messages in a mailbox, optionally narrowed by a
// search query and a split tab. Split filtering happens after the
// fetch, so the window is over-fetched to keep tabs reasonably full.
func (h *EmailHandler) ListEmails(c *fiber.Ctx) error {
	limit := queryInt(c, "limit", 50, 1, 200)
	offset := queryInt(c, "offset", 0, 0, 10000)
	splitID := c.Query("split")
	query := c.Query("q")

	mailbox, err := h.resolveMailbox(c)
	if err != nil {
		return err
	}

	filter := map[string]interface{}{"inMailbox": mailbox.ID}
	if query != "" {
		if searchFilter := search.ToFilter(search.ParseQuery(query)); len(searchFilter) > 0 {
			filter = map[string]interface{}{
				"operator":   "AND",
				"conditions": []interface{}{filter, searchFilter},
			}
		}
	}

	fetchLimit := limit
	if splitID != "" {
		fetchLimit = limit * 10
		if fetchLimit > 500 {
			fetchLimit = 500
		}
	}

	ids, err := h.session.QueryEmails(c.Context(), filter, fetchLimit, offset)
	if err != nil {
		return err
	}
	emails, err := h.session.GetEmails(c.Context(), ids, false)
	if err != nil {
		return err
	}

	if splitID != "" {
		cfg, err := splits.Load(h.config.Splits.Path)
		if err != nil {
			return utils.InternalServerError("loading splits", err)
		}
		emails = splits.FilterBySplit(emails, splitID, cfg.Splits)
		if len(emails) > limit {
			emails = emails[:limit]
		}
	}
	if emails == nil {
		emails = []models.Email{}
	}

	return c.JSON(fiber.Map{
		"emails":  emails,
		"mailbox": mailbox.ID,
		"offset":  offset,
	})
}

// GetEmail returns one message with its full body. Opening a
// message with a calendar part also syncs it to the calendar in
// the background.
func (h *EmailHandler) GetEmail(c *fiber.Ctx) error {
	email, err := h.session.GetEmail(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	if email.HTMLBody != "" {
		email.HTMLBody = utils.SanitizeHTML(email.HTMLBody)
	}

	if email.HasCalendar() {
		go h.syncCalendarEvent(*email)
	}

	return c.JSON(email)
}

// syncCalendarEvent mirrors an invitation onto the calendar server:
// requests are added, cancellations removed. Failures are logged
// and never surface to the reader.
func (h *EmailHandler) syncCalendarEvent(email models.Email) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()

	data, err := h.session.CalendarData(ctx, &email)
	if err != nil {
		utils.Log.Warn("Fetching calendar part of %s: %v", email.ID, err)
		return
	}
	event := calendar.ParseICS(data)
	if event == nil {
		utils.Log.Debug("Message %s has an unparsable calendar part", email.ID)
		return
	}

	switch {
	case event.IsCancellation():
		if err := h.session.RemoveFromCalendar(ctx, event.UID); err != nil {
			utils.Log.Warn("Removing cancelled event %s: %v", event.UID, err)
		}
	case event.Method == "REQUEST":
		if err := h.session.AddToCalendar(ctx, data, event.UID); err != nil {
			utils.Log.Warn("Adding event %s to calendar: %v", event.UID, err)
		}
	}
}

// MarkRead sets the seen keyword on a message. The success flag
// reports whether the store confirmed the change.
func (h *EmailHandler) MarkRead(c *fiber.Ctx) error {
	ok, err := h.session.MarkRead(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": ok})
}

// MarkUnread clears the seen keyword on a message
func (h *EmailHandler) MarkUnread(c *fiber.Ctx) error {
	ok, err := h.session.MarkUnread(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": ok})
}

// ToggleFlag flips or sets the flagged keyword
func (h *EmailHandler) ToggleFlag(c *fiber.Ctx) error {
	id := c.Params("id")

	var body struct {
		Flagged *bool `json:"flagged"`
	}
	c.BodyParser(&body)

	flagged := false
	if body.Flagged != nil {
		flagged = *body.Flagged
	} else {
		email, err := h.session.GetEmail(c.Context(), id)
		if err != nil {
			return err
		}
		flagged = !email.IsFlagged()
	}

	ok, err := h.session.SetFlagged(c.Context(), id, flagged)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": ok, "flagged": flagged})
}

// Archive moves a message to the archive mailbox
func (h *EmailHandler) Archive(c *fiber.Ctx) error {
	id := c.Params("id")
	ok, err := h.session.Archive(c.Context(), id)
	if err != nil {
		return err
	}
	if ok {
		h.notifier.Broadcast("archived", "Message archived", fiber.Map{"id": id})
	}
	return c.JSON(fiber.Map{"success": ok})
}

// Trash moves a message to the trash mailbox
func (h *EmailHandler) Trash(c *fiber.Ctx) error {
	id := c.Params("id")
	ok, err := h.session.Trash(c.Context(), id)
	if err != nil {
		return err
	}
	if ok {
		h.notifier.Broadcast("trashed", "Message moved to trash", fiber.Map{"id": id})
	}
	return c.JSON(fiber.Map{"success": ok})
}

// Move puts a message into an arbitrary mailbox
func (h *EmailHandler) Move(c *fiber.Ctx) error {
	var body struct {
		MailboxID string `json:"mailbox_id"`
		Role      string `json:"role"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}

	target := body.MailboxID
	if target == "" && body.Role != "" {
		mb, err := h.session.MailboxByRole(body.Role)
		if err != nil {
			return err
		}
		target = mb.ID
	}
	if target == "" {
		return utils.BadRequestError("mailbox_id or role is required", nil)
	}

	ok, err := h.session.MoveToMailbox(c.Context(), c.Params("id"), target)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": ok})
}

// BatchArchive archives many messages in one store round trip
func (h *EmailHandler) BatchArchive(c *fiber.Ctx) error {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.BodyParser(&body); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}
	if len(body.IDs) == 0 {
		return utils.BadRequestError("no message ids given", nil)
	}

	ok, err := h.session.ArchiveMany(c.Context(), body.IDs)
	if err != nil {
		return err
	}
	if ok {
		h.notifier.Broadcast("archived", "Messages archived", fiber.Map{"count": len(body.IDs)})
	}
	return c.JSON(fiber.Map{"success": ok, "archived": len(body.IDs)})
}

// Unsubscribe acts on the message's List-Unsubscribe header. A
// mailto target is mailed and the message archived; an http-only
// target is returned for the user to open.
func (h *EmailHandler) Unsubscribe(c *fiber.Ctx) error {
	email, err := h.session.GetEmail(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	if email.ListUnsubscribe == "" {
		return utils.BadRequestError("message has no unsubscribe information", nil)
	}

	target, ok := parseListUnsubscribe(email.ListUnsubscribe)
	if !ok {
		return utils.BadRequestError("unsubscribe header has no usable target", nil)
	}

	if target.MailTo == "" {
		return c.JSON(fiber.Map{"status": "manual", "url": target.URL})
	}

	subject := target.Subject
	if subject == "" {
		subject = "unsubscribe"
	}
	sub := &models.Submission{
		To:       []models.Address{{Email: target.MailTo}},
		Subject:  subject,
		TextBody: "Please unsubscribe me from this list.",
	}
	if _, err := h.session.SendEmail(c.Context(), sub); err != nil {
		return err
	}
	if _, err := h.session.Archive(c.Context(), email.ID); err != nil {
		return err
	}

	h.notifier.Broadcast("archived", "Unsubscribed and archived", fiber.Map{"id": email.ID})
	return c.JSON(fiber.Map{"status": "sent"})
}
