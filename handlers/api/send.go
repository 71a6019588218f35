package api

import (
	"github.com/gofiber/fiber/v2"

	"splitmail/jmap"
	"splitmail/models"
	"splitmail/utils"
)

// SendHandler accepts outgoing messages
type SendHandler struct {
	session  *jmap.Session
	notifier *NotificationHandler
}

// NewSendHandler creates a new send handler
func NewSendHandler(session *jmap.Session, notifier *NotificationHandler) *SendHandler {
	return &SendHandler{session: session, notifier: notifier}
}

// Send creates and submits a message. A missing text body is
// derived from the HTML body so every message keeps a readable
// plain part.
func (h *SendHandler) Send(c *fiber.Ctx) error {
	var sub models.Submission
	if err := c.BodyParser(&sub); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}

	if len(sub.To) == 0 {
		return utils.BadRequestError("at least one recipient is required", nil)
	}
	for _, addr := range append(append(append([]models.Address{}, sub.To...), sub.Cc...), sub.Bcc...) {
		if addr.Email == "" {
			return utils.BadRequestError("recipient without address", nil)
		}
	}
	if sub.CalendarICS != "" && sub.HTMLBody != "" {
		// The two body shapes cannot be combined in one message.
		return utils.BadRequestError("html_body and calendar_ics cannot be combined", nil)
	}

	if sub.TextBody == "" && sub.HTMLBody != "" {
		sub.TextBody = utils.HTMLToText(sub.HTMLBody)
	}
	if sub.TextBody == "" && sub.HTMLBody == "" {
		return utils.BadRequestError("message body is required", nil)
	}

	id, err := h.session.SendEmail(c.Context(), &sub)
	if err != nil {
		return err
	}

	h.notifier.Broadcast("sent", "Message sent", fiber.Map{"id": id})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"status": "sent", "id": id})
}

// Identities lists the account's sending identities
func (h *SendHandler) Identities(c *fiber.Ctx) error {
	identities, err := h.session.Identities(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"identities": identities})
}
