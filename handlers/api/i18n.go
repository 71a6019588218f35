package api

import (
	"github.com/gofiber/fiber/v2"

	"splitmail/utils"
)

// I18nHandler handles i18n-related requests
type I18nHandler struct{}

// GetTranslations returns translations for the client-side JavaScript
func (h *I18nHandler) GetTranslations(c *fiber.Ctx) error {
	lang := c.Params("lang")
	if lang != "en" && lang != "ja" {
		lang = "en"
	}

	localizer := utils.GetLocalizer(lang)

	keys := []string{
		"message_sent_success",
		"message_archived",
		"message_trashed",
		"message_unsubscribed",
		"rsvp_sent",
		"email_loading",
		"email_no_messages",
		"split_primary",
		"split_saved",
		"split_deleted",
		"error_auth",
		"error_network",
		"error_not_connected",
		"error_404",
		"error_500",
	}
	translations := make(map[string]string, len(keys))
	for _, key := range keys {
		translations[key] = utils.T(localizer, key)
	}

	return c.JSON(translations)
}
