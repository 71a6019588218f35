package middleware

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/text/language"

	"splitmail/utils"
)

var supportedLanguages = language.NewMatcher([]language.Tag{
	language.English,
	language.Japanese,
})

// LocaleMiddleware detects and sets the request's locale. Query
// parameter wins, then cookie, then Accept-Language negotiation.
func LocaleMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		lang := c.Query("lang")
		if lang == "" {
			lang = c.Cookies("lang")
		}
		if lang == "" {
			tag, _ := language.MatchStrings(supportedLanguages, c.Get("Accept-Language"))
			base, _ := tag.Base()
			lang = base.String()
		}

		if lang != "en" && lang != "ja" {
			lang = "en"
		}

		c.Locals("localizer", utils.GetLocalizer(lang))
		c.Locals("lang", lang)

		return c.Next()
	}
}
