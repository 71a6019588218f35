package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/template/html/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"
	"github.com/nicksnyder/go-i18n/v2/i18n"

	"splitmail/config"
	"splitmail/handlers/api"
	"splitmail/jmap"
	"splitmail/middleware"
	"splitmail/models"
	"splitmail/splits"
	"splitmail/storage"
	"splitmail/utils"
)

// Helper function to determine if request is an API request
func isAPIRequest(c *fiber.Ctx) bool {
	if c == nil {
		return false
	}
	path := c.Path()
	return len(path) >= 4 && path[:4] == "/api"
}

// errorMessageKey maps an error code to the localized message shown
// to clients. Auth and upstream failures stay generic on purpose;
// the details go to the log only.
func errorMessageKey(code int) string {
	switch code {
	case fiber.StatusUnauthorized:
		return "error_auth"
	case fiber.StatusBadGateway:
		return "error_network"
	case fiber.StatusServiceUnavailable:
		return "error_not_connected"
	case fiber.StatusNotFound:
		return "error_404"
	default:
		return "error_500"
	}
}

func main() {
	// .env is optional, real environments set variables directly.
	godotenv.Load()

	cfg, err := config.LoadConfig("config.toml")
	if err != nil {
		utils.Log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	utils.Log.SetLevel(utils.ParseLevel(cfg.Server.LogLevel))
	utils.Log.Info("Initializing splitmail...")

	if err := utils.InitI18n(); err != nil {
		utils.Log.Error("Failed to initialize i18n: %v", err)
	}

	// Template engine for the page shells.
	engine := html.New("./templates", ".html")
	engine.AddFunc("lower", strings.ToLower)
	engine.AddFunc("t", func(messageID string) string {
		return utils.T(utils.Localizer, messageID)
	})
	engine.AddFunc("formatSize", func(size int64) string {
		const unit = 1024
		if size < unit {
			return fmt.Sprintf("%d B", size)
		}
		div, exp := int64(unit), 0
		for n := size / unit; n >= unit; n /= unit {
			div *= unit
			exp++
		}
		return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
	})

	app := fiber.New(fiber.Config{
		Views:       engine,
		ViewsLayout: "layouts/main",
		BodyLimit:   cfg.Server.BodyLimit(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			message := err.Error()

			if appErr, ok := utils.AsAppError(err); ok {
				code = appErr.Code
				if code >= 500 || code == fiber.StatusUnauthorized {
					// Hide upstream details from the client.
					utils.Log.Error("Request failed: %v", appErr)
					localizer, _ := c.Locals("localizer").(*i18n.Localizer)
					message = utils.T(localizer, errorMessageKey(code))
				}
			} else if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}

			if isAPIRequest(c) {
				return c.Status(code).JSON(fiber.Map{"error": message})
			}
			return c.Status(code).Render("error", fiber.Map{
				"Error": message,
				"Code":  code,
			})
		},
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "SAMEORIGIN",
		ReferrerPolicy:        "no-referrer",
		ContentSecurityPolicy: "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:;",
	}))
	app.Use(middleware.LocaleMiddleware())
	app.Use(middleware.RateLimiter(cfg.Server.RateRequests, cfg.Server.RateWindow()))

	app.Static("/assets", "./assets", fiber.Static{
		Compress:      true,
		CacheDuration: 24 * time.Hour,
	})

	// Connect to the mail store. Failure is not fatal: endpoints
	// report not-connected until a later start succeeds.
	session := jmap.NewSession(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout())
	if err := session.Connect(ctx); err != nil {
		utils.Log.Error("Mail store connection failed: %v", err)
	}
	cancel()

	seedSplits(session, cfg)

	blobCache, err := storage.OpenBlobCache(cfg.Server.DataDir)
	if err != nil {
		utils.Log.Warn("Blob cache unavailable: %v", err)
		blobCache = nil
	} else {
		defer blobCache.Close()
	}

	// Handlers
	notifier := api.NewNotificationHandler()
	emailHandler := api.NewEmailHandler(session, cfg, notifier)
	sendHandler := api.NewSendHandler(session, notifier)
	calendarHandler := api.NewCalendarHandler(session, notifier)
	attachmentHandler := api.NewAttachmentHandler(session, blobCache)
	splitsHandler := api.NewSplitsHandler(session, cfg, notifier)
	i18nHandler := &api.I18nHandler{}

	// Page shell
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{
			"Connected": session.Connected(),
		})
	})

	apiRoutes := app.Group("/api")
	{
		apiRoutes.Get("/health", func(c *fiber.Ctx) error {
			return c.JSON(fiber.Map{
				"status":    "ok",
				"connected": session.Connected(),
				"time":      time.Now().Format(time.RFC3339),
			})
		})

		apiRoutes.Get("/mailboxes", emailHandler.ListMailboxes)
		apiRoutes.Get("/identities", sendHandler.Identities)

		apiRoutes.Get("/emails", emailHandler.ListEmails)
		apiRoutes.Post("/emails/archive", emailHandler.BatchArchive)
		apiRoutes.Get("/emails/:id", emailHandler.GetEmail)
		apiRoutes.Post("/emails/:id/read", emailHandler.MarkRead)
		apiRoutes.Post("/emails/:id/unread", emailHandler.MarkUnread)
		apiRoutes.Post("/emails/:id/flag", emailHandler.ToggleFlag)
		apiRoutes.Post("/emails/:id/archive", emailHandler.Archive)
		apiRoutes.Post("/emails/:id/trash", emailHandler.Trash)
		apiRoutes.Post("/emails/:id/move", emailHandler.Move)
		apiRoutes.Post("/emails/:id/unsubscribe", emailHandler.Unsubscribe)

		apiRoutes.Get("/emails/:id/event", calendarHandler.GetEvent)
		apiRoutes.Post("/emails/:id/rsvp", calendarHandler.RSVP)
		apiRoutes.Post("/emails/:id/calendar", calendarHandler.AddToCalendar)

		apiRoutes.Get("/emails/:id/attachments/:blobId", attachmentHandler.Download)
		apiRoutes.Post("/attachments", attachmentHandler.Upload)

		apiRoutes.Post("/send", sendHandler.Send)

		apiRoutes.Get("/splits", splitsHandler.List)
		apiRoutes.Post("/splits", splitsHandler.Create)
		apiRoutes.Get("/splits/counts", splitsHandler.Counts)
		apiRoutes.Put("/splits/:id", splitsHandler.Update)
		apiRoutes.Delete("/splits/:id", splitsHandler.Delete)

		apiRoutes.Get("/i18n/:lang", i18nHandler.GetTranslations)

		apiRoutes.Get("/notifications/sse", notifier.HandleSSE)
		apiRoutes.Use("/notifications/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		apiRoutes.Get("/notifications/ws", websocket.New(notifier.HandleWebSocket))
	}

	// 404 handler for undefined routes
	app.Use(func(c *fiber.Ctx) error {
		localizer, _ := c.Locals("localizer").(*i18n.Localizer)
		if isAPIRequest(c) {
			return c.Status(404).JSON(fiber.Map{
				"error": utils.T(localizer, "error_404"),
			})
		}
		return c.Status(404).Render("error", fiber.Map{
			"Error": utils.T(localizer, "error_404"),
			"Code":  404,
		})
	})

	utils.Log.Info("Starting server on %s...", cfg.Server.Addr())
	if err := app.Listen(cfg.Server.Addr()); err != nil {
		utils.Log.Error("Error starting server: %v", err)
	}
}

// seedSplits derives a starter rule set from the account's sending
// identities on first start, when no rule set exists yet.
func seedSplits(session *jmap.Session, cfg *config.Config) {
	if splits.ReadOnly() || !session.Connected() {
		return
	}
	if _, err := os.Stat(cfg.Splits.Path); err == nil || !os.IsNotExist(err) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout())
	defer cancel()

	identities, err := session.Identities(ctx)
	if err != nil {
		utils.Log.Warn("Seeding splits: %v", err)
		return
	}
	seeded := splits.FromIdentities(identities, cfg.Store.Username)
	if len(seeded) == 0 {
		return
	}
	if err := splits.Save(cfg.Splits.Path, models.SplitsConfig{Splits: seeded}); err != nil {
		utils.Log.Warn("Saving seeded splits: %v", err)
		return
	}
	utils.Log.Info("Seeded %d split(s) from identities", len(seeded))
}
