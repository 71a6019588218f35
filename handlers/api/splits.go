package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"splitmail/config"
	"splitmail/jmap"
	"splitmail/models"
	"splitmail/splits"
	"splitmail/utils"
)

// SplitsHandler manages the split inbox rule set
type SplitsHandler struct {
	session  *jmap.Session
	config   *config.Config
	notifier *NotificationHandler
}

// NewSplitsHandler creates a new splits handler
func NewSplitsHandler(session *jmap.Session, cfg *config.Config, notifier *NotificationHandler) *SplitsHandler {
	return &SplitsHandler{session: session, config: cfg, notifier: notifier}
}

func (h *SplitsHandler) load() (models.SplitsConfig, error) {
	cfg, err := splits.Load(h.config.Splits.Path)
	if err != nil {
		return cfg, utils.InternalServerError("loading splits", err)
	}
	return cfg, nil
}

func (h *SplitsHandler) save(cfg models.SplitsConfig) error {
	if err := splits.Save(h.config.Splits.Path, cfg); err != nil {
		return utils.InternalServerError("saving splits", err)
	}
	utils.GlobalCache.Delete("split_counts")
	h.notifier.Broadcast("splits_changed", "Split configuration changed", nil)
	return nil
}

func (h *SplitsHandler) requireWritable() error {
	if splits.ReadOnly() {
		return utils.BadRequestError("splits are read-only while configured via environment", nil)
	}
	return nil
}

// List returns all configured splits
func (h *SplitsHandler) List(c *fiber.Ctx) error {
	cfg, err := h.load()
	if err != nil {
		return err
	}
	if cfg.Splits == nil {
		cfg.Splits = []models.SplitInbox{}
	}
	return c.JSON(fiber.Map{"splits": cfg.Splits, "read_only": splits.ReadOnly()})
}

func validateSplit(s *models.SplitInbox) error {
	if s.Name == "" {
		return utils.BadRequestError("split name is required", nil)
	}
	if s.ID == models.PrimarySplitID {
		return utils.BadRequestError("the primary id is reserved", nil)
	}
	for _, f := range s.Filters {
		switch f.Kind {
		case models.FilterFrom, models.FilterTo, models.FilterSubject:
			if f.Pattern == "" {
				return utils.BadRequestError("filter pattern is required", nil)
			}
		case models.FilterCalendar, models.FilterHeader:
			// Pattern is ignored for these kinds.
		default:
			return utils.BadRequestError("unknown filter kind "+string(f.Kind), nil)
		}
	}
	return nil
}

// Create adds a split, minting an id when none is supplied
func (h *SplitsHandler) Create(c *fiber.Ctx) error {
	if err := h.requireWritable(); err != nil {
		return err
	}

	var split models.SplitInbox
	if err := c.BodyParser(&split); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}
	if split.ID == "" {
		split.ID = uuid.New().String()
	}
	if err := validateSplit(&split); err != nil {
		return err
	}

	cfg, err := h.load()
	if err != nil {
		return err
	}
	for _, existing := range cfg.Splits {
		if existing.ID == split.ID {
			return utils.BadRequestError("split id already exists", nil)
		}
	}
	cfg.Splits = append(cfg.Splits, split)

	if err := h.save(cfg); err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(split)
}

// Update replaces a split by id
func (h *SplitsHandler) Update(c *fiber.Ctx) error {
	if err := h.requireWritable(); err != nil {
		return err
	}

	var split models.SplitInbox
	if err := c.BodyParser(&split); err != nil {
		return utils.BadRequestError("invalid request body", err)
	}
	split.ID = c.Params("id")
	if err := validateSplit(&split); err != nil {
		return err
	}

	cfg, err := h.load()
	if err != nil {
		return err
	}
	for i, existing := range cfg.Splits {
		if existing.ID == split.ID {
			cfg.Splits[i] = split
			if err := h.save(cfg); err != nil {
				return err
			}
			return c.JSON(split)
		}
	}
	return utils.NotFoundError("split not found", nil)
}

// Delete removes a split by id
func (h *SplitsHandler) Delete(c *fiber.Ctx) error {
	if err := h.requireWritable(); err != nil {
		return err
	}

	id := c.Params("id")
	cfg, err := h.load()
	if err != nil {
		return err
	}
	for i, existing := range cfg.Splits {
		if existing.ID == id {
			cfg.Splits = append(cfg.Splits[:i], cfg.Splits[i+1:]...)
			if err := h.save(cfg); err != nil {
				return err
			}
			return c.JSON(fiber.Map{"status": "ok"})
		}
	}
	return utils.NotFoundError("split not found", nil)
}

// Counts reports the unread count per split over a recent inbox
// window, primary included. The window is bounded, so the counts
// are an approximation for very busy inboxes.
func (h *SplitsHandler) Counts(c *fiber.Ctx) error {
	const cacheKey = "split_counts"
	if cached, ok := utils.GlobalCache.Get(cacheKey); ok {
		return c.JSON(cached)
	}

	cfg, err := h.load()
	if err != nil {
		return err
	}
	inbox, err := h.session.MailboxByRole("inbox")
	if err != nil {
		return err
	}

	ids, err := h.session.QueryEmails(c.Context(), map[string]interface{}{"inMailbox": inbox.ID}, 200, 0)
	if err != nil {
		return err
	}
	// A narrow fetch: only what matching and unread counting need.
	emails, err := h.session.GetEmails(c.Context(), ids, false,
		"id", "keywords", "from", "to", "cc", "subject", "bodyStructure")
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(cfg.Splits)+1)
	counts[models.PrimarySplitID] = 0
	for _, s := range cfg.Splits {
		counts[s.ID] = 0
	}
	for i := range emails {
		if !emails[i].IsUnread() {
			continue
		}
		claimed := false
		for _, s := range cfg.Splits {
			if splits.MatchesSplit(s, &emails[i]) {
				counts[s.ID]++
				claimed = true
			}
		}
		if !claimed {
			counts[models.PrimarySplitID]++
		}
	}

	response := fiber.Map{"counts": counts, "window": len(emails)}
	utils.GlobalCache.Set(cacheKey, response, 30*time.Second)
	return c.JSON(response)
}
