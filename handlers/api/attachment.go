package api

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"splitmail/jmap"
	"splitmail/storage"
	"splitmail/utils"
)

// AttachmentHandler serves attachment downloads and uploads
type AttachmentHandler struct {
	session *jmap.Session
	cache   *storage.BlobCache
}

// NewAttachmentHandler creates a new attachment handler
func NewAttachmentHandler(session *jmap.Session, cache *storage.BlobCache) *AttachmentHandler {
	return &AttachmentHandler{session: session, cache: cache}
}

// Download streams a blob to the client. Blobs are immutable per
// id, so cache hits skip the store entirely.
func (h *AttachmentHandler) Download(c *fiber.Ctx) error {
	blobID := c.Params("blobId")
	if blobID == "" {
		return utils.BadRequestError("blob id is required", nil)
	}
	name := sanitizeFilename(c.Query("name", "attachment"))
	mimeType := c.Query("mime", "application/octet-stream")

	var data []byte
	if h.cache != nil {
		if cached, ok := h.cache.Get(blobID); ok {
			data = cached
		}
	}
	if data == nil {
		fetched, err := h.session.DownloadBlob(c.Context(), blobID, name, mimeType)
		if err != nil {
			return err
		}
		data = fetched
		if h.cache != nil {
			if err := h.cache.Put(blobID, data); err != nil {
				utils.Log.Warn("Caching blob %s: %v", blobID, err)
			}
		}
	}

	c.Set("Content-Type", mimeType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(data)
}

// Upload pushes a file to the store and returns the handle to
// reference from a draft.
func (h *AttachmentHandler) Upload(c *fiber.Ctx) error {
	body := c.Body()
	if len(body) == 0 {
		return utils.BadRequestError("empty upload", nil)
	}
	name := sanitizeFilename(c.Query("name", "attachment"))
	mimeType := c.Get("Content-Type", "application/octet-stream")

	attachment, err := h.session.UploadBlob(c.Context(), body, name, mimeType)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(attachment)
}
