package jmap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"splitmail/models"
	"splitmail/utils"
)

// maxUploadSize caps attachment uploads at 25 MiB
const maxUploadSize = 25 * 1024 * 1024

func (s *Session) blobURL(blobID, name, mimeType string) string {
	s.mu.RLock()
	tmpl := s.downloadURL
	account := s.accountID
	s.mu.RUnlock()

	r := strings.NewReplacer(
		"{accountId}", url.QueryEscape(account),
		"{blobId}", url.QueryEscape(blobID),
		"{name}", url.QueryEscape(name),
		"{type}", url.QueryEscape(mimeType),
	)
	return r.Replace(tmpl)
}

// DownloadBlob fetches raw blob bytes from the store
func (s *Session) DownloadBlob(ctx context.Context, blobID, name, mimeType string) ([]byte, error) {
	if !s.Connected() {
		return nil, utils.NotConnectedError()
	}
	if name == "" {
		name = "attachment"
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.blobURL(blobID, name, mimeType), nil)
	if err != nil {
		return nil, utils.InternalServerError("building download request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, utils.NetworkError("mail store unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, utils.NotFoundError("blob not found", nil)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, utils.UnauthorizedError("mail store rejected credentials", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, utils.NetworkError(fmt.Sprintf("blob download returned %d", resp.StatusCode), nil)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, utils.NetworkError("reading blob", err)
	}
	return data, nil
}

// UploadBlob pushes bytes to the store and returns the attachment
// handle to reference from a draft.
func (s *Session) UploadBlob(ctx context.Context, data []byte, name, mimeType string) (models.Attachment, error) {
	if !s.Connected() {
		return models.Attachment{}, utils.NotConnectedError()
	}
	if len(data) > maxUploadSize {
		return models.Attachment{}, utils.BadRequestError("attachment exceeds the 25 MiB limit", nil)
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	s.mu.RLock()
	uploadURL := strings.ReplaceAll(s.uploadURL, "{accountId}", url.QueryEscape(s.accountID))
	s.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(data))
	if err != nil {
		return models.Attachment{}, utils.InternalServerError("building upload request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", mimeType)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return models.Attachment{}, utils.NetworkError("mail store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Attachment{}, utils.NetworkError(fmt.Sprintf("blob upload returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Attachment{}, utils.NetworkError("reading upload response", err)
	}
	v, err := DecodeValue(body)
	if err != nil {
		return models.Attachment{}, utils.InternalServerError("decoding upload response", err)
	}

	blobID := v.Get("blobId").Str()
	if blobID == "" {
		return models.Attachment{}, utils.InternalServerError("upload response has no blobId", nil)
	}
	return models.Attachment{
		BlobID:   blobID,
		Name:     name,
		MimeType: v.Get("type").Str(),
		Size:     v.Get("size").Int(),
	}, nil
}

// CalendarData fetches the raw iCalendar text of a message's
// calendar part.
func (s *Session) CalendarData(ctx context.Context, email *models.Email) (string, error) {
	if email.CalendarPartID == "" {
		return "", utils.NotFoundError("message has no calendar part", nil)
	}

	responses, err := s.call(ctx, invocation{
		method: "Email/get",
		args: map[string]interface{}{
			"accountId":          s.account(),
			"ids":                []string{email.ID},
			"properties":         []interface{}{"bodyValues"},
			"bodyProperties":     []interface{}{"partId"},
			"fetchAllBodyValues": true,
		},
	})
	if err != nil {
		return "", err
	}
	res, err := result(responses, 0)
	if err != nil {
		return "", err
	}

	value := res.Get("list").Index(0).Get("bodyValues").Get(email.CalendarPartID).Get("value")
	if !value.Exists() {
		return "", utils.NotFoundError("calendar part has no content", nil)
	}
	return value.Str(), nil
}
