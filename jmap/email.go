package jmap

import (
	"context"

	"splitmail/models"
	"splitmail/utils"
)

// listProperties covers what the message list needs; full fetches
// add the body structure and header extras on top.
var listProperties = []interface{}{
	"id", "threadId", "mailboxIds", "keywords", "from", "to", "cc",
	"subject", "receivedAt", "preview", "size", "hasAttachment",
	"bodyStructure",
}

var fullProperties = append(append([]interface{}{}, listProperties...),
	"replyTo", "messageId", "textBody", "htmlBody", "bodyValues",
	"header:List-Unsubscribe:asText",
)

// QueryEmails returns message ids matching the filter, newest first
func (s *Session) QueryEmails(ctx context.Context, filter map[string]interface{}, limit, offset int) ([]string, error) {
	if filter == nil {
		filter = map[string]interface{}{}
	}
	responses, err := s.call(ctx, invocation{
		method: "Email/query",
		args: map[string]interface{}{
			"accountId": s.account(),
			"filter":    filter,
			"sort": []interface{}{
				map[string]interface{}{"property": "receivedAt", "isAscending": false},
			},
			"position":        offset,
			"limit":           limit,
			"collapseThreads": false,
		},
	})
	if err != nil {
		return nil, err
	}
	res, err := result(responses, 0)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, id := range res.Get("ids").Array() {
		ids = append(ids, id.Str())
	}
	return ids, nil
}

// GetEmails fetches messages by id. With full set, bodies and
// attachments are populated; extraProperties narrows the fetch
// instead when only a few fields are needed.
func (s *Session) GetEmails(ctx context.Context, ids []string, full bool, properties ...interface{}) ([]models.Email, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	props := properties
	if props == nil {
		props = listProperties
		if full {
			props = fullProperties
		}
	}

	args := map[string]interface{}{
		"accountId":  s.account(),
		"ids":        ids,
		"properties": props,
	}
	if full {
		args["fetchAllBodyValues"] = true
	}

	responses, err := s.call(ctx, invocation{method: "Email/get", args: args})
	if err != nil {
		return nil, err
	}
	res, err := result(responses, 0)
	if err != nil {
		return nil, err
	}

	var out []models.Email
	for _, item := range res.Get("list").Array() {
		out = append(out, parseEmail(item, full))
	}
	return out, nil
}

// GetEmail fetches a single message with its full body
func (s *Session) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	emails, err := s.GetEmails(ctx, []string{id}, true)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, utils.NotFoundError("email not found", nil)
	}
	return &emails[0], nil
}

// parseEmail maps one Email/get item onto the model. Missing
// fields simply stay zero.
func parseEmail(item Value, full bool) models.Email {
	email := models.Email{
		ID:            item.Get("id").Str(),
		ThreadID:      item.Get("threadId").Str(),
		Subject:       item.Get("subject").Str(),
		ReceivedAt:    item.Get("receivedAt").Str(),
		Preview:       item.Get("preview").Str(),
		Size:          item.Get("size").Int(),
		HasAttachment: item.Get("hasAttachment").Bool(),
		Keywords:      make(map[string]bool),
		From:          parseAddresses(item.Get("from")),
		To:            parseAddresses(item.Get("to")),
		Cc:            parseAddresses(item.Get("cc")),
	}

	for _, id := range item.Get("mailboxIds").Keys() {
		if item.Get("mailboxIds").Get(id).Bool() {
			email.MailboxIDs = append(email.MailboxIDs, id)
		}
	}
	for _, kw := range item.Get("keywords").Keys() {
		if item.Get("keywords").Get(kw).Bool() {
			email.Keywords[kw] = true
		}
	}

	if structure := item.Get("bodyStructure"); structure.Exists() {
		email.Attachments = collectAttachments(structure, false)
		if partID, ok := findCalendarPart(structure); ok {
			email.CalendarPartID = partID
		}
	}

	if full {
		email.ReplyTo = parseAddresses(item.Get("replyTo"))
		for _, mid := range item.Get("messageId").Array() {
			email.MessageID = append(email.MessageID, mid.Str())
		}
		email.ListUnsubscribe = item.Get("header:List-Unsubscribe:asText").Str()
		email.TextBody, email.HTMLBody = extractBodies(item)
	}

	return email
}

func parseAddresses(v Value) []models.Address {
	var out []models.Address
	for _, a := range v.Array() {
		out = append(out, models.Address{
			Name:  a.Get("name").Str(),
			Email: a.Get("email").Str(),
		})
	}
	return out
}

// MarkRead sets the seen keyword. The result reports whether the
// store confirmed the update.
func (s *Session) MarkRead(ctx context.Context, id string) (bool, error) {
	return s.patchEmail(ctx, id, map[string]interface{}{"keywords/$seen": true})
}

// MarkUnread clears the seen keyword
func (s *Session) MarkUnread(ctx context.Context, id string) (bool, error) {
	return s.patchEmail(ctx, id, map[string]interface{}{"keywords/$seen": nil})
}

// SetFlagged sets or clears the flagged keyword
func (s *Session) SetFlagged(ctx context.Context, id string, flagged bool) (bool, error) {
	var v interface{}
	if flagged {
		v = true
	}
	return s.patchEmail(ctx, id, map[string]interface{}{"keywords/$flagged": v})
}

// MoveToMailbox makes the target the message's only mailbox
func (s *Session) MoveToMailbox(ctx context.Context, id, mailboxID string) (bool, error) {
	return s.patchEmail(ctx, id, map[string]interface{}{
		"mailboxIds": map[string]interface{}{mailboxID: true},
	})
}

// Archive moves a message to the archive mailbox
func (s *Session) Archive(ctx context.Context, id string) (bool, error) {
	archive, err := s.MailboxByRole("archive")
	if err != nil {
		return false, err
	}
	return s.MoveToMailbox(ctx, id, archive.ID)
}

// Trash moves a message to the trash mailbox
func (s *Session) Trash(ctx context.Context, id string) (bool, error) {
	trash, err := s.MailboxByRole("trash")
	if err != nil {
		return false, err
	}
	return s.MoveToMailbox(ctx, id, trash.ID)
}

// ArchiveMany archives a batch of messages in one round trip
func (s *Session) ArchiveMany(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	archive, err := s.MailboxByRole("archive")
	if err != nil {
		return false, err
	}
	update := make(map[string]interface{}, len(ids))
	for _, id := range ids {
		update[id] = map[string]interface{}{
			"mailboxIds": map[string]interface{}{archive.ID: true},
		}
	}
	return s.setEmails(ctx, update)
}

func (s *Session) patchEmail(ctx context.Context, id string, patch map[string]interface{}) (bool, error) {
	return s.setEmails(ctx, map[string]interface{}{id: patch})
}

// setEmails applies an Email/set update. The result reports whether
// every target id came back in the server's updated set; an id the
// server leaves out means the change did not take, which callers
// surface as a non-success rather than an error.
func (s *Session) setEmails(ctx context.Context, update map[string]interface{}) (bool, error) {
	responses, err := s.call(ctx, invocation{
		method: "Email/set",
		args: map[string]interface{}{
			"accountId": s.account(),
			"update":    update,
		},
	})
	if err != nil {
		return false, err
	}
	res, err := result(responses, 0)
	if err != nil {
		return false, err
	}
	updated := res.Get("updated")
	for id := range update {
		if !updated.Has(id) {
			return false, nil
		}
	}
	return true, nil
}
