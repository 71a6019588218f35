package jmap

import (
	"context"

	"splitmail/models"
	"splitmail/utils"
)

// RefreshMailboxes reloads the mailbox list and the by-role cache
func (s *Session) RefreshMailboxes(ctx context.Context) error {
	responses, err := s.call(ctx, invocation{
		method: "Mailbox/get",
		args: map[string]interface{}{
			"accountId": s.account(),
			"ids":       nil,
		},
	})
	if err != nil {
		return err
	}
	res, err := result(responses, 0)
	if err != nil {
		return err
	}

	var list []models.Mailbox
	byRole := make(map[string]models.Mailbox)
	for _, item := range res.Get("list").Array() {
		mb := models.Mailbox{
			ID:           item.Get("id").Str(),
			Name:         item.Get("name").Str(),
			ParentID:     item.Get("parentId").Str(),
			Role:         item.Get("role").Str(),
			TotalEmails:  item.Get("totalEmails").Int(),
			UnreadEmails: item.Get("unreadEmails").Int(),
			SortOrder:    int(item.Get("sortOrder").Int()),
		}
		list = append(list, mb)
		if mb.Role != "" {
			byRole[mb.Role] = mb
		}
	}

	s.mu.Lock()
	s.mailboxes = list
	s.byRole = byRole
	s.mu.Unlock()

	utils.Log.Debug("Cached %d mailboxes", len(list))
	return nil
}

// Mailboxes returns the cached mailbox list
func (s *Session) Mailboxes() []models.Mailbox {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Mailbox, len(s.mailboxes))
	copy(out, s.mailboxes)
	return out
}

// MailboxByRole looks up a cached mailbox by its well-known role
func (s *Session) MailboxByRole(role string) (models.Mailbox, error) {
	s.mu.RLock()
	mb, ok := s.byRole[role]
	s.mu.RUnlock()
	if !ok {
		return models.Mailbox{}, utils.NotFoundError("no mailbox with role "+role, nil)
	}
	return mb, nil
}
