package jmap

import (
	"context"
	"strings"

	"splitmail/models"
	"splitmail/utils"
)

// Identities returns the account's sending identities, fetching
// and caching them on first use.
func (s *Session) Identities(ctx context.Context) ([]models.Identity, error) {
	s.mu.RLock()
	cached := s.identities
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	responses, err := s.call(ctx, invocation{
		method: "Identity/get",
		args: map[string]interface{}{
			"accountId": s.account(),
			"ids":       nil,
		},
	})
	if err != nil {
		return nil, err
	}
	res, err := result(responses, 0)
	if err != nil {
		return nil, err
	}

	var ids []models.Identity
	for _, item := range res.Get("list").Array() {
		ids = append(ids, models.Identity{
			ID:    item.Get("id").Str(),
			Name:  item.Get("name").Str(),
			Email: item.Get("email").Str(),
		})
	}

	s.mu.Lock()
	s.identities = ids
	s.mu.Unlock()
	return ids, nil
}

// resolveIdentity picks the identity to submit with: an explicit
// override wins, then a match on the from address, then the first
// identity on the account.
func (s *Session) resolveIdentity(ctx context.Context, sub *models.Submission) (models.Identity, error) {
	identities, err := s.Identities(ctx)
	if err != nil {
		return models.Identity{}, err
	}
	if len(identities) == 0 {
		return models.Identity{}, utils.InternalServerError("account has no sending identities", nil)
	}

	if sub.IdentityID != "" {
		for _, id := range identities {
			if id.ID == sub.IdentityID {
				return id, nil
			}
		}
		return models.Identity{}, utils.BadRequestError("unknown identity id", nil)
	}

	if sub.From != "" && !strings.EqualFold(sub.From, s.username) {
		for _, id := range identities {
			if strings.EqualFold(id.Email, sub.From) {
				return id, nil
			}
		}
	}
	return identities[0], nil
}

// SendEmail creates the draft and submits it in one batch, using a
// back-reference so the submission picks up the created message.
// On success the message moves from drafts to sent and sheds its
// draft keyword.
func (s *Session) SendEmail(ctx context.Context, sub *models.Submission) (string, error) {
	if len(sub.To) == 0 {
		return "", utils.BadRequestError("no recipients", nil)
	}

	drafts, err := s.MailboxByRole("drafts")
	if err != nil {
		return "", err
	}
	sent, err := s.MailboxByRole("sent")
	if err != nil {
		return "", err
	}

	identity, err := s.resolveIdentity(ctx, sub)
	if err != nil {
		return "", err
	}
	fromAddr := sub.From
	if fromAddr == "" {
		fromAddr = identity.Email
	}

	draft := buildDraft(sub, fromAddr, drafts.ID)

	responses, err := s.call(ctx,
		invocation{
			method: "Email/set",
			args: map[string]interface{}{
				"accountId": s.account(),
				"create":    map[string]interface{}{"draft": draft},
			},
		},
		invocation{
			method: "EmailSubmission/set",
			args: map[string]interface{}{
				"accountId": s.account(),
				"create": map[string]interface{}{
					"submission": map[string]interface{}{
						"emailId":    "#draft",
						"identityId": identity.ID,
					},
				},
				"onSuccessUpdateEmail": map[string]interface{}{
					"#submission": map[string]interface{}{
						"mailboxIds/" + sent.ID:   true,
						"mailboxIds/" + drafts.ID: nil,
						"keywords/$draft":         nil,
					},
				},
			},
		},
	)
	if err != nil {
		return "", err
	}

	createRes, err := result(responses, 0)
	if err != nil {
		return "", err
	}
	emailID := createRes.Get("created").Get("draft").Get("id").Str()
	if emailID == "" {
		desc := createRes.Get("notCreated").Get("draft").Get("description").Str()
		return "", utils.InternalServerError("draft creation rejected: "+desc, nil)
	}

	submitRes, err := result(responses, 1)
	if err != nil {
		return "", err
	}
	if submitRes.Get("created").Get("submission").Exists() {
		utils.Log.Info("Submitted message %s", emailID)
		return emailID, nil
	}
	desc := submitRes.Get("notCreated").Get("submission").Get("description").Str()
	return "", utils.InternalServerError("submission rejected: "+desc, nil)
}
