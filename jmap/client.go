// Package jmap is the client for the remote mail store: session
// discovery, the batched RPC transport, message and mailbox
// operations, sending, blobs and the CalDAV bridge.
package jmap

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"splitmail/config"
	"splitmail/models"
	"splitmail/utils"
)

const (
	capCore       = "urn:ietf:params:jmap:core"
	capMail       = "urn:ietf:params:jmap:mail"
	capSubmission = "urn:ietf:params:jmap:submission"
)

// Session holds the discovered endpoints and caches for one
// account. Reads take the shared lock; Connect and the lazy
// identity fetch take the exclusive one.
type Session struct {
	mu sync.RWMutex

	httpClient *http.Client
	sessionURL string
	username   string
	token      string
	caldavURL  string

	apiURL      string
	uploadURL   string
	downloadURL string
	accountID   string

	mailboxes  []models.Mailbox
	byRole     map[string]models.Mailbox
	identities []models.Identity
}

// NewSession builds an unconnected session from configuration
func NewSession(cfg *config.Config) *Session {
	return &Session{
		httpClient: &http.Client{Timeout: cfg.Store.Timeout()},
		sessionURL: cfg.Store.SessionURL,
		username:   cfg.Store.Username,
		token:      cfg.Store.Token,
		caldavURL:  cfg.CalDAV.URL,
		byRole:     make(map[string]models.Mailbox),
	}
}

// Username returns the configured account name
func (s *Session) Username() string {
	return s.username
}

// Connected reports whether session discovery has succeeded
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID != ""
}

// Connect performs session discovery and primes the mailbox cache
func (s *Session) Connect(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.sessionURL, nil)
	if err != nil {
		return utils.InternalServerError("building session request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return utils.NetworkError("mail store unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return utils.UnauthorizedError("mail store rejected credentials", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return utils.NetworkError(fmt.Sprintf("session discovery returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return utils.NetworkError("reading session response", err)
	}
	v, err := DecodeValue(body)
	if err != nil {
		return utils.InternalServerError("decoding session response", err)
	}

	accountID := v.Get("primaryAccounts").Get(capMail).Str()
	if accountID == "" {
		return utils.InternalServerError("session response has no mail account", nil)
	}

	s.mu.Lock()
	s.apiURL = v.Get("apiUrl").Str()
	s.uploadURL = v.Get("uploadUrl").Str()
	s.downloadURL = v.Get("downloadUrl").Str()
	s.accountID = accountID
	s.mu.Unlock()

	utils.Log.Info("Connected to mail store, account %s", accountID)

	if err := s.RefreshMailboxes(ctx); err != nil {
		return err
	}
	return nil
}

// invocation is one method call inside a batch
type invocation struct {
	method string
	args   map[string]interface{}
}

// call posts a batch of invocations. Call ids are the zero-based
// positions in the batch, so responses are matched by index.
func (s *Session) call(ctx context.Context, calls ...invocation) (Value, error) {
	s.mu.RLock()
	apiURL := s.apiURL
	connected := s.accountID != ""
	s.mu.RUnlock()

	if !connected {
		return Value{}, utils.NotConnectedError()
	}

	methodCalls := make([]interface{}, len(calls))
	for i, c := range calls {
		methodCalls[i] = []interface{}{c.method, c.args, strconv.Itoa(i)}
	}
	payload, err := json.Marshal(map[string]interface{}{
		"using":       []string{capCore, capMail, capSubmission},
		"methodCalls": methodCalls,
	})
	if err != nil {
		return Value{}, utils.InternalServerError("encoding request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return Value{}, utils.InternalServerError("building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return Value{}, utils.NetworkError("mail store unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Value{}, utils.UnauthorizedError("mail store rejected credentials", nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return Value{}, utils.NetworkError(fmt.Sprintf("mail store returned %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Value{}, utils.NetworkError("reading response", err)
	}
	v, err := DecodeValue(body)
	if err != nil {
		return Value{}, utils.InternalServerError("decoding response", err)
	}
	return v.Get("methodResponses"), nil
}

// result picks the arguments of the i-th method response, turning
// protocol-level error responses into errors.
func result(responses Value, i int) (Value, error) {
	r := responses.Index(i)
	if r.Index(0).Str() == "error" {
		errType := r.Index(1).Get("type").Str()
		desc := r.Index(1).Get("description").Str()
		return Value{}, utils.InternalServerError(
			fmt.Sprintf("mail store error %q: %s", errType, desc), nil)
	}
	return r.Index(1), nil
}

func (s *Session) account() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountID
}
