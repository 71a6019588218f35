package jmap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"splitmail/config"
	"splitmail/utils"
)

func testConfig(sessionURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Store.SessionURL = sessionURL
	cfg.Store.Username = "me@example.com"
	cfg.Store.Token = "secret"
	cfg.Store.TimeoutSeconds = 5
	return cfg
}

// storeStub fakes session discovery plus the RPC endpoint
func storeStub(t *testing.T, handler func(methodCalls []interface{}) interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"apiUrl":      srv.URL + "/api",
			"uploadUrl":   srv.URL + "/upload/{accountId}",
			"downloadUrl": srv.URL + "/download/{accountId}/{blobId}/{name}?type={type}",
			"primaryAccounts": map[string]interface{}{
				"urn:ietf:params:jmap:mail": "acc-1",
			},
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MethodCalls []interface{} `json:"methodCalls"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(handler(req.MethodCalls))
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func emptyMailboxes(methodCalls []interface{}) interface{} {
	return map[string]interface{}{
		"methodResponses": []interface{}{
			[]interface{}{"Mailbox/get", map[string]interface{}{"list": []interface{}{}}, "0"},
		},
	}
}

func TestConnect(t *testing.T) {
	srv := storeStub(t, emptyMailboxes)
	s := NewSession(testConfig(srv.URL + "/session"))

	if s.Connected() {
		t.Error("fresh session must not be connected")
	}
	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !s.Connected() {
		t.Error("session should be connected after discovery")
	}
	if s.account() != "acc-1" {
		t.Errorf("account = %q", s.account())
	}
}

func TestConnectAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	s := NewSession(testConfig(srv.URL))
	err := s.Connect(context.Background())
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != 401 {
		t.Errorf("auth failure should map to 401, got %v", err)
	}
}

func TestConnectServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSession(testConfig(srv.URL))
	err := s.Connect(context.Background())
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != 502 {
		t.Errorf("server error should map to 502, got %v", err)
	}
}

func TestConnectMissingAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"apiUrl": "http://x", "primaryAccounts": {}}`)
	}))
	defer srv.Close()

	s := NewSession(testConfig(srv.URL))
	err := s.Connect(context.Background())
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != 500 {
		t.Errorf("missing account should map to 500, got %v", err)
	}
}

func TestCallNotConnected(t *testing.T) {
	s := NewSession(testConfig("http://unused.invalid"))
	_, err := s.QueryEmails(context.Background(), nil, 10, 0)
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != 503 {
		t.Errorf("calls before Connect should map to 503, got %v", err)
	}
}

func TestCallIDsArePositional(t *testing.T) {
	var captured []interface{}
	srv := storeStub(t, func(methodCalls []interface{}) interface{} {
		if len(methodCalls) > 0 && methodCalls[0].([]interface{})[0] != "Mailbox/get" {
			captured = methodCalls
		}
		return map[string]interface{}{
			"methodResponses": []interface{}{
				[]interface{}{"Email/query", map[string]interface{}{"ids": []interface{}{"e1"}}, "0"},
				[]interface{}{"Mailbox/get", map[string]interface{}{"list": []interface{}{}}, "0"},
			},
		}
	})

	s := NewSession(testConfig(srv.URL + "/session"))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	ids, err := s.QueryEmails(context.Background(), map[string]interface{}{"text": "x"}, 5, 0)
	if err != nil {
		t.Fatalf("QueryEmails: %v", err)
	}
	if len(ids) != 1 || ids[0] != "e1" {
		t.Errorf("ids = %v", ids)
	}

	if len(captured) != 1 {
		t.Fatalf("captured %d calls", len(captured))
	}
	call := captured[0].([]interface{})
	if call[0] != "Email/query" {
		t.Errorf("method = %v", call[0])
	}
	if call[2] != "0" {
		t.Errorf("call id = %v, want the batch position", call[2])
	}
}

func TestCallErrorResponse(t *testing.T) {
	srv := storeStub(t, func(methodCalls []interface{}) interface{} {
		if methodCalls[0].([]interface{})[0] == "Mailbox/get" {
			return emptyMailboxes(methodCalls)
		}
		return map[string]interface{}{
			"methodResponses": []interface{}{
				[]interface{}{"error", map[string]interface{}{
					"type": "invalidArguments", "description": "bad filter",
				}, "0"},
			},
		}
	})

	s := NewSession(testConfig(srv.URL + "/session"))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	_, err := s.QueryEmails(context.Background(), nil, 10, 0)
	appErr, ok := utils.AsAppError(err)
	if !ok || appErr.Code != 500 {
		t.Errorf("method-level error should map to 500, got %v", err)
	}
}

func TestSetEmailsSuccessFollowsUpdatedSet(t *testing.T) {
	var confirm bool
	srv := storeStub(t, func(methodCalls []interface{}) interface{} {
		if methodCalls[0].([]interface{})[0] == "Mailbox/get" {
			return emptyMailboxes(methodCalls)
		}
		updated := map[string]interface{}{}
		if confirm {
			updated["e1"] = nil
		}
		return map[string]interface{}{
			"methodResponses": []interface{}{
				[]interface{}{"Email/set", map[string]interface{}{"updated": updated}, "0"},
			},
		}
	})

	s := NewSession(testConfig(srv.URL + "/session"))
	if err := s.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	ok, err := s.MarkRead(context.Background(), "e1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if ok {
		t.Error("id missing from updated set must read as non-success")
	}

	confirm = true
	ok, err = s.MarkRead(context.Background(), "e1")
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if !ok {
		t.Error("id in updated set should read as success, null value included")
	}
}

func TestParseEmail(t *testing.T) {
	item := value(t, `{
		"id": "e1",
		"threadId": "t1",
		"mailboxIds": {"mb1": true, "mb2": false},
		"keywords": {"$seen": true},
		"from": [{"name": "Alice", "email": "alice@example.com"}],
		"to": [{"email": "me@example.com"}],
		"subject": "hello",
		"receivedAt": "2026-08-30T10:00:00Z",
		"preview": "hi there",
		"size": 2048,
		"hasAttachment": false
	}`)
	email := parseEmail(item, false)

	if email.ID != "e1" || email.ThreadID != "t1" {
		t.Errorf("ids = %q %q", email.ID, email.ThreadID)
	}
	if len(email.MailboxIDs) != 1 || email.MailboxIDs[0] != "mb1" {
		t.Errorf("mailboxIds = %v, false entries must be dropped", email.MailboxIDs)
	}
	if email.IsUnread() {
		t.Error("seen message reported unread")
	}
	if email.From[0].Name != "Alice" || email.From[0].Email != "alice@example.com" {
		t.Errorf("from = %+v", email.From)
	}
	if email.ReceivedAt != "2026-08-30T10:00:00Z" {
		t.Errorf("receivedAt = %q", email.ReceivedAt)
	}
}

func TestParseEmailMissingFields(t *testing.T) {
	email := parseEmail(value(t, `{"id": "e2"}`), true)
	if email.Subject != "" || len(email.From) != 0 || email.TextBody != "" {
		t.Errorf("missing fields should stay zero: %+v", email)
	}
	if email.IsUnread() != true {
		t.Error("no keywords means unread")
	}
}
