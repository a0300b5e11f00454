package stubserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docdash/internal/app"
)

func postChat(t *testing.T, srv *Server, token, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestChatCreatesConversation(t *testing.T) {
	srv := New(Options{})

	resp := postChat(t, srv, "", `{"message":"hello there","conversationId":null,"userId":"u1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var reply app.ChatReply
	decode(t, resp, &reply)
	if reply.ConversationID == "" {
		t.Fatalf("new conversation did not return an id")
	}
	if reply.Response == "" {
		t.Fatalf("no assistant response")
	}
	if len(reply.Messages) != 2 {
		t.Fatalf("expected user+assistant turn, got %d messages", len(reply.Messages))
	}

	// History reflects the turn.
	req := httptest.NewRequest(http.MethodGet, "/api/chat/"+reply.ConversationID+"/history", nil)
	hresp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if hresp.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", hresp.StatusCode)
	}
	var hist struct {
		Messages []app.HistoryMessage `json:"messages"`
	}
	decode(t, hresp, &hist)
	if len(hist.Messages) != 2 || hist.Messages[0].Role != app.RoleUser || hist.Messages[0].Content != "hello there" {
		t.Fatalf("history = %+v", hist.Messages)
	}
}

func TestChatOnExistingConversationOmitsID(t *testing.T) {
	srv := New(Options{})

	var first app.ChatReply
	decode(t, postChat(t, srv, "", `{"message":"one","conversationId":null,"userId":"u1"}`), &first)

	body := fmt.Sprintf(`{"message":"two","conversationId":%q,"userId":"u1"}`, first.ConversationID)
	resp := postChat(t, srv, "", body)
	var second app.ChatReply
	decode(t, resp, &second)
	if second.ConversationID != "" {
		t.Fatalf("existing conversation must not echo an id, got %q", second.ConversationID)
	}
	if len(second.Messages) != 4 {
		t.Fatalf("expected 4 messages after two turns, got %d", len(second.Messages))
	}
}

func TestChatValidation(t *testing.T) {
	srv := New(Options{})
	tests := []struct {
		name string
		body string
	}{
		{"empty message", `{"message":"  ","conversationId":null,"userId":"u1"}`},
		{"missing user", `{"message":"hi","conversationId":null,"userId":""}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postChat(t, srv, "", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestChatUnknownConversationIs404(t *testing.T) {
	srv := New(Options{})
	resp := postChat(t, srv, "", `{"message":"hi","conversationId":"nope","userId":"u1"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestListConversationsFiltersByUser(t *testing.T) {
	srv := New(Options{})
	decode(t, postChat(t, srv, "", `{"message":"from alice","conversationId":null,"userId":"alice"}`), &app.ChatReply{})
	decode(t, postChat(t, srv, "", `{"message":"from bob","conversationId":null,"userId":"bob"}`), &app.ChatReply{})

	req := httptest.NewRequest(http.MethodGet, "/api/conversations?userId=alice", nil)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var out struct {
		Conversations []app.Conversation `json:"conversations"`
	}
	decode(t, resp, &out)
	if len(out.Conversations) != 1 || out.Conversations[0].UserID != "alice" {
		t.Fatalf("got %+v", out.Conversations)
	}
	if out.Conversations[0].MessageCount != 2 {
		t.Fatalf("message count = %d", out.Conversations[0].MessageCount)
	}

	// Missing userId is a 400.
	req = httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	resp, err = srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestBearerTokenEnforcement(t *testing.T) {
	srv := New(Options{Token: "secret"})

	resp := postChat(t, srv, "", `{"message":"hi","conversationId":null,"userId":"u1"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token: status = %d, want 401", resp.StatusCode)
	}
	resp = postChat(t, srv, "wrong", `{"message":"hi","conversationId":null,"userId":"u1"}`)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong token: status = %d, want 401", resp.StatusCode)
	}
	resp = postChat(t, srv, "secret", `{"message":"hi","conversationId":null,"userId":"u1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("valid token: status = %d, want 200", resp.StatusCode)
	}

	// Health stays open.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	hresp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if hresp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", hresp.StatusCode)
	}
}
