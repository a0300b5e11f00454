package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Backend is the slice of the AI service the session manager consumes.
// Client is the HTTP implementation; tests substitute a fake.
type Backend interface {
	ListConversations(ctx context.Context, userID string) ([]Conversation, error)
	History(ctx context.Context, conversationID string) ([]HistoryMessage, error)
	Send(ctx context.Context, message, conversationID, userID string) (*ChatReply, error)
}

// Client talks to the document platform's AI backend. Every request carries
// the bearer token; a 401 invokes OnUnauthorized so the composition root
// can log the user out without a global registry.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *Logger

	OnUnauthorized func()
}

func NewClient(baseURL, token string, logger *Logger) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
		Logger:  logger,
	}
}

type conversationListResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type historyResponse struct {
	Messages []HistoryMessage `json:"messages"`
}

type chatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversationId"`
	UserID         string  `json:"userId"`
}

func (c *Client) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	endpoint := c.BaseURL + "/api/conversations?userId=" + url.QueryEscape(userID)
	var out conversationListResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

func (c *Client) History(ctx context.Context, conversationID string) ([]HistoryMessage, error) {
	endpoint := c.BaseURL + "/api/chat/" + url.PathEscape(conversationID) + "/history"
	var out historyResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Send posts a message. An empty conversationID is sent as JSON null, which
// tells the backend to create a new conversation and return its id.
func (c *Client) Send(ctx context.Context, message, conversationID, userID string) (*ChatReply, error) {
	body := chatRequest{Message: message, UserID: userID}
	if conversationID != "" {
		body.ConversationID = &conversationID
	}
	var out ChatReply
	if err := c.do(ctx, http.MethodPost, c.BaseURL+"/api/chat", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if c.Token != "" {
		request.Header.Set("Authorization", "Bearer "+c.Token)
	}
	request.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(request)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ConnectionError{Err: err}
	}

	if resp.StatusCode == http.StatusUnauthorized && c.OnUnauthorized != nil {
		c.OnUnauthorized()
	}

	if resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		msg := errResp.Message
		if msg == "" {
			msg = errResp.Error
		}
		if c.Logger != nil {
			c.Logger.Warn("backend request failed", map[string]interface{}{
				"method": method,
				"url":    endpoint,
				"status": resp.StatusCode,
			})
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("invalid api response: %w", err)
	}
	return nil
}
