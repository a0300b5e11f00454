package app

import (
	"fmt"
	"time"
)

// MessageKind distinguishes normal chat turns from recovered errors that are
// rendered inline as assistant messages.
type MessageKind string

const (
	KindNormal MessageKind = "normal"
	KindError  MessageKind = "error"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrorSentinel is the leading marker carried in the content of error
// messages. The explicit Kind field is authoritative; the sentinel is kept
// for wire/display compatibility with older clients that sniff content.
const ErrorSentinel = "⚠️"

type Conversation struct {
	ID           string       `json:"conversationId"`
	UserID       string       `json:"userId"`
	Title        string       `json:"title"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
	MessageCount int          `json:"messageCount"`
	LastMessage  *LastMessage `json:"lastMessage,omitempty"`
}

// LastMessage is the list-preview snapshot of a conversation's most recent
// message.
type LastMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a single chat turn as held client-side. ID is a time-based
// render key, not a durable identity; Timestamp is client-generated at
// append time.
type Message struct {
	ID        string      `json:"id"`
	Role      string      `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Kind      MessageKind `json:"kind"`
}

// HistoryMessage is the raw shape returned by the history endpoint. The
// backend's per-message metadata beyond role/content is not trusted.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatReply is the response of POST /api/chat. ConversationID is set when
// the backend created a new conversation for this send.
type ChatReply struct {
	ConversationID string           `json:"conversationId,omitempty"`
	Message        string           `json:"message,omitempty"`
	Response       string           `json:"response,omitempty"`
	Messages       []HistoryMessage `json:"messages,omitempty"`
}

// ReplyText picks the assistant text out of a chat reply.
func (r *ChatReply) ReplyText() string {
	if r == nil {
		return defaultReplyText
	}
	if r.Message != "" {
		return r.Message
	}
	if r.Response != "" {
		return r.Response
	}
	return defaultReplyText
}

const defaultReplyText = "Response received successfully."

func newMessageID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

func newMessage(role, content string, kind MessageKind) Message {
	return Message{
		ID:        newMessageID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Kind:      kind,
	}
}
