// Package stubserver runs an in-memory stand-in for the platform's AI
// backend so the dashboard can be developed and demoed without the real
// service. It implements the three endpoints the client consumes and the
// bearer-token contract, including 401 on a missing/wrong token.
package stubserver

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"docdash/internal/app"
)

type Server struct {
	fiber *fiber.App
	token string

	store *memoryStore
}

type Options struct {
	// Token, when set, is required as a bearer token on every request.
	Token string
}

func New(opts Options) *Server {
	s := &Server{
		token: opts.Token,
		store: newMemoryStore(),
	}

	f := fiber.New()
	f.Use(cors.New())
	f.Use(logger.New())
	f.Use(recover.New())

	f.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := f.Group("/api", s.requireToken)
	api.Get("/conversations", s.listConversations)
	api.Get("/chat/:id/history", s.history)
	api.Post("/chat", s.chat)

	s.fiber = f
	return s
}

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App { return s.fiber }

func (s *Server) Listen(addr string) error {
	return s.fiber.Listen(addr)
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.token == "" {
		return c.Next()
	}
	auth := strings.TrimSpace(c.Get("Authorization"))
	parts := strings.Split(auth, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] != s.token {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	}
	return c.Next()
}

func (s *Server) listConversations(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}
	return c.JSON(fiber.Map{"conversations": s.store.listConversations(userID)})
}

func (s *Server) history(c *fiber.Ctx) error {
	msgs, ok := s.store.history(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

type chatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversationId"`
	UserID         string  `json:"userId"`
}

func (s *Server) chat(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}
	if strings.TrimSpace(req.UserID) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "userId is required"})
	}

	conversationID := ""
	if req.ConversationID != nil {
		conversationID = *req.ConversationID
	}

	conv, msgs, created := s.store.appendTurn(conversationID, req.UserID, req.Message)
	if conv == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Conversation not found"})
	}

	resp := fiber.Map{
		"response": cannedReply(req.Message),
		"messages": msgs,
	}
	if created {
		resp["conversationId"] = conv.ID
	}
	return c.JSON(resp)
}

func cannedReply(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	if len(message) > 60 {
		message = message[:60] + "..."
	}
	return fmt.Sprintf("(stub) You asked: %q. The real AI service will answer this about your documents.", message)
}

// memoryStore keeps the stub's conversations for the process lifetime.
type memoryStore struct {
	mu            sync.Mutex
	conversations map[string]*storedConversation
	order         []string
}

type storedConversation struct {
	conv app.Conversation
	msgs []app.HistoryMessage
}

func newMemoryStore() *memoryStore {
	return &memoryStore{conversations: make(map[string]*storedConversation)}
}

func (m *memoryStore) listConversations(userID string) []app.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]app.Conversation, 0, len(m.order))
	// Most recently created first.
	for i := len(m.order) - 1; i >= 0; i-- {
		sc := m.conversations[m.order[i]]
		if sc.conv.UserID == userID {
			out = append(out, sc.conv)
		}
	}
	return out
}

func (m *memoryStore) history(conversationID string) ([]app.HistoryMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.conversations[conversationID]
	if !ok {
		return nil, false
	}
	out := make([]app.HistoryMessage, len(sc.msgs))
	copy(out, sc.msgs)
	return out, true
}

// appendTurn records the user message and a canned assistant reply. An
// empty conversationID creates a new conversation; created reports whether
// it did. A nil conversation means the id was unknown.
func (m *memoryStore) appendTurn(conversationID, userID, message string) (*app.Conversation, []app.HistoryMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := false
	var sc *storedConversation
	if conversationID == "" {
		now := time.Now()
		id := uuid.NewString()
		title := message
		if len(title) > 30 {
			title = title[:30] + "..."
		}
		sc = &storedConversation{conv: app.Conversation{
			ID:        id,
			UserID:    userID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		}}
		m.conversations[id] = sc
		m.order = append(m.order, id)
		created = true
	} else {
		var ok bool
		sc, ok = m.conversations[conversationID]
		if !ok {
			return nil, nil, false
		}
	}

	reply := cannedReply(message)
	sc.msgs = append(sc.msgs,
		app.HistoryMessage{Role: app.RoleUser, Content: message},
		app.HistoryMessage{Role: app.RoleAssistant, Content: reply},
	)
	sc.conv.UpdatedAt = time.Now()
	sc.conv.MessageCount = len(sc.msgs)
	sc.conv.LastMessage = &app.LastMessage{
		Role:      app.RoleAssistant,
		Content:   reply,
		Timestamp: sc.conv.UpdatedAt,
	}

	conv := sc.conv
	msgs := make([]app.HistoryMessage, len(sc.msgs))
	copy(msgs, sc.msgs)
	return &conv, msgs, created
}
