package app

import (
	"context"
	"strings"
	"sync"
	"time"
)

const greetingText = "Hello! I'm your AI assistant. How can I help you with your documents today?"

// pendingKey caches messages for a conversation the backend has not assigned
// an id to yet. At most one such conversation exists at a time.
const pendingKey = ""

// SessionManager owns the conversation list, the active conversation's
// message history, and a per-conversation cache of already-fetched
// histories. It mediates every exchange with the AI backend: optimistic
// local appends, reconciliation against server-assigned conversation ids,
// and recovery of failed calls into chat-visible error messages.
//
// All methods are safe for concurrent use. The mutex is never held across
// a network call; a fetch captures its target conversation id up front and
// applies the result to that id's cache slot only, so a late response for a
// conversation the user has already left cannot contaminate the one
// currently on screen.
type SessionManager struct {
	mu      sync.Mutex
	backend Backend
	logger  *Logger

	conversations []Conversation
	selectedID    string // empty while the conversation is not yet persisted
	messages      []Message
	cache         map[string][]Message

	sending        bool
	loadingList    bool
	loadingHistory bool
}

func NewSessionManager(backend Backend, logger *Logger) *SessionManager {
	return &SessionManager{
		backend: backend,
		logger:  logger,
		cache:   make(map[string][]Message),
	}
}

// LoadConversations replaces the conversation list with whatever the
// backend returns for userID. Failures degrade to an empty list; they are
// logged but never surfaced, so a broken list endpoint leaves the user with
// an empty sidebar rather than an error screen.
func (s *SessionManager) LoadConversations(ctx context.Context, userID string) {
	s.mu.Lock()
	s.loadingList = true
	s.mu.Unlock()

	list, err := s.backend.ListConversations(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingList = false
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("conversation list fetch failed", map[string]interface{}{"error": err.Error()})
		}
		s.conversations = nil
		return
	}
	s.conversations = list
}

// SelectConversation makes conversationID the active conversation. An empty
// id selects the pending "new conversation" state and shows the greeting.
// A cached conversation is shown without a network call; otherwise the
// history is fetched, canonicalized, and cached under the id captured here,
// regardless of what is selected by the time the fetch resolves.
//
// A failed history fetch is cached too: re-selecting the conversation
// replays the cached error instead of retrying the network.
func (s *SessionManager) SelectConversation(ctx context.Context, conversationID string) {
	if conversationID == "" {
		s.StartNewConversation()
		return
	}

	s.mu.Lock()
	s.selectedID = conversationID
	if cached, ok := s.cache[conversationID]; ok {
		s.messages = snapshotMessages(cached)
		s.mu.Unlock()
		return
	}
	s.loadingHistory = true
	s.mu.Unlock()

	raw, err := s.backend.History(ctx, conversationID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingHistory = false

	var msgs []Message
	if err != nil {
		msgs = []Message{newMessage(RoleAssistant, FormatAssistantError(err), KindError)}
	} else {
		msgs = canonicalizeHistory(raw)
	}
	s.cache[conversationID] = msgs
	if s.selectedID == conversationID {
		s.messages = snapshotMessages(msgs)
	}
}

// StartNewConversation resets to the pending, unsaved conversation: no
// selected id and a single synthesized greeting that is neither persisted
// nor cached. Any scratch state from a previous pending conversation is
// discarded so its turns cannot leak into the new one.
func (s *SessionManager) StartNewConversation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = pendingKey
	s.messages = []Message{newMessage(RoleAssistant, greetingText, KindNormal)}
	delete(s.cache, pendingKey)
}

// SendMessage sends text on the active conversation. The user's message is
// appended optimistically before the network call and is never rolled back;
// a failed send appends a classified assistant error message next to it.
// Sending on the pending conversation asks the backend to create one, and
// the returned id is adopted: the pending cache entry is re-keyed under the
// new id and the conversation list is refreshed.
//
// A second send while one is outstanding is rejected with ErrSendInFlight.
func (s *SessionManager) SendMessage(ctx context.Context, text, userID string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if strings.TrimSpace(userID) == "" {
		return ErrUserIDRequired
	}

	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return ErrSendInFlight
	}
	s.sending = true
	target := s.selectedID
	userMsg := newMessage(RoleUser, text, KindNormal)
	s.messages = append(s.messages, userMsg)
	s.cache[target] = append(s.cache[target], userMsg)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	reply, err := s.backend.Send(ctx, text, target, userID)
	if err != nil {
		s.appendAssistant(target, newMessage(RoleAssistant, FormatAssistantError(err), KindError))
		return nil
	}

	s.mu.Lock()
	authoritative := target
	adopted := false
	if target == pendingKey && reply.ConversationID != "" {
		authoritative = reply.ConversationID
		adopted = true
		s.cache[authoritative] = s.cache[pendingKey]
		delete(s.cache, pendingKey)
		if s.selectedID == pendingKey {
			s.selectedID = authoritative
		}
	}

	assistant := newMessage(RoleAssistant, reply.ReplyText(), KindNormal)
	s.cache[authoritative] = append(s.cache[authoritative], assistant)
	if s.selectedID == authoritative {
		s.messages = append(s.messages, assistant)
	}
	if !adopted {
		s.reconcileConversation(authoritative, assistant, reply)
	}
	s.mu.Unlock()

	if adopted {
		s.refreshAfterAdoption(ctx, authoritative, text, userID, assistant)
	}
	return nil
}

// appendAssistant places msg in conversationID's cache slot and, when that
// conversation is still on screen, into the visible message list.
func (s *SessionManager) appendAssistant(conversationID string, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[conversationID] = append(s.cache[conversationID], msg)
	if s.selectedID == conversationID {
		s.messages = append(s.messages, msg)
	}
}

// reconcileConversation updates an existing conversation's list entry in
// place after a successful send. The count comes from the reply's message
// array when present; otherwise one user and one assistant turn are added
// as an approximation until the next full list refresh.
func (s *SessionManager) reconcileConversation(conversationID string, assistant Message, reply *ChatReply) {
	for i := range s.conversations {
		if s.conversations[i].ID != conversationID {
			continue
		}
		conv := &s.conversations[i]
		conv.LastMessage = &LastMessage{
			Role:      assistant.Role,
			Content:   assistant.Content,
			Timestamp: assistant.Timestamp,
		}
		conv.UpdatedAt = time.Now()
		if len(reply.Messages) > 0 {
			conv.MessageCount = len(reply.Messages)
		} else {
			conv.MessageCount += 2
		}
		return
	}
}

// refreshAfterAdoption re-fetches the conversation list so the newly
// created conversation appears with server metadata. When the refresh fails
// or omits the conversation, a locally derived entry keeps it visible.
func (s *SessionManager) refreshAfterAdoption(ctx context.Context, conversationID, firstUserText, userID string, assistant Message) {
	list, err := s.backend.ListConversations(ctx, userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.conversations = list
	} else if s.logger != nil {
		s.logger.Warn("conversation list refresh failed", map[string]interface{}{"error": err.Error()})
	}

	for i := range s.conversations {
		if s.conversations[i].ID != conversationID {
			continue
		}
		if strings.TrimSpace(s.conversations[i].Title) == "" {
			s.conversations[i].Title = deriveConversationTitle(firstUserText)
		}
		return
	}

	now := time.Now()
	s.conversations = append([]Conversation{{
		ID:           conversationID,
		UserID:       userID,
		Title:        deriveConversationTitle(firstUserText),
		CreatedAt:    now,
		UpdatedAt:    now,
		MessageCount: 2,
		LastMessage: &LastMessage{
			Role:      assistant.Role,
			Content:   assistant.Content,
			Timestamp: assistant.Timestamp,
		},
	}}, s.conversations...)
}

// Conversations returns a snapshot of the conversation list.
func (s *SessionManager) Conversations() []Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// FilteredConversations is the derived, search-filtered view of the list:
// case-insensitive substring match on the title. The stored list is never
// mutated by filtering.
func (s *SessionManager) FilteredConversations(search string) []Conversation {
	search = strings.ToLower(strings.TrimSpace(search))
	s.mu.Lock()
	defer s.mu.Unlock()
	if search == "" {
		out := make([]Conversation, len(s.conversations))
		copy(out, s.conversations)
		return out
	}
	var out []Conversation
	for _, conv := range s.conversations {
		if strings.Contains(strings.ToLower(conv.Title), search) {
			out = append(out, conv)
		}
	}
	return out
}

// Messages returns a snapshot of the active conversation's messages.
func (s *SessionManager) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotMessages(s.messages)
}

// SelectedConversationID returns the active conversation id, or empty for
// the pending new conversation.
func (s *SessionManager) SelectedConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

func (s *SessionManager) IsSending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

func (s *SessionManager) IsLoadingConversations() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingList
}

func (s *SessionManager) IsLoadingHistory() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadingHistory
}

// SelectedConversation returns the list entry for the active conversation,
// or nil for the pending one.
func (s *SessionManager) SelectedConversation() *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ID == s.selectedID && s.selectedID != pendingKey {
			conv := s.conversations[i]
			return &conv
		}
	}
	return nil
}

// canonicalizeHistory maps raw backend messages to the client Message
// shape: fresh time-based ids and client timestamps. The backend's
// per-message timestamps, if any, are not used. Unknown roles collapse to
// assistant so nothing silently disappears from the transcript.
func canonicalizeHistory(raw []HistoryMessage) []Message {
	msgs := make([]Message, 0, len(raw))
	for _, r := range raw {
		role := strings.ToLower(strings.TrimSpace(r.Role))
		if role != RoleUser {
			role = RoleAssistant
		}
		kind := KindNormal
		if role == RoleAssistant && strings.HasPrefix(r.Content, ErrorSentinel) {
			kind = KindError
		}
		msgs = append(msgs, newMessage(role, r.Content, kind))
	}
	return msgs
}

func snapshotMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

// deriveConversationTitle produces the list label for a conversation from
// its first user message.
func deriveConversationTitle(content string) string {
	content = strings.Join(strings.Fields(strings.TrimSpace(content)), " ")
	if content == "" {
		return "New Conversation"
	}
	const max = 30
	if len(content) > max {
		return content[:max] + "..."
	}
	return content
}
