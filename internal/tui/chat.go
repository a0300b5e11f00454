package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"docdash/internal/app"
)

type focus int

const (
	focusList focus = iota
	focusInput
	focusSearch
)

const opTimeout = 90 * time.Second

// Model is the chat screen: conversation list on the left, the active
// conversation on the right, an input line at the bottom. All chat state
// lives in the SessionManager; the model only holds view state.
type Model struct {
	session *app.SessionManager
	cfg     app.Config
	archive *app.Archive

	focus       focus
	searchInput textinput.Model
	input       textinput.Model

	cursor int
	offset int
	width  int
	height int

	status   string
	quitting bool

	promptHistory []string
	historyPos    int
}

type (
	conversationsLoadedMsg struct{}
	historyLoadedMsg       struct{ conversationID string }
	sendDoneMsg            struct{ err error }
	archivedMsg            struct {
		saved bool
		err   error
	}
)

func New(session *app.SessionManager, cfg app.Config, archive *app.Archive) *Model {
	si := textinput.New()
	si.Placeholder = "Search conversations..."
	si.CharLimit = 100

	in := textinput.New()
	in.Placeholder = "Ask me anything about your documents..."
	in.CharLimit = 4000
	in.Focus()

	m := &Model{
		session:     session,
		cfg:         cfg,
		archive:     archive,
		focus:       focusInput,
		searchInput: si,
		input:       in,
		width:       120,
		height:      30,
		historyPos:  -1,
	}
	if archive != nil {
		if entries, err := archive.LoadPromptHistory(); err == nil {
			m.promptHistory = entries
		}
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	m.session.StartNewConversation()
	return tea.Batch(textinput.Blink, m.loadConversationsCmd())
}

func (m *Model) loadConversationsCmd() tea.Cmd {
	userID := m.cfg.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		m.session.LoadConversations(ctx, userID)
		return conversationsLoadedMsg{}
	}
}

func (m *Model) selectCmd(conversationID string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		m.session.SelectConversation(ctx, conversationID)
		return historyLoadedMsg{conversationID: conversationID}
	}
}

func (m *Model) sendCmd(text string) tea.Cmd {
	userID := m.cfg.UserID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		err := m.session.SendMessage(ctx, text, userID)
		return sendDoneMsg{err: err}
	}
}

func (m *Model) archiveCmd() tea.Cmd {
	conv := m.session.SelectedConversation()
	msgs := m.session.Messages()
	return func() tea.Msg {
		if m.archive == nil || conv == nil {
			return archivedMsg{}
		}
		return archivedMsg{saved: true, err: m.archive.SaveTranscript(*conv, msgs)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.searchInput.Width = m.listWidth() - 4
		m.input.Width = m.chatWidth() - 4
		m.clampOffset()
		return m, nil

	case conversationsLoadedMsg:
		m.clampCursor()
		return m, nil

	case historyLoadedMsg:
		return m, nil

	case sendDoneMsg:
		switch msg.err {
		case nil:
			m.status = ""
		case app.ErrSendInFlight:
			m.status = "still waiting for the previous reply"
		case app.ErrUserIDRequired:
			m.status = "no user id configured; set user_id in the config or DOCDASH_USER_ID"
		default:
			m.status = msg.err.Error()
		}
		return m, nil

	case archivedMsg:
		switch {
		case msg.err != nil:
			m.status = "archive failed: " + msg.err.Error()
		case !msg.saved:
			m.status = "nothing to archive"
		default:
			m.status = "conversation archived"
		}
		return m, nil

	case tea.KeyMsg:
		switch m.focus {
		case focusSearch:
			return m.updateSearch(msg)
		case focusList:
			return m.updateList(msg)
		default:
			return m.updateInput(msg)
		}
	}
	return m, nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.searchInput.Blur()
		m.focus = focusList
		m.clampCursor()
		return m, nil
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.clampCursor()
	return m, cmd
}

func (m *Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.focus = focusInput
		m.input.Focus()
		return m, nil

	case "/":
		m.focus = focusSearch
		m.searchInput.Focus()
		return m, nil

	case "n":
		m.session.StartNewConversation()
		m.focus = focusInput
		m.input.Focus()
		return m, nil

	case "r":
		return m, m.loadConversationsCmd()

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
			m.clampOffset()
		}

	case "down", "j":
		if m.cursor < len(m.filtered())-1 {
			m.cursor++
			m.clampOffset()
		}

	case "enter":
		convs := m.filtered()
		if m.cursor < len(convs) {
			m.focus = focusInput
			m.input.Focus()
			return m, m.selectCmd(convs[m.cursor].ID)
		}
	}
	return m, nil
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		m.focus = focusList
		m.input.Blur()
		return m, nil

	case "ctrl+n":
		m.session.StartNewConversation()
		return m, nil

	case "ctrl+s":
		return m, m.archiveCmd()

	case "up":
		if len(m.promptHistory) > 0 {
			if m.historyPos < 0 {
				m.historyPos = len(m.promptHistory)
			}
			if m.historyPos > 0 {
				m.historyPos--
				m.input.SetValue(m.promptHistory[m.historyPos])
				m.input.CursorEnd()
			}
		}
		return m, nil

	case "down":
		if m.historyPos >= 0 {
			m.historyPos++
			if m.historyPos >= len(m.promptHistory) {
				m.historyPos = -1
				m.input.SetValue("")
			} else {
				m.input.SetValue(m.promptHistory[m.historyPos])
				m.input.CursorEnd()
			}
		}
		return m, nil

	case "enter":
		text := m.input.Value()
		if text == "" || m.session.IsSending() {
			return m, nil
		}
		m.input.SetValue("")
		m.historyPos = -1
		m.rememberPrompt(text)
		return m, m.sendCmd(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) rememberPrompt(text string) {
	m.promptHistory = append(m.promptHistory, text)
	if len(m.promptHistory) > 200 {
		m.promptHistory = m.promptHistory[len(m.promptHistory)-200:]
	}
	if m.archive != nil {
		_ = m.archive.SavePromptHistory(m.promptHistory)
	}
}

func (m *Model) filtered() []app.Conversation {
	return m.session.FilteredConversations(m.searchInput.Value())
}

func (m *Model) clampCursor() {
	n := len(m.filtered())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.clampOffset()
}

func (m *Model) clampOffset() {
	visible := m.visibleListRows()
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+visible {
		m.offset = m.cursor - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}
