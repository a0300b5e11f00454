package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"docdash/internal/app"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 7, "hello.."},
		{"héllo wörld", 7, "héllo.."},
		{"hi", 0, "hi"},
		{"hello", 2, "he"},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.width); got != tt.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestPad(t *testing.T) {
	if got := pad("ab", 5); got != "ab   " {
		t.Fatalf("got %q", got)
	}
	if got := pad("abcdef", 4); got != "abcd" {
		t.Fatalf("got %q", got)
	}
}

func TestRenderConversationRowFallsBackToUntitled(t *testing.T) {
	row := renderConversationRow(app.Conversation{ID: "c1", Title: "   "}, 20, false)
	if !strings.Contains(row, "Untitled") {
		t.Fatalf("row = %q", row)
	}
}

func TestRenderConversationRowCollapsesPreviewWhitespace(t *testing.T) {
	conv := app.Conversation{
		ID:    "c1",
		Title: "Docs",
		LastMessage: &app.LastMessage{
			Role:    app.RoleAssistant,
			Content: "line one\nline   two",
		},
	}
	row := renderConversationRow(conv, 40, false)
	if !strings.Contains(row, "line one line two") {
		t.Fatalf("preview not flattened: %q", row)
	}
}

func TestNewConversationKeyResetsChat(t *testing.T) {
	session := app.NewSessionManager(nil, nil)
	m := New(session, app.Config{UserID: "u1"}, nil)
	m.focus = focusList

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})

	if m.focus != focusInput {
		t.Fatalf("focus = %v, want input", m.focus)
	}
	msgs := session.Messages()
	if len(msgs) != 1 || msgs[0].Role != app.RoleAssistant {
		t.Fatalf("greeting not shown: %+v", msgs)
	}
}

func TestTabSwitchesFocus(t *testing.T) {
	m := New(app.NewSessionManager(nil, nil), app.Config{}, nil)

	if m.focus != focusInput {
		t.Fatalf("initial focus = %v", m.focus)
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusList {
		t.Fatalf("after tab focus = %v", m.focus)
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if m.focus != focusInput {
		t.Fatalf("after second tab focus = %v", m.focus)
	}
}

func TestEnterOnEmptyInputDoesNotSend(t *testing.T) {
	m := New(app.NewSessionManager(nil, nil), app.Config{UserID: "u1"}, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Fatalf("empty input produced a send command")
	}
}

func TestPromptHistoryRecall(t *testing.T) {
	m := New(app.NewSessionManager(nil, nil), app.Config{UserID: "u1"}, nil)
	m.promptHistory = []string{"first", "second"}

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.input.Value(); got != "second" {
		t.Fatalf("recall = %q, want %q", got, "second")
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	if got := m.input.Value(); got != "first" {
		t.Fatalf("recall = %q, want %q", got, "first")
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.input.Value(); got != "second" {
		t.Fatalf("forward recall = %q, want %q", got, "second")
	}
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if got := m.input.Value(); got != "" {
		t.Fatalf("leaving history should clear input, got %q", got)
	}
}

func TestArchiveWithNothingToSaveReportsIt(t *testing.T) {
	m := New(app.NewSessionManager(nil, nil), app.Config{}, nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	if cmd == nil {
		t.Fatalf("ctrl+s produced no command")
	}
	_, _ = m.Update(cmd())
	if m.status != "nothing to archive" {
		t.Fatalf("status = %q, want %q", m.status, "nothing to archive")
	}

	_, _ = m.Update(archivedMsg{saved: true})
	if m.status != "conversation archived" {
		t.Fatalf("status = %q, want %q", m.status, "conversation archived")
	}
}

func TestWindowResizeClampsLayout(t *testing.T) {
	m := New(app.NewSessionManager(nil, nil), app.Config{}, nil)

	_, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	if m.width != 80 || m.height != 24 {
		t.Fatalf("size not stored: %dx%d", m.width, m.height)
	}
	if m.listWidth() < 28 {
		t.Fatalf("list width below minimum: %d", m.listWidth())
	}
	if m.chatWidth() <= 0 {
		t.Fatalf("chat width = %d", m.chatWidth())
	}
}
