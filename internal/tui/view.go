package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"docdash/internal/app"
)

func (m *Model) listWidth() int {
	w := m.width / 4
	if w < 28 {
		w = 28
	}
	return w
}

func (m *Model) chatWidth() int {
	return m.width - m.listWidth() - 2
}

func (m *Model) visibleListRows() int {
	// Each conversation renders as two lines plus a spacer.
	rows := (m.height - 6) / 3
	if rows < 1 {
		rows = 1
	}
	return rows
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	header := titleStyle.Render("DocDash AI Chat") +
		dimStyle.Render("  Ask questions about your documents")

	left := m.renderConversationPane()
	right := m.renderChatPane()
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return header + "\n" + body + "\n" + m.renderStatusBar()
}

func (m *Model) renderConversationPane() string {
	var b strings.Builder

	if m.focus == focusSearch {
		b.WriteString(m.searchInput.View())
	} else if q := m.searchInput.Value(); q != "" {
		b.WriteString(dimStyle.Render("search: " + q))
	} else {
		b.WriteString(dimStyle.Render("Conversations"))
	}
	b.WriteString("\n\n")

	convs := m.filtered()
	if m.session.IsLoadingConversations() {
		b.WriteString(dimStyle.Render("loading..."))
	} else if len(convs) == 0 {
		b.WriteString(dimStyle.Render("No conversations yet.\nPress n to start a new chat."))
	} else {
		end := m.offset + m.visibleListRows()
		if end > len(convs) {
			end = len(convs)
		}
		width := m.listWidth() - 4
		for i := m.offset; i < end; i++ {
			b.WriteString(renderConversationRow(convs[i], width, i == m.cursor && m.focus == focusList))
			b.WriteString("\n")
		}
	}

	style := listPaneStyle
	if m.focus == focusList || m.focus == focusSearch {
		style = focusedPaneStyle
	}
	return style.Width(m.listWidth()).Height(m.height - 4).Render(b.String())
}

func renderConversationRow(conv app.Conversation, width int, selected bool) string {
	title := conv.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled"
	}
	preview := ""
	if conv.LastMessage != nil {
		preview = strings.Join(strings.Fields(conv.LastMessage.Content), " ")
	}
	line1 := truncate(title, width)
	line2 := truncate(preview, width)

	if selected {
		return selectedConvStyle.Render(pad(line1, width)) + "\n" + selectedConvStyle.Render(pad(line2, width)) + "\n"
	}
	return convTitleStyle.Render(line1) + "\n" + dimStyle.Render(line2) + "\n"
}

func (m *Model) renderChatPane() string {
	var b strings.Builder
	width := m.chatWidth() - 4

	msgs := m.session.Messages()
	if m.session.IsLoadingHistory() {
		b.WriteString(dimStyle.Render("loading history..."))
		b.WriteString("\n")
	}
	// Render only as many trailing messages as fit; the session keeps the
	// full transcript.
	maxLines := m.height - 9
	var rendered []string
	lines := 0
	for i := len(msgs) - 1; i >= 0 && lines < maxLines; i-- {
		block := renderMessageBlock(msgs[i], width)
		lines += strings.Count(block, "\n") + 1
		rendered = append([]string{block}, rendered...)
	}
	b.WriteString(strings.Join(rendered, "\n"))
	b.WriteString("\n")

	if m.session.IsSending() {
		b.WriteString(dimStyle.Render("assistant is thinking..."))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())

	style := chatPaneStyle
	if m.focus == focusInput {
		style = focusedPaneStyle
	}
	return style.Width(m.chatWidth()).Height(m.height - 4).Render(b.String())
}

func renderMessageBlock(msg app.Message, width int) string {
	var label string
	switch msg.Role {
	case app.RoleUser:
		label = userRoleStyle.Render(" you ")
	default:
		label = assistantRoleStyle.Render(" assistant ")
	}

	body := msg.Content
	style := lipgloss.NewStyle().Width(width)
	if msg.Kind == app.KindError {
		style = errorMsgStyle.Width(width)
	}
	ts := dimStyle.Render(msg.Timestamp.Format("15:04:05"))
	return label + " " + ts + "\n" + style.Render(body)
}

func (m *Model) renderStatusBar() string {
	if m.status != "" {
		return statusBarStyle.Render(m.status)
	}
	convCount := len(m.session.Conversations())
	info := fmt.Sprintf(" %d conversation(s) ", convCount)
	help := "tab: switch pane  /: search  n: new chat  ctrl+s: archive  q: quit"
	return statusBarStyle.Render(info) + helpStyle.Render("  "+help)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width <= 2 {
		return string(runes[:width])
	}
	return string(runes[:width-2]) + ".."
}

func pad(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:width])
	}
	return s + strings.Repeat(" ", width-len(runes))
}
