// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/session"
	"github.com/jeranaias/chatline/internal/ui/components"
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showing {
		return m.helpView()
	}

	main := lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.inputView(),
		m.statusView(),
	)

	if m.sidebarOpen {
		sidebar := m.sidebar.Render(m.controller.Chats(), m.controller.ActiveChatID(), m.height)
		main = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	if len(m.toasts) > 0 {
		var lines []string
		for _, t := range m.toasts {
			lines = append(lines, t.Render(m.theme))
		}
		toasts := strings.Join(lines, "\n")
		// Overlay in spirit: toasts sit above the status line.
		main = lipgloss.JoinVertical(lipgloss.Right, main, toasts)
	}

	return main
}

func (m *Model) headerView() string {
	title := m.theme.HeaderTitle.Render("chatline")

	name := model.DefaultTitle
	if chat := m.controller.ActiveChat(); chat != nil {
		name = chat.Title
	}

	width := m.contentWidth()
	return m.theme.Header.Width(width).Render(title + "  " + name)
}

func (m *Model) inputView() string {
	return m.theme.InputContainer.Width(m.contentWidth() - 2).Render(m.input.View())
}

func (m *Model) statusView() string {
	var status string
	switch m.controller.State() {
	case session.StateIdle:
		status = m.hint("Enter", "send") + "  " + m.hint("C-g", "help") + "  " + m.hint("C-c", "quit")
	case session.StateAborting:
		status = "stopping..."
	default:
		status = m.spinner.View() + " generating  " + m.hint("Esc", "stop")
	}

	if name := m.controller.Prefs().Model; name != "" {
		status += "  " + m.theme.StatusDesc.Render("model:"+name)
	}
	return m.theme.StatusBar.Width(m.contentWidth()).Render(status)
}

func (m *Model) hint(keyName, desc string) string {
	return m.theme.StatusKey.Render(keyName) + " " + m.theme.StatusDesc.Render(desc)
}

func (m *Model) contentWidth() int {
	if m.sidebarOpen {
		return m.width - components.SidebarWidth
	}
	return m.width
}

func (m *Model) helpView() string {
	help := `chatline commands

  /search <query>    answer with web results woven in
  /new               start a new chat
  /clear             clear backend memory and this chat
  /duplicate         copy this chat into a new one
  /reuse             prefill the first prompt of this chat
  /regen             regenerate the last reply
  /upload <path>...  upload files to the backend
  /model <name>      select the model (empty resets)
  /key <api-key>     save the backend API key
  /thinking          show or hide <think> spans
  /sidebar           toggle the chat list
  /export [path]     export this chat as Markdown
  /quit              exit

  Enter send    Esc stop    C-n new chat    C-p/C-j switch chat
  C-b sidebar   PgUp/PgDn scroll            C-c quit

Press Esc or C-g to close this help.`

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		m.theme.HelpOverlay.Render(help))
}
