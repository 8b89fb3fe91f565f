// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/ui/styles"
)

// =============================================================================
// SIDEBAR
// =============================================================================

// SidebarWidth is the fixed column width of the chat list, borders included.
const SidebarWidth = 28

// Sidebar renders the chat list column. It carries no state of its own;
// the chat list and active id come from the controller on every render.
type Sidebar struct {
	theme *styles.Theme
}

// NewSidebar creates a sidebar renderer.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{theme: theme}
}

// Render draws the chat list at the given height. The active chat is
// highlighted; every entry shows its title, activity label, and preview.
func (s *Sidebar) Render(chats []*model.Conversation, activeID string, height int) string {
	innerWidth := SidebarWidth - 3 // border + padding

	var b strings.Builder
	b.WriteString(s.theme.SidebarTitle.Render("Chats"))
	b.WriteString("\n\n")

	if len(chats) == 0 {
		b.WriteString(s.theme.SidebarItemPreview.Render("No chats yet"))
	}

	for _, chat := range chats {
		title := runewidth.Truncate(chat.Title, innerWidth-7, "…")
		line := runewidth.FillRight(title, innerWidth-6) + chat.TimestampLabel()

		if chat.ID == activeID {
			b.WriteString(s.theme.SidebarItemActive.Render(line))
		} else {
			b.WriteString(s.theme.SidebarItem.Render(line))
		}
		b.WriteString("\n")

		if chat.Preview != "" {
			preview := runewidth.Truncate(chat.Preview, innerWidth, "…")
			b.WriteString(s.theme.SidebarItemPreview.Render(preview))
			b.WriteString("\n")
		}
	}

	return s.theme.Sidebar.
		Width(SidebarWidth - 1).
		Height(height).
		Render(b.String())
}
