// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/session"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// rebuildRenderer recreates the glamour renderer for a new wrap width.
func (m *Model) rebuildRenderer(width int) {
	if width < 20 {
		width = 20
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-2),
	)
	if err != nil {
		m.log.WithError(err).Warn("markdown renderer unavailable")
		m.renderer = nil
		return
	}
	m.renderer = renderer
}

// renderMarkdown renders finalized assistant content, falling back to the
// raw text when glamour fails.
func (m *Model) renderMarkdown(content string) string {
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// THINKING FILTER
// =============================================================================

// FilterThinking removes <think>...</think> spans from assistant content.
// An unterminated span hides everything after its opening tag, which is
// what a mid-stream render needs.
func FilterThinking(s string) string {
	const (
		openTag  = "<think>"
		closeTag = "</think>"
	)

	var b strings.Builder
	for {
		start := strings.Index(s, openTag)
		if start == -1 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:start])
		rest := s[start+len(openTag):]
		end := strings.Index(rest, closeTag)
		if end == -1 {
			break
		}
		s = rest[end+len(closeTag):]
	}
	return strings.TrimSpace(b.String())
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// refreshTranscript rebuilds the viewport content from the controller
// snapshot. followTail keeps the view pinned to the newest content, as
// during streaming.
func (m *Model) refreshTranscript(followTail bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.transcript())
	if followTail {
		m.viewport.GotoBottom()
	}
}

// transcript renders the active chat's messages top to bottom.
func (m *Model) transcript() string {
	msgs := m.controller.Messages()
	showThinking := m.controller.Prefs().ShowThinking

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.renderMessage(msg, showThinking))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderMessage(msg *model.Message, showThinking bool) string {
	ts := m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	if msg.Sender == model.SenderUser {
		label := m.theme.UserLabel.Render("You") + " " + ts
		return label + "\n" + m.theme.UserBubble.Render(msg.Content)
	}

	label := m.theme.AssistantLabel.Render("Assistant") + " " + ts

	content := msg.Content
	if !showThinking {
		content = FilterThinking(content)
	}

	switch {
	case msg.Streaming:
		// Raw text while streaming; markdown would reflow every chunk.
		return label + " " + m.spinner.View() + "\n" + m.theme.AssistantText.Render(content)
	case msg.Content == session.AbortedText:
		return label + "\n" + m.theme.StoppedText.Render(content)
	case strings.HasPrefix(msg.Content, session.ErrorPrefix):
		return label + "\n" + m.theme.ErrorText.Render(content)
	default:
		return label + "\n" + m.renderMarkdown(content)
	}
}
