// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultTitle is the placeholder title for a chat that has not yet
	// derived one from its first message.
	DefaultTitle = "New Chat"

	// CurrentChatID is the pseudo-id for the transient "no chat created
	// yet" state. Messages under this id are never persisted per-chunk.
	CurrentChatID = "current"

	// TitleMaxRunes caps derived chat titles.
	TitleMaxRunes = 50

	// PreviewMaxRunes caps derived chat previews.
	PreviewMaxRunes = 80
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is one persisted chat thread. The message list is stored
// separately (keyed by chat id); the Conversation itself carries only the
// metadata shown in the sidebar plus the backend session binding.
//
// SessionID is the backend-assigned correlation key for server-side memory.
// The empty string means "not bound yet": it stays empty until the first
// successful exchange and, once bound, is reused for every later exchange
// in this chat unless explicitly cleared.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Preview   string    `json:"preview"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates a chat with a fresh id and the placeholder title.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "chat_" + uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasSession reports whether a backend session id has been bound.
func (c *Conversation) HasSession() bool {
	return c.SessionID != ""
}

// Touch refreshes the last-activity timestamp.
func (c *Conversation) Touch() {
	c.UpdatedAt = time.Now()
}

// TimestampLabel returns the last-activity display label for the sidebar.
func (c *Conversation) TimestampLabel() string {
	now := time.Now()
	if c.UpdatedAt.Year() == now.Year() && c.UpdatedAt.YearDay() == now.YearDay() {
		return c.UpdatedAt.Format("15:04")
	}
	return c.UpdatedAt.Format("Jan 2")
}

// DeriveTitle sets the title from the first line of the displayed user
// text, rune-capped. Only applied while the title is still the placeholder
// default, so later messages never overwrite it.
func (c *Conversation) DeriveTitle(displayText string) {
	if c.Title != "" && c.Title != DefaultTitle {
		return
	}
	line := util.FirstLine(displayText)
	if line == "" {
		return
	}
	c.Title = util.TruncateRunes(line, TitleMaxRunes)
}

// DerivePreview sets the preview from the given text: whitespace collapsed
// to single spaces, rune-capped.
func (c *Conversation) DerivePreview(text string) {
	c.Preview = util.TruncateRunes(util.CollapseWhitespace(text), PreviewMaxRunes)
}

// Clone returns a copy of the chat metadata.
func (c *Conversation) Clone() *Conversation {
	cp := *c
	return &cp
}
