// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// String returns the string representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable name for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Assistant"
	default:
		return string(s)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in a chat. A bot message starts life as a
// streaming placeholder with empty content; chunks are appended in arrival
// order until the stream finalizes, after which the content is immutable.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Streaming bool      `json:"streaming,omitempty"`

	// PERFORMANCE: strings.Builder avoids quadratic allocations while
	// chunks arrive. Content is kept in sync after every append so the
	// persisted copy always matches what is rendered.
	stream strings.Builder
}

// msgSeq disambiguates IDs minted within the same nanosecond.
var msgSeq int64

// NewMessageID derives a unique, monotonic-ish message ID from the
// submission time.
func NewMessageID(t time.Time) string {
	seq := atomic.AddInt64(&msgSeq, 1)
	return "msg_" + strconv.FormatInt(t.UnixNano(), 36) + "_" + strconv.FormatInt(seq, 36)
}

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) *Message {
	now := time.Now()
	return &Message{
		ID:        NewMessageID(now),
		Sender:    SenderUser,
		Content:   content,
		Timestamp: now,
	}
}

// NewBotPlaceholder creates the streaming bot message that is filled in as
// chunks arrive.
func NewBotPlaceholder() *Message {
	now := time.Now()
	return &Message{
		ID:        NewMessageID(now),
		Sender:    SenderBot,
		Timestamp: now,
		Streaming: true,
	}
}

// AppendChunk appends a streamed chunk to the message content.
// No-op once the message has been finalized.
func (m *Message) AppendChunk(chunk string) {
	if !m.Streaming {
		return
	}
	m.stream.WriteString(chunk)
	m.Content = m.stream.String()
}

// Finalize marks the message as no longer streaming. The accumulated
// content becomes immutable.
func (m *Message) Finalize() {
	if !m.Streaming {
		return
	}
	m.Content = m.stream.String()
	m.stream.Reset()
	m.Streaming = false
}

// FinalizeWith replaces the content outright and stops streaming. Used for
// the cancellation placeholder text and inline error strings.
func (m *Message) FinalizeWith(content string) {
	m.stream.Reset()
	m.Content = content
	m.Streaming = false
}

// IsEmpty returns true if the message has no content.
func (m *Message) IsEmpty() bool {
	return m.Content == ""
}

// Clone returns a copy of the message with the same ID and content.
// The streaming builder is not carried over; clones are always final.
func (m *Message) Clone() *Message {
	return &Message{
		ID:        m.ID,
		Sender:    m.Sender,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}
}

// CloneMessages deep-copies a message list.
func CloneMessages(msgs []*Message) []*Message {
	out := make([]*Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
