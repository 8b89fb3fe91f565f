// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestNewMessageIDUnique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewMessageID(now)
		if seen[id] {
			t.Fatalf("duplicate message ID: %s", id)
		}
		seen[id] = true
	}
}

func TestNewUserMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.Sender != SenderUser {
		t.Errorf("Sender = %q, want %q", msg.Sender, SenderUser)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
	if msg.Streaming {
		t.Error("user messages must not be streaming")
	}
	if !strings.HasPrefix(msg.ID, "msg_") {
		t.Errorf("ID should start with 'msg_', got %q", msg.ID)
	}
}

func TestBotPlaceholderStreaming(t *testing.T) {
	msg := NewBotPlaceholder()

	if msg.Sender != SenderBot {
		t.Errorf("Sender = %q, want %q", msg.Sender, SenderBot)
	}
	if !msg.Streaming {
		t.Error("placeholder must start streaming")
	}
	if msg.Content != "" {
		t.Errorf("placeholder content = %q, want empty", msg.Content)
	}

	// Chunks accumulate in arrival order and Content tracks them.
	msg.AppendChunk("Hello")
	msg.AppendChunk(", ")
	msg.AppendChunk("world")
	if msg.Content != "Hello, world" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello, world")
	}

	msg.Finalize()
	if msg.Streaming {
		t.Error("message should not be streaming after Finalize")
	}
	if msg.Content != "Hello, world" {
		t.Errorf("Content after finalize = %q, want %q", msg.Content, "Hello, world")
	}

	// Finalized messages are immutable.
	msg.AppendChunk("!!!")
	if msg.Content != "Hello, world" {
		t.Error("AppendChunk mutated a finalized message")
	}
}

func TestFinalizeWithOverwrites(t *testing.T) {
	msg := NewBotPlaceholder()
	msg.AppendChunk("partial out")
	msg.FinalizeWith("Generation stopped.")

	if msg.Streaming {
		t.Error("message should not be streaming after FinalizeWith")
	}
	if msg.Content != "Generation stopped." {
		t.Errorf("Content = %q, want %q", msg.Content, "Generation stopped.")
	}
}

func TestCloneMessages(t *testing.T) {
	src := []*Message{
		NewUserMessage("question"),
		NewUserMessage("another"),
	}

	clones := CloneMessages(src)
	if len(clones) != len(src) {
		t.Fatalf("clone count = %d, want %d", len(clones), len(src))
	}
	for i := range src {
		if clones[i] == src[i] {
			t.Error("clone shares identity with source message")
		}
		if clones[i].Content != src[i].Content || clones[i].ID != src[i].ID {
			t.Error("clone content mismatch")
		}
	}

	// Mutating the clone leaves the source untouched.
	clones[0].Content = "mutated"
	if src[0].Content == "mutated" {
		t.Error("mutating clone affected source")
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	conv := NewConversation()

	if !strings.HasPrefix(conv.ID, "chat_") {
		t.Errorf("ID should start with 'chat_', got %q", conv.ID)
	}
	if conv.Title != DefaultTitle {
		t.Errorf("Title = %q, want %q", conv.Title, DefaultTitle)
	}
	if conv.HasSession() {
		t.Error("new chat must not have a session binding")
	}
}

func TestDeriveTitleFirstLineOnly(t *testing.T) {
	conv := NewConversation()
	conv.DeriveTitle("Explain binary search\nin detail")

	if conv.Title != "Explain binary search" {
		t.Errorf("Title = %q, want %q", conv.Title, "Explain binary search")
	}

	// Later messages never overwrite a derived title.
	conv.DeriveTitle("Something else entirely")
	if conv.Title != "Explain binary search" {
		t.Errorf("Title was overwritten: %q", conv.Title)
	}
}

func TestDeriveTitleCapped(t *testing.T) {
	conv := NewConversation()
	long := strings.Repeat("a", 200)
	conv.DeriveTitle(long)

	if got := len([]rune(conv.Title)); got > TitleMaxRunes {
		t.Errorf("title length = %d runes, want <= %d", got, TitleMaxRunes)
	}
}

func TestDerivePreviewCollapsesWhitespace(t *testing.T) {
	conv := NewConversation()
	conv.DerivePreview("line one\n\n\tline   two  ")

	if conv.Preview != "line one line two" {
		t.Errorf("Preview = %q, want %q", conv.Preview, "line one line two")
	}

	conv.DerivePreview(strings.Repeat("word ", 100))
	if got := len([]rune(conv.Preview)); got > PreviewMaxRunes {
		t.Errorf("preview length = %d runes, want <= %d", got, PreviewMaxRunes)
	}
}

func TestConversationClone(t *testing.T) {
	conv := NewConversation()
	conv.SessionID = "sess-1"

	cp := conv.Clone()
	if cp == conv {
		t.Fatal("Clone returned the same pointer")
	}
	cp.SessionID = "sess-2"
	if conv.SessionID != "sess-1" {
		t.Error("mutating clone affected source")
	}
}
