// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea chat view for chatline.
//
// This file defines the Bubble Tea message types and the program handle
// used to deliver stream events from transport goroutines into the event
// loop.
package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatline/internal/session"
)

// =============================================================================
// STREAM MESSAGES
// =============================================================================

// StreamChunkMsg delivers one applied chunk of the in-flight reply.
type StreamChunkMsg struct {
	Chunk string
}

// StreamDoneMsg signals that the exchange has finalized, successfully or
// not; the controller state already reflects the outcome.
type StreamDoneMsg struct{}

// NoticeMsg carries a controller notification to be shown as a toast.
type NoticeMsg struct {
	Notice session.Notice
}

// HealthMsg reports the startup backend probe.
type HealthMsg struct {
	Err error
}

// toastTickMsg prompts expiry checks on visible toasts.
type toastTickMsg struct{}

// =============================================================================
// PROGRAM HANDLE
// =============================================================================

// programRef hands the running tea.Program to goroutines that need to
// Send into the event loop. The program only exists after the model has
// been constructed, hence the late binding.
type programRef struct {
	mu sync.Mutex
	p  *tea.Program
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.p = p
}

func (r *programRef) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.p
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}
