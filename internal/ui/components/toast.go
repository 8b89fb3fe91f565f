// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides reusable UI components for the chatline TUI.
//
// Toasts are non-blocking notifications in the corner of the view: they
// auto-dismiss after a duration and the user can keep typing while one is
// shown.
package components

import (
	"sync/atomic"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/chatline/internal/ui/styles"
)

// =============================================================================
// TOAST
// =============================================================================

// ToastKind selects the toast styling.
type ToastKind int

const (
	ToastKindInfo ToastKind = iota
	ToastKindError
)

const (
	// InfoToastDuration is the auto-dismiss delay for informational toasts.
	InfoToastDuration = 4 * time.Second

	// ErrorToastDuration is longer so the message can be read.
	ErrorToastDuration = 8 * time.Second

	// toastMaxWidth caps the rendered toast width in cells.
	toastMaxWidth = 60
)

var toastSeq int64

// Toast is one transient notification.
type Toast struct {
	ID        int64
	Message   string
	Kind      ToastKind
	CreatedAt time.Time
	Duration  time.Duration
}

// NewToast creates a toast of the given kind with its default duration.
func NewToast(message string, kind ToastKind) Toast {
	d := InfoToastDuration
	if kind == ToastKindError {
		d = ErrorToastDuration
	}
	return Toast{
		ID:        atomic.AddInt64(&toastSeq, 1),
		Message:   message,
		Kind:      kind,
		CreatedAt: time.Now(),
		Duration:  d,
	}
}

// Expired reports whether the toast should be dismissed.
func (t Toast) Expired() bool {
	return time.Since(t.CreatedAt) >= t.Duration
}

// Render draws the toast box, width-aware so wide runes never overflow.
func (t Toast) Render(theme *styles.Theme) string {
	msg := runewidth.Truncate(t.Message, toastMaxWidth, "…")
	if t.Kind == ToastKindError {
		return theme.ToastError.Render(msg)
	}
	return theme.ToastInfo.Render(msg)
}
