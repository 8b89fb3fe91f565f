// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/chatline/internal/session"
	"github.com/jeranaias/chatline/internal/ui/components"
	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// SUBMIT AND SLASH COMMANDS
// =============================================================================

// handleSubmit routes the input box content: slash commands are handled
// locally, everything else (including /search, which the controller's
// grammar owns) becomes an exchange.
func (m *Model) handleSubmit() tea.Cmd {
	text := m.input.Value()
	if util.IsBlank(text) {
		return nil
	}

	if cmd, handled := m.dispatchCommand(text); handled {
		m.input.SetValue("")
		return cmd
	}

	ex, err := m.controller.Submit(text)
	if err != nil {
		return m.submitError(err)
	}
	m.input.SetValue("")
	m.refreshTranscript(true)
	return m.startExchange(ex)
}

// dispatchCommand handles local slash commands. Returns handled=false for
// plain prompts and for /search, which is part of the submit grammar.
func (m *Model) dispatchCommand(text string) (tea.Cmd, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return nil, false
	}

	fields := strings.Fields(trimmed)
	command := fields[0]
	args := fields[1:]

	switch command {
	case "/search":
		// Owned by the controller's command grammar.
		return nil, false

	case "/help":
		m.showing = true
		return nil, true

	case "/quit":
		return tea.Quit, true

	case "/new":
		m.controller.NewChat()
		m.refreshTranscript(false)
		return nil, true

	case "/clear":
		return m.clearMemoryCmd(), true

	case "/duplicate":
		if _, err := m.controller.Duplicate(); err != nil {
			return m.submitError(err), true
		}
		m.refreshTranscript(false)
		return m.pushToast("Chat duplicated", components.ToastKindInfo), true

	case "/reuse":
		seed, err := m.controller.Reuse()
		if err != nil {
			return m.submitError(err), true
		}
		m.refreshTranscript(false)
		m.input.SetValue(seed)
		m.input.CursorEnd()
		return nil, true

	case "/regen":
		ex, err := m.controller.Regenerate()
		if err != nil {
			return m.submitError(err), true
		}
		m.refreshTranscript(true)
		return m.startExchange(ex), true

	case "/upload":
		if len(args) == 0 {
			return m.pushToast("Usage: /upload <path> ...", components.ToastKindError), true
		}
		return m.uploadCmd(args), true

	case "/model":
		name := strings.Join(args, " ")
		m.controller.SetModel(name)
		if name == "" {
			return m.pushToast("Model reset to backend default", components.ToastKindInfo), true
		}
		return m.pushToast("Model set to "+name, components.ToastKindInfo), true

	case "/key":
		if len(args) != 1 {
			return m.pushToast("Usage: /key <api-key>", components.ToastKindError), true
		}
		m.controller.SetAPIKey(args[0])
		return m.pushToast("API key saved", components.ToastKindInfo), true

	case "/thinking":
		if m.controller.ToggleShowThinking() {
			m.refreshTranscript(false)
			return m.pushToast("Thinking shown", components.ToastKindInfo), true
		}
		m.refreshTranscript(false)
		return m.pushToast("Thinking hidden", components.ToastKindInfo), true

	case "/sidebar":
		m.sidebarOpen = m.controller.ToggleSidebar()
		m.resize(m.width, m.height)
		m.refreshTranscript(false)
		return nil, true

	case "/export":
		path := exportPath(args)
		if err := m.controller.Export(path); err != nil {
			return m.pushToast("Export failed: "+err.Error(), components.ToastKindError), true
		}
		return m.pushToast("Exported to "+path, components.ToastKindInfo), true

	default:
		return m.pushToast("Unknown command "+command, components.ToastKindError), true
	}
}

// exportPath resolves the /export target: explicit argument or a
// timestamped file in the working directory.
func exportPath(args []string) string {
	if len(args) > 0 {
		return strings.Join(args, " ")
	}
	name := "chatline-" + time.Now().Format("20060102-150405") + ".md"
	wd, err := os.Getwd()
	if err != nil {
		return name
	}
	return filepath.Join(wd, name)
}

// submitError maps controller rejections to toasts. An empty submit needs
// no feedback beyond the unchanged input.
func (m *Model) submitError(err error) tea.Cmd {
	switch {
	case errors.Is(err, session.ErrEmptySubmit):
		return nil
	case errors.Is(err, session.ErrBusy):
		return m.pushToast("Wait for the current reply to finish", components.ToastKindError)
	default:
		return m.pushToast(err.Error(), components.ToastKindError)
	}
}
