// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/chatline/internal/session"
	"github.com/jeranaias/chatline/internal/ui/components"
	"github.com/jeranaias/chatline/internal/ui/styles"
)

// =============================================================================
// MODEL
// =============================================================================

// Model is the top-level Bubble Tea model: viewport for the transcript,
// single-line input, sidebar, toasts. All conversation state lives in the
// controller; the model renders snapshots and raises intents.
type Model struct {
	controller *session.Controller
	log        *logrus.Logger
	theme      *styles.Theme
	keys       KeyMap

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	sidebar  *components.Sidebar
	toasts   []components.Toast
	renderer *glamour.TermRenderer
	program  *programRef

	width   int
	height  int
	ready   bool
	showing bool // help overlay

	sidebarOpen bool
}

// New creates the chat model around an already-loaded controller.
func New(controller *session.Controller, log *logrus.Logger) *Model {
	theme := styles.NewTheme()

	input := textinput.New()
	input.Placeholder = "Type a message, or /help for commands"
	input.CharLimit = 0
	input.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	m := &Model{
		controller:  controller,
		log:         log,
		theme:       theme,
		keys:        DefaultKeyMap(),
		input:       input,
		spinner:     sp,
		sidebar:     components.NewSidebar(theme),
		program:     &programRef{},
		sidebarOpen: controller.Prefs().SidebarOpen,
	}

	// Stream goroutines and the controller push events through here.
	controller.SetNotifier(func(n session.Notice) {
		m.program.send(NoticeMsg{Notice: n})
	})

	return m
}

// SetProgram hands the running program to the model so goroutines can
// send into the event loop. Must be called before Run.
func (m *Model) SetProgram(p *tea.Program) {
	m.program.set(p)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshTranscript(true)
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}

	case StreamChunkMsg:
		m.refreshTranscript(true)
		return m, nil

	case StreamDoneMsg:
		m.refreshTranscript(true)
		return m, nil

	case NoticeMsg:
		kind := components.ToastKindInfo
		if msg.Notice.IsError {
			kind = components.ToastKindError
		}
		return m, m.pushToast(msg.Notice.Text, kind)

	case HealthMsg:
		if msg.Err != nil {
			return m, m.pushToast("Backend unreachable: "+msg.Err.Error(), components.ToastKindError)
		}
		return m, nil

	case toastTickMsg:
		m.pruneToasts()
		if len(m.toasts) > 0 {
			return m, toastTick()
		}
		return m, nil

	case spinner.TickMsg:
		if m.streaming() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			m.refreshTranscript(true)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKey processes bound keys; unbound keys fall through to the input.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.streaming() {
			m.controller.Stop()
			return nil, true
		}
		return tea.Quit, true

	case key.Matches(msg, m.keys.Stop):
		if m.showing {
			m.showing = false
			return nil, true
		}
		m.controller.Stop()
		return nil, true

	case key.Matches(msg, m.keys.Submit):
		return m.handleSubmit(), true

	case key.Matches(msg, m.keys.NewChat):
		m.controller.NewChat()
		m.input.SetValue("")
		m.refreshTranscript(false)
		return nil, true

	case key.Matches(msg, m.keys.PrevChat):
		m.switchChat(-1)
		return nil, true

	case key.Matches(msg, m.keys.NextChat):
		m.switchChat(1)
		return nil, true

	case key.Matches(msg, m.keys.ToggleSidebar):
		m.sidebarOpen = m.controller.ToggleSidebar()
		m.resize(m.width, m.height)
		m.refreshTranscript(false)
		return nil, true

	case key.Matches(msg, m.keys.Help):
		m.showing = !m.showing
		return nil, true
	}
	return nil, false
}

// switchChat selects the chat adjacent to the active one in the sidebar
// order.
func (m *Model) switchChat(delta int) {
	chats := m.controller.Chats()
	if len(chats) == 0 {
		return
	}

	active := m.controller.ActiveChatID()
	idx := -1
	for i, chat := range chats {
		if chat.ID == active {
			idx = i
			break
		}
	}

	next := idx + delta
	if idx == -1 {
		next = 0
	}
	if next < 0 || next >= len(chats) {
		return
	}

	if err := m.controller.SelectChat(chats[next].ID); err != nil {
		m.log.WithError(err).Warn("chat switch failed")
		return
	}
	m.refreshTranscript(false)
}

// startExchange drives the exchange on its own goroutine; chunks reach
// the loop via program.Send, completion via the returned message.
func (m *Model) startExchange(ex *session.Exchange) tea.Cmd {
	run := func() tea.Msg {
		ex.Run(func(chunk string) {
			m.program.send(StreamChunkMsg{Chunk: chunk})
		})
		return StreamDoneMsg{}
	}
	return tea.Batch(run, m.spinner.Tick)
}

// streaming reports whether an exchange is in flight.
func (m *Model) streaming() bool {
	switch m.controller.State() {
	case session.StateIdle:
		return false
	default:
		return true
	}
}

// pushToast adds a toast and arms the expiry timer.
func (m *Model) pushToast(text string, kind components.ToastKind) tea.Cmd {
	m.toasts = append(m.toasts, components.NewToast(text, kind))
	return toastTick()
}

func (m *Model) pruneToasts() {
	kept := m.toasts[:0]
	for _, t := range m.toasts {
		if !t.Expired() {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

func toastTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return toastTickMsg{}
	})
}

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
)

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height

	contentWidth := width
	if m.sidebarOpen {
		contentWidth -= components.SidebarWidth
	}
	contentHeight := height - headerHeight - inputHeight - statusHeight

	if !m.ready {
		m.viewport = viewport.New(contentWidth, contentHeight)
		m.ready = true
	} else {
		m.viewport.Width = contentWidth
		m.viewport.Height = contentHeight
	}
	m.input.Width = contentWidth - 5
	m.rebuildRenderer(contentWidth)
}

// uploadCmd runs the multipart upload off the event loop.
func (m *Model) uploadCmd(paths []string) tea.Cmd {
	return func() tea.Msg {
		files, err := m.controller.Upload(context.Background(), paths)
		if err != nil {
			// The controller already raised an error notice.
			return StreamDoneMsg{}
		}
		m.log.WithField("count", len(files)).Info("files uploaded")
		return StreamDoneMsg{}
	}
}

// clearMemoryCmd runs the backend clear off the event loop.
func (m *Model) clearMemoryCmd() tea.Cmd {
	return func() tea.Msg {
		m.controller.ClearMemory(context.Background())
		return StreamDoneMsg{}
	}
}
