// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session implements the conversation session controller: the
// state machine that turns a submitted prompt into a finalized assistant
// message, coordinating streaming chunk application, session-id binding,
// cancellation, chat metadata, and persistence triggers.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/chatline/internal/backend"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/store"
)

// =============================================================================
// STATES AND ERRORS
// =============================================================================

// State is the phase of the in-flight exchange. At most one exchange runs
// at a time.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateStreaming
	StateFinalizing
	StateAborting
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateStreaming:
		return "streaming"
	case StateFinalizing:
		return "finalizing"
	case StateAborting:
		return "aborting"
	default:
		return "unknown"
	}
}

var (
	// ErrEmptySubmit rejects whitespace-only input. No state change, no
	// side effect.
	ErrEmptySubmit = errors.New("empty submission")

	// ErrBusy rejects a submit while an exchange is already in flight.
	ErrBusy = errors.New("an exchange is already in flight")

	// ErrNoUserMessage means regenerate found nothing to resubmit.
	ErrNoUserMessage = errors.New("no user message to regenerate")

	// ErrNoActiveChat means the intent needs a created chat and the
	// session is still in the transient pre-first-message state.
	ErrNoActiveChat = errors.New("no active chat")
)

const (
	// AbortedText is the placeholder content after a user cancellation.
	// Deliberately neutral: a stop is not a failure.
	AbortedText = "Generation stopped."

	// ErrorPrefix prefixes inline error content on a failed exchange.
	ErrorPrefix = "Error: "

	// searchMaxResults caps the /search pre-step result count.
	searchMaxResults = 5
)

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is the transport surface the controller drives. *backend.Client
// satisfies it; tests substitute a fake.
type Backend interface {
	StreamPrompt(ctx context.Context, message string, opts backend.StreamOptions) (*backend.StreamResult, error)
	SendPrompt(ctx context.Context, message string, opts backend.SendOptions) (*backend.ChatReply, error)
	ClearMemory(ctx context.Context, sessionID, apiKey string) (*backend.ChatReply, error)
	SearchWeb(ctx context.Context, query string, maxResults int) []backend.SearchResult
	UploadFiles(ctx context.Context, paths []string) ([]backend.StoredFile, error)
}

// Notice is a transient, dismissible user-visible notification.
type Notice struct {
	Text    string
	IsError bool
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller owns the conversation registry, the active chat's message
// list, and the exchange state machine. The UI reads snapshots and raises
// intents; streaming chunks arrive from a transport goroutine. A single
// mutex keeps both sides consistent.
type Controller struct {
	mu sync.Mutex

	client Backend
	store  *store.Store
	log    *logrus.Logger

	chats    []*model.Conversation
	activeID string
	messages []*model.Message
	// sessionID mirrors the active chat's bound backend session. Empty
	// means unbound. Rebound on every chat switch so one chat's session
	// never leaks into another.
	sessionID string

	prefs        store.Prefs
	systemPrompt string

	state     State
	cancelMgr *cancelManager
	notify    func(Notice)
}

// New creates a controller, loading persisted chats, the active chat's
// messages, and preferences. Load failures degrade to a fresh state
// rather than failing startup.
func New(client Backend, st *store.Store, log *logrus.Logger) *Controller {
	c := &Controller{
		client:    client,
		store:     st,
		log:       log,
		activeID:  model.CurrentChatID,
		cancelMgr: newCancelManager(),
		notify:    func(Notice) {},
	}

	chats, err := st.ListChats()
	if err != nil {
		log.WithError(err).Warn("failed to load chat list")
	}
	c.chats = chats

	prefs, err := st.LoadPrefs()
	if err != nil {
		log.WithError(err).Warn("failed to load preferences")
		prefs = store.DefaultPrefs()
	}
	c.prefs = prefs

	activeID, err := st.ActiveChatID()
	if err != nil {
		log.WithError(err).Warn("failed to load active chat id")
	}
	if chat := c.findChat(activeID); chat != nil {
		c.activeID = chat.ID
		c.sessionID = chat.SessionID
		msgs, err := st.LoadMessages(chat.ID)
		if err != nil {
			log.WithError(err).Warn("failed to load messages")
		}
		c.messages = msgs
	}

	return c
}

// SetNotifier installs the sink for transient notifications. Called once
// during UI wiring, before any exchange starts.
func (c *Controller) SetNotifier(fn func(Notice)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn != nil {
		c.notify = fn
	}
}

// SetSystemPrompt sets the system prompt sent with every exchange.
func (c *Controller) SetSystemPrompt(prompt string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systemPrompt = prompt
}

// =============================================================================
// SNAPSHOT ACCESSORS
// =============================================================================

// State returns the current exchange phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ActiveChatID returns the active chat id; model.CurrentChatID while no
// chat has been created yet.
func (c *Controller) ActiveChatID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeID
}

// ActiveChat returns a copy of the active chat's metadata, or nil in the
// transient pre-first-message state.
func (c *Controller) ActiveChat() *model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if chat := c.findChat(c.activeID); chat != nil {
		return chat.Clone()
	}
	return nil
}

// SessionID returns the in-memory backend session binding for the active
// chat, "" when unbound.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Chats returns a copy of the chat list, most recently active first.
func (c *Controller) Chats() []*model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*model.Conversation, len(c.chats))
	for i, chat := range c.chats {
		out[i] = chat.Clone()
	}
	return out
}

// Messages returns a copy of the active chat's messages. Copies are
// required: the streaming goroutine mutates the placeholder while the UI
// renders.
func (c *Controller) Messages() []*model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return model.CloneMessages(c.messages)
}

// Prefs returns the current preferences.
func (c *Controller) Prefs() store.Prefs {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefs
}

// =============================================================================
// PREFERENCES
// =============================================================================

// SetAPIKey updates and persists the backend API key.
func (c *Controller) SetAPIKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs.APIKey = key
	c.persist(c.store.SetAPIKey(key))
}

// SetModel updates and persists the selected model.
func (c *Controller) SetModel(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs.Model = name
	c.persist(c.store.SetModel(name))
}

// ToggleShowThinking flips and persists the "show thinking" flag,
// returning the new value.
func (c *Controller) ToggleShowThinking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs.ShowThinking = !c.prefs.ShowThinking
	c.persist(c.store.SetShowThinking(c.prefs.ShowThinking))
	return c.prefs.ShowThinking
}

// ToggleSidebar flips and persists the sidebar visibility flag, returning
// the new value.
func (c *Controller) ToggleSidebar() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prefs.SidebarOpen = !c.prefs.SidebarOpen
	c.persist(c.store.SetSidebarOpen(c.prefs.SidebarOpen))
	return c.prefs.SidebarOpen
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

// findChat returns the chat with the given id, nil when absent or when id
// is the transient placeholder.
func (c *Controller) findChat(id string) *model.Conversation {
	if id == "" || id == model.CurrentChatID {
		return nil
	}
	for _, chat := range c.chats {
		if chat.ID == id {
			return chat
		}
	}
	return nil
}

// persist logs and swallows a storage error. Persistence is best-effort
// everywhere: a write failure never blocks in-memory operation.
func (c *Controller) persist(err error) {
	if err != nil {
		c.log.WithError(err).Warn("persistence write skipped")
	}
}

// persistMessages rewrites the stored message list for a chat. The
// transient placeholder chat is never persisted.
func (c *Controller) persistMessages(chatID string, msgs []*model.Message) {
	if chatID == "" || chatID == model.CurrentChatID {
		return
	}
	c.persist(c.store.SaveMessages(chatID, msgs))
}
