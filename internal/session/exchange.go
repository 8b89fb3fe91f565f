// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"

	"github.com/jeranaias/chatline/internal/backend"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/search"
	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// EXCHANGE
// =============================================================================

// Exchange is one in-flight prompt/reply cycle. Submit performs the
// synchronous part on the UI loop; Run performs the network part on a
// separate goroutine and drives the state machine to completion.
type Exchange struct {
	c *Controller

	ctx context.Context

	// transmitText is what goes to the model. For a /search command it
	// starts as the bare query and is augmented with results inside Run;
	// the displayed user message diverges deliberately.
	transmitText string
	searchQuery  string
	hasSearch    bool

	chatID      string
	placeholder *model.Message
	opts        backend.StreamOptions

	// messages is the chat's message list as of submit, ending in the
	// placeholder. Chunk and finalize persists go through this snapshot
	// once the user switches away, so a finished exchange can never write
	// another chat's list under its own key.
	messages []*model.Message
}

// =============================================================================
// SUBMIT TRANSITION
// =============================================================================

// Submit validates raw input, applies the command grammar, appends the
// user message and the streaming placeholder, and creates or updates the
// chat metadata. Both messages land before any network call starts. The
// returned Exchange must be driven by calling Run from another goroutine.
func (c *Controller) Submit(raw string) (*Exchange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if util.IsBlank(raw) {
		return nil, ErrEmptySubmit
	}
	// Defensive guard: the input box is disabled while streaming, but a
	// concurrent submit would interleave placeholder updates.
	if c.state != StateIdle {
		return nil, ErrBusy
	}

	displayText := raw
	transmitText := raw
	query, hasSearch := search.ParseCommand(raw)
	if hasSearch {
		displayText = search.DisplayText(query)
		transmitText = query
	}

	userMsg := model.NewUserMessage(displayText)
	placeholder := model.NewBotPlaceholder()
	c.messages = append(c.messages, userMsg, placeholder)

	chat := c.findChat(c.activeID)
	if chat == nil {
		chat = model.NewConversation()
		c.chats = append([]*model.Conversation{chat}, c.chats...)
		c.activeID = chat.ID
		c.sessionID = ""
		c.persist(c.store.SetActiveChatID(chat.ID))
	}
	chat.DeriveTitle(displayText)
	chat.DerivePreview(displayText)
	chat.Touch()
	c.persist(c.store.SaveChat(chat))
	c.persistMessages(chat.ID, c.messages)

	c.state = StateSubmitting

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelMgr.set(cancel)

	c.log.WithField("chat", chat.ID).Debug("exchange submitted")

	return &Exchange{
		c:            c,
		ctx:          ctx,
		transmitText: transmitText,
		searchQuery:  query,
		hasSearch:    hasSearch,
		chatID:       chat.ID,
		placeholder:  placeholder,
		messages:     c.messages,
		opts: backend.StreamOptions{
			SessionID:    c.sessionID,
			SystemPrompt: c.systemPrompt,
			APIKey:       c.prefs.APIKey,
			Model:        c.prefs.Model,
		},
	}, nil
}

// =============================================================================
// STREAMING AND FINALIZE TRANSITIONS
// =============================================================================

// Run performs the search pre-step (when present) and the streaming call,
// then finalizes the exchange. onChunk is invoked after each chunk has
// been applied, so the caller always renders a prefix of the stream.
func (e *Exchange) Run(onChunk func(chunk string)) {
	text := e.transmitText
	if e.hasSearch {
		// Best-effort: failure or zero hits degrade to the bare query.
		results := e.c.client.SearchWeb(e.ctx, e.searchQuery, searchMaxResults)
		text = search.BuildPrompt(e.searchQuery, results)
	}

	e.c.setState(StateStreaming)

	e.opts.OnChunk = func(chunk string) {
		e.applyChunk(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	result, err := e.c.client.StreamPrompt(e.ctx, text, e.opts)
	switch {
	case err == nil:
		e.finalizeSuccess(result)
	case backend.IsAborted(err):
		e.finalizeAborted()
	default:
		e.finalizeError(err)
	}
}

// persistExchange rewrites the exchange's chat's persisted message list.
// While the chat is still active the controller's live list wins (it may
// have grown past the snapshot); after a switch or clear, the snapshot is
// the only list that still belongs to this chat. Callers hold the lock.
func (e *Exchange) persistExchange() {
	c := e.c
	msgs := e.messages
	if c.activeID == e.chatID {
		msgs = c.messages
	}
	c.persistMessages(e.chatID, msgs)
}

// applyChunk appends one streamed chunk to the placeholder, in arrival
// order, and rewrites the persisted copy for real chats.
func (e *Exchange) applyChunk(chunk string) {
	c := e.c
	c.mu.Lock()
	defer c.mu.Unlock()

	e.placeholder.AppendChunk(chunk)
	e.persistExchange()
}

// finalizeSuccess binds the session id when the chat had none, marks the
// placeholder final, and recomputes the chat metadata from the full text.
func (e *Exchange) finalizeSuccess(result *backend.StreamResult) {
	c := e.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFinalizing

	chat := c.findChat(e.chatID)
	if chat != nil && !chat.HasSession() && result.SessionID != "" {
		chat.SessionID = result.SessionID
		if c.activeID == chat.ID {
			c.sessionID = result.SessionID
		}
		c.persist(c.store.SetLastSessionID(result.SessionID))
	}

	e.placeholder.Finalize()

	if chat != nil {
		chat.DerivePreview(result.FullText)
		chat.Touch()
		c.persist(c.store.SaveChat(chat))
	}
	e.persistExchange()

	c.log.WithField("chat", e.chatID).Debug("exchange finalized")
	e.release()
}

// finalizeAborted resolves a user cancellation: neutral placeholder text,
// no error surfaced.
func (e *Exchange) finalizeAborted() {
	c := e.c
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFinalizing

	e.placeholder.FinalizeWith(AbortedText)
	if chat := c.findChat(e.chatID); chat != nil {
		chat.Touch()
		c.persist(c.store.SaveChat(chat))
	}
	e.persistExchange()

	c.log.WithField("chat", e.chatID).Debug("exchange aborted")
	e.release()
}

// finalizeError resolves a genuine failure: inline error content plus a
// transient notification. Never retried; the chat stays usable.
func (e *Exchange) finalizeError(err error) {
	c := e.c
	c.mu.Lock()
	c.state = StateFinalizing

	e.placeholder.FinalizeWith(ErrorPrefix + err.Error())
	if chat := c.findChat(e.chatID); chat != nil {
		chat.Touch()
		c.persist(c.store.SaveChat(chat))
	}
	e.persistExchange()

	c.log.WithError(err).WithField("chat", e.chatID).Warn("exchange failed")
	notify := c.notify
	e.release()
	c.mu.Unlock()

	// Outside the lock: the sink may call back into the controller.
	notify(Notice{Text: err.Error(), IsError: true})
}

// release returns the machine to idle and drops the cancel handle.
// Callers hold the controller lock.
func (e *Exchange) release() {
	e.c.state = StateIdle
	e.c.cancelMgr.clear()
}

// setState transitions the machine; used for Submitting -> Streaming once
// the pre-steps are done.
func (c *Controller) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// An abort can land between pre-step and stream start.
	if c.state == StateAborting && s == StateStreaming {
		return
	}
	c.state = s
}

// =============================================================================
// STOP AND REGENERATE INTENTS
// =============================================================================

// Stop cancels the in-flight exchange. Valid only while streaming (or
// still in the pre-step); a stop with nothing in flight is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	switch c.state {
	case StateSubmitting, StateStreaming:
		c.state = StateAborting
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.cancelMgr.cancel()
}

// Regenerate resubmits the most recent user message's content as a fresh
// exchange, appending a new message pair rather than mutating history.
// Valid only while idle.
func (c *Controller) Regenerate() (*Exchange, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	var text string
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].Sender == model.SenderUser {
			text = c.messages[i].Content
			break
		}
	}
	c.mu.Unlock()

	if text == "" {
		return nil, ErrNoUserMessage
	}
	return c.Submit(text)
}
