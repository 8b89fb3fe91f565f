// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"strings"
	"time"

	"github.com/jeranaias/chatline/internal/backend"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// CHAT SWITCHING INTENTS
// =============================================================================

// SelectChat makes the given chat active: loads its persisted messages and
// rebinds the in-memory session id to its stored value, or clears it when
// none. Any in-flight stream is cancelled first so it can never write into
// a chat the user has switched away from.
func (c *Controller) SelectChat(id string) error {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	chat := c.findChat(id)
	if chat == nil {
		return ErrNoActiveChat
	}

	msgs, err := c.store.LoadMessages(chat.ID)
	if err != nil {
		c.log.WithError(err).Warn("failed to load messages")
		msgs = nil
	}

	c.activeID = chat.ID
	c.messages = msgs
	c.sessionID = chat.SessionID
	c.persist(c.store.SetActiveChatID(chat.ID))
	return nil
}

// NewChat returns to the transient pre-first-message state: empty message
// list, unbound session. The chat record itself is created on first
// submit. Cancels any in-flight stream.
func (c *Controller) NewChat() {
	c.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.activeID = model.CurrentChatID
	c.messages = nil
	c.sessionID = ""
	c.persist(c.store.SetActiveChatID(""))
}

// =============================================================================
// CLEAR MEMORY INTENT
// =============================================================================

// ClearMemory drops server-side conversational memory for the bound
// session, then unconditionally empties the active chat and unbinds its
// session id locally. The backend call is best-effort: its failure is
// notified, never blocks the local clear, and calling twice in a row is
// observably the same as calling once. Cancels any in-flight stream so a
// late reply cannot repopulate a chat the user just emptied.
func (c *Controller) ClearMemory(ctx context.Context) {
	c.Stop()

	c.mu.Lock()
	sessionID := c.sessionID
	apiKey := c.prefs.APIKey
	c.mu.Unlock()

	if sessionID != "" {
		if _, err := c.client.ClearMemory(ctx, sessionID, apiKey); err != nil {
			c.log.WithError(err).Warn("backend memory clear failed")
			c.notifyUser(Notice{Text: "Could not clear backend memory: " + err.Error(), IsError: true})
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
	c.sessionID = ""
	if chat := c.findChat(c.activeID); chat != nil {
		chat.SessionID = ""
		chat.Preview = ""
		chat.Touch()
		c.persist(c.store.SaveChat(chat))
		c.persist(c.store.ClearMessages(chat.ID))
	}
}

// =============================================================================
// DUPLICATE AND REUSE INTENTS
// =============================================================================

// Duplicate deep-copies the active chat into a new one with a fresh id and
// no session binding, leaving the source untouched, and makes the copy
// active.
func (c *Controller) Duplicate() (*model.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.findChat(c.activeID)
	if src == nil {
		return nil, ErrNoActiveChat
	}

	dup := model.NewConversation()
	dup.Title = src.Title
	dup.Preview = src.Preview
	msgs := model.CloneMessages(c.messages)

	c.chats = append([]*model.Conversation{dup}, c.chats...)
	c.activeID = dup.ID
	c.messages = msgs
	c.sessionID = ""

	c.persist(c.store.SaveChat(dup))
	c.persistMessages(dup.ID, msgs)
	c.persist(c.store.SetActiveChatID(dup.ID))
	return dup.Clone(), nil
}

// Reuse extracts the first user message's text, starts a new chat, and
// returns the text so the UI can prefill the input without submitting.
func (c *Controller) Reuse() (string, error) {
	c.mu.Lock()
	var seed string
	for _, m := range c.messages {
		if m.Sender == model.SenderUser {
			seed = m.Content
			break
		}
	}
	c.mu.Unlock()

	if seed == "" {
		return "", ErrNoUserMessage
	}
	c.NewChat()
	return seed, nil
}

// =============================================================================
// UPLOAD INTENT
// =============================================================================

// Upload sends the given files to the backend and echoes the stored file
// list into the conversation as a local notice message. Upload failures
// are notified, not fatal.
func (c *Controller) Upload(ctx context.Context, paths []string) ([]backend.StoredFile, error) {
	files, err := c.client.UploadFiles(ctx, paths)
	if err != nil {
		c.notifyUser(Notice{Text: "Upload failed: " + err.Error(), IsError: true})
		return nil, err
	}

	var b strings.Builder
	b.WriteString("Uploaded ")
	b.WriteString(util.Pluralize(len(files), "file"))
	b.WriteString(":\n")
	for _, f := range files {
		b.WriteString("- " + f.Name + " (" + f.URL + ")\n")
	}

	now := time.Now()
	notice := &model.Message{
		ID:        model.NewMessageID(now),
		Sender:    model.SenderBot,
		Content:   strings.TrimRight(b.String(), "\n"),
		Timestamp: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, notice)
	c.persistMessages(c.activeID, c.messages)
	return files, nil
}

// =============================================================================
// EXPORT INTENT
// =============================================================================

// Export writes the active conversation to path as Markdown, atomically.
func (c *Controller) Export(path string) error {
	c.mu.Lock()
	chat := c.findChat(c.activeID)
	title := model.DefaultTitle
	if chat != nil {
		title = chat.Title
	}
	msgs := model.CloneMessages(c.messages)
	c.mu.Unlock()

	var b strings.Builder
	b.WriteString("# " + title + "\n\n")
	b.WriteString("Exported " + time.Now().Format("2006-01-02 15:04") + "\n\n")
	for _, m := range msgs {
		b.WriteString("## " + m.Sender.DisplayName() + "\n\n")
		b.WriteString(m.Content + "\n\n")
	}

	return util.AtomicWriteFile(path, []byte(b.String()), 0644)
}

// notifyUser delivers a notice through the installed sink.
func (c *Controller) notifyUser(n Notice) {
	c.mu.Lock()
	notify := c.notify
	c.mu.Unlock()
	notify(n)
}
