// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/chatline/internal/backend"
	"github.com/jeranaias/chatline/internal/model"
	"github.com/jeranaias/chatline/internal/store"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

// fakeBackend scripts transport behavior and records what the controller
// sent.
type fakeBackend struct {
	mu sync.Mutex

	streamChunks    []string
	streamSessionID string
	streamErr       error
	// blockStream, when non-nil, holds the stream open (delivering no
	// chunks) until the context is cancelled.
	blockStream chan struct{}

	searchResults []backend.SearchResult

	clearErr error

	lastStreamText string
	lastStreamOpts backend.StreamOptions
	searchQueries  []string
	clearSessions  []string
}

func (f *fakeBackend) StreamPrompt(ctx context.Context, message string, opts backend.StreamOptions) (*backend.StreamResult, error) {
	f.mu.Lock()
	f.lastStreamText = message
	f.lastStreamOpts = opts
	chunks := f.streamChunks
	sessionID := f.streamSessionID
	streamErr := f.streamErr
	block := f.blockStream
	f.mu.Unlock()

	if block != nil {
		select {
		case <-ctx.Done():
			return nil, backend.ErrAborted
		case <-block:
		}
	}
	if streamErr != nil {
		return nil, streamErr
	}

	var full strings.Builder
	for _, chunk := range chunks {
		select {
		case <-ctx.Done():
			return nil, backend.ErrAborted
		default:
		}
		full.WriteString(chunk)
		if opts.OnChunk != nil {
			opts.OnChunk(chunk)
		}
	}

	if sessionID == "" {
		sessionID = opts.SessionID
	}
	return &backend.StreamResult{SessionID: sessionID, FullText: full.String()}, nil
}

func (f *fakeBackend) SendPrompt(ctx context.Context, message string, opts backend.SendOptions) (*backend.ChatReply, error) {
	return &backend.ChatReply{Reply: "ok", SessionID: opts.SessionID}, nil
}

func (f *fakeBackend) ClearMemory(ctx context.Context, sessionID, apiKey string) (*backend.ChatReply, error) {
	f.mu.Lock()
	f.clearSessions = append(f.clearSessions, sessionID)
	err := f.clearErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &backend.ChatReply{SessionID: sessionID}, nil
}

func (f *fakeBackend) SearchWeb(ctx context.Context, query string, maxResults int) []backend.SearchResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchQueries = append(f.searchQueries, query)
	return f.searchResults
}

func (f *fakeBackend) UploadFiles(ctx context.Context, paths []string) ([]backend.StoredFile, error) {
	files := make([]backend.StoredFile, len(paths))
	for i, p := range paths {
		files[i] = backend.StoredFile{Name: filepath.Base(p), URL: "/uploads/" + filepath.Base(p)}
	}
	return files, nil
}

// =============================================================================
// TEST SETUP
// =============================================================================

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestController(t *testing.T, fb *fakeBackend) (*Controller, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "chatline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(fb, st, testLogger()), st
}

// submitAndRun drives one full exchange synchronously.
func submitAndRun(t *testing.T, c *Controller, text string) {
	t.Helper()
	ex, err := c.Submit(text)
	require.NoError(t, err)
	ex.Run(nil)
}

// =============================================================================
// SUBMIT TESTS
// =============================================================================

func TestSubmitAppendsMessagePairBeforeNetwork(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"hi"}}
	c, _ := newTestController(t, fb)

	ex, err := c.Submit("hello there")
	require.NoError(t, err)

	// Both messages are present before Run touches the network.
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, model.SenderUser, msgs[0].Sender)
	assert.Equal(t, "hello there", msgs[0].Content)
	assert.Equal(t, model.SenderBot, msgs[1].Sender)
	assert.Equal(t, "", msgs[1].Content)
	assert.True(t, msgs[1].Streaming)
	assert.Equal(t, StateSubmitting, c.State())

	ex.Run(nil)
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmitRejectsBlankInput(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})

	for _, input := range []string{"", "   ", "\n\t "} {
		_, err := c.Submit(input)
		assert.ErrorIs(t, err, ErrEmptySubmit)
	}
	assert.Empty(t, c.Messages())
	assert.Equal(t, StateIdle, c.State())
}

func TestSubmitRejectsConcurrentExchange(t *testing.T) {
	fb := &fakeBackend{blockStream: make(chan struct{})}
	c, _ := newTestController(t, fb)

	ex, err := c.Submit("first")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		ex.Run(nil)
		close(done)
	}()

	_, err = c.Submit("second")
	assert.ErrorIs(t, err, ErrBusy)

	c.Stop()
	<-done
}

func TestSubmitCreatesChatAndDerivesTitle(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"reply"}}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "Explain binary search\nin detail")

	chat := c.ActiveChat()
	require.NotNil(t, chat)
	assert.Equal(t, "Explain binary search", chat.Title)

	// A later message never overwrites a derived title.
	submitAndRun(t, c, "Another question entirely")
	assert.Equal(t, "Explain binary search", c.ActiveChat().Title)
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestStreamedContentIsChunkConcatenation(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"The answer", " is", " 42."}}
	c, _ := newTestController(t, fb)

	var delivered []string
	ex, err := c.Submit("question")
	require.NoError(t, err)
	ex.Run(func(chunk string) { delivered = append(delivered, chunk) })

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "The answer is 42.", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)
	assert.Equal(t, msgs[1].Content, strings.Join(delivered, ""))
}

func TestSessionIDBoundAtFinalize(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"hi"}, streamSessionID: "sess-1"}
	c, _ := newTestController(t, fb)

	assert.Equal(t, "", c.SessionID())
	submitAndRun(t, c, "hello")

	assert.Equal(t, "sess-1", c.SessionID())
	assert.Equal(t, "sess-1", c.ActiveChat().SessionID)

	// The bound id is reused on the next exchange.
	submitAndRun(t, c, "again")
	assert.Equal(t, "sess-1", fb.lastStreamOpts.SessionID)
}

func TestAbortBeforeFirstChunk(t *testing.T) {
	fb := &fakeBackend{blockStream: make(chan struct{})}
	c, _ := newTestController(t, fb)

	ex, err := c.Submit("question")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		ex.Run(nil)
		close(done)
	}()

	// Wait for the machine to leave Submitting before stopping.
	require.Eventually(t, func() bool { return c.State() == StateStreaming },
		2*time.Second, time.Millisecond)
	c.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not finish after stop")
	}

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Generation stopped.", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)
	assert.Equal(t, StateIdle, c.State())
}

func TestStopIsNoOpWhileIdle(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})
	c.Stop()
	assert.Equal(t, StateIdle, c.State())
}

func TestStreamFailureSetsInlineErrorAndNotifies(t *testing.T) {
	fb := &fakeBackend{streamErr: &backend.ClientError{Kind: backend.KindRequest, Message: "upstream exploded"}}
	c, _ := newTestController(t, fb)

	var notices []Notice
	c.SetNotifier(func(n Notice) { notices = append(notices, n) })

	submitAndRun(t, c, "question")

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Error: upstream exploded", msgs[1].Content)
	assert.False(t, msgs[1].Streaming)

	require.Len(t, notices, 1)
	assert.True(t, notices[0].IsError)
	assert.Contains(t, notices[0].Text, "upstream exploded")

	// The chat is not poisoned: the next submit works.
	fb.streamErr = nil
	fb.streamChunks = []string{"fine now"}
	submitAndRun(t, c, "retry")
	msgs = c.Messages()
	assert.Equal(t, "fine now", msgs[3].Content)
}

// =============================================================================
// SEARCH COMMAND TESTS
// =============================================================================

func TestSearchCommandDivergesDisplayAndTransmit(t *testing.T) {
	fb := &fakeBackend{
		streamChunks: []string{"answer"},
		searchResults: []backend.SearchResult{
			{Title: "Rust", URL: "https://rust-lang.org", Content: "systems language"},
		},
	}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "/search rustlang")

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Search: rustlang", msgs[0].Content)

	assert.Equal(t, []string{"rustlang"}, fb.searchQueries)
	assert.Contains(t, fb.lastStreamText, "[1] Rust")
	assert.Contains(t, fb.lastStreamText, "https://rust-lang.org")
	assert.True(t, strings.HasSuffix(fb.lastStreamText, "Question: rustlang"))
}

func TestSearchCommandFallsBackToBareQuery(t *testing.T) {
	// No results (search down or zero hits): send the bare query.
	fb := &fakeBackend{streamChunks: []string{"answer"}}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "/search rustlang")

	assert.Equal(t, "rustlang", fb.lastStreamText)
	assert.Equal(t, "Search: rustlang", c.Messages()[0].Content)
}

// =============================================================================
// CHAT MANAGEMENT INTENT TESTS
// =============================================================================

func TestSelectChatNeverLeaksSessionID(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"hi"}, streamSessionID: "sess-A"}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "first chat")
	chatA := c.ActiveChatID()
	require.Equal(t, "sess-A", c.SessionID())

	// Second chat binds a different session.
	c.NewChat()
	assert.Equal(t, "", c.SessionID())
	fb.mu.Lock()
	fb.streamSessionID = "sess-B"
	fb.mu.Unlock()
	submitAndRun(t, c, "second chat")
	chatB := c.ActiveChatID()
	require.Equal(t, "sess-B", c.SessionID())

	require.NoError(t, c.SelectChat(chatA))
	assert.Equal(t, "sess-A", c.SessionID())
	require.NoError(t, c.SelectChat(chatB))
	assert.Equal(t, "sess-B", c.SessionID())
}

func TestSelectChatLoadsPersistedMessages(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"answer one"}}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "question one")
	chatA := c.ActiveChatID()

	c.NewChat()
	assert.Empty(t, c.Messages())

	require.NoError(t, c.SelectChat(chatA))
	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "question one", msgs[0].Content)
	assert.Equal(t, "answer one", msgs[1].Content)
}

func TestSelectChatUnknownID(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})
	assert.ErrorIs(t, c.SelectChat("chat_missing"), ErrNoActiveChat)
}

func TestNewChatDuringStreamKeepsChatHistory(t *testing.T) {
	fb := &fakeBackend{blockStream: make(chan struct{})}
	c, st := newTestController(t, fb)

	ex, err := c.Submit("slow question")
	require.NoError(t, err)
	chatA := c.ActiveChatID()

	done := make(chan struct{})
	go func() {
		ex.Run(nil)
		close(done)
	}()
	require.Eventually(t, func() bool { return c.State() == StateStreaming },
		2*time.Second, time.Millisecond)

	c.NewChat()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not finish after switch")
	}

	// The abandoned exchange finalized into its own chat, not the new one.
	msgs, err := st.LoadMessages(chatA)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "slow question", msgs[0].Content)
	assert.Equal(t, AbortedText, msgs[1].Content)

	assert.Empty(t, c.Messages())
	assert.Equal(t, model.CurrentChatID, c.ActiveChatID())
	assert.Equal(t, StateIdle, c.State())
}

func TestSelectChatDuringStreamKeepsBothChats(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"answer one"}}
	c, st := newTestController(t, fb)

	submitAndRun(t, c, "question one")
	chatA := c.ActiveChatID()

	c.NewChat()
	fb.mu.Lock()
	fb.blockStream = make(chan struct{})
	fb.mu.Unlock()

	ex, err := c.Submit("question two")
	require.NoError(t, err)
	chatB := c.ActiveChatID()

	done := make(chan struct{})
	go func() {
		ex.Run(nil)
		close(done)
	}()
	require.Eventually(t, func() bool { return c.State() == StateStreaming },
		2*time.Second, time.Millisecond)

	require.NoError(t, c.SelectChat(chatA))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not finish after switch")
	}

	msgsB, err := st.LoadMessages(chatB)
	require.NoError(t, err)
	require.Len(t, msgsB, 2)
	assert.Equal(t, "question two", msgsB[0].Content)
	assert.Equal(t, AbortedText, msgsB[1].Content)

	msgsA, err := st.LoadMessages(chatA)
	require.NoError(t, err)
	require.Len(t, msgsA, 2)
	assert.Equal(t, "answer one", msgsA[1].Content)

	msgs := c.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "question one", msgs[0].Content)
}

func TestClearMemoryDuringStreamLeavesChatEmpty(t *testing.T) {
	fb := &fakeBackend{blockStream: make(chan struct{})}
	c, st := newTestController(t, fb)

	ex, err := c.Submit("slow question")
	require.NoError(t, err)
	chatID := c.ActiveChatID()

	done := make(chan struct{})
	go func() {
		ex.Run(nil)
		close(done)
	}()
	require.Eventually(t, func() bool { return c.State() == StateStreaming },
		2*time.Second, time.Millisecond)

	c.ClearMemory(context.Background())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("exchange did not finish after clear")
	}

	msgs, err := st.LoadMessages(chatID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, c.Messages())
	assert.Equal(t, StateIdle, c.State())
}

func TestClearMemoryIsIdempotent(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"hi"}, streamSessionID: "sess-1"}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "hello")
	require.Equal(t, "sess-1", c.SessionID())

	c.ClearMemory(context.Background())
	assert.Empty(t, c.Messages())
	assert.Equal(t, "", c.SessionID())
	assert.Equal(t, "", c.ActiveChat().SessionID)

	c.ClearMemory(context.Background())
	assert.Empty(t, c.Messages())
	assert.Equal(t, "", c.SessionID())

	// The backend was only asked once: the second call had no session.
	assert.Equal(t, []string{"sess-1"}, fb.clearSessions)
}

func TestClearMemoryBackendFailureStillClearsLocally(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"hi"}, streamSessionID: "sess-1"}
	c, _ := newTestController(t, fb)

	var notices []Notice
	c.SetNotifier(func(n Notice) { notices = append(notices, n) })

	submitAndRun(t, c, "hello")
	fb.clearErr = errors.New("backend down")

	c.ClearMemory(context.Background())

	assert.Empty(t, c.Messages())
	assert.Equal(t, "", c.SessionID())
	require.Len(t, notices, 1)
	assert.True(t, notices[0].IsError)
}

func TestDuplicateChat(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"the reply"}, streamSessionID: "sess-1"}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "original question")
	srcID := c.ActiveChatID()
	srcMsgs := c.Messages()

	dup, err := c.Duplicate()
	require.NoError(t, err)

	assert.NotEqual(t, srcID, dup.ID)
	assert.Equal(t, "", dup.SessionID)
	assert.Equal(t, dup.ID, c.ActiveChatID())
	assert.Equal(t, "", c.SessionID())

	dupMsgs := c.Messages()
	require.Len(t, dupMsgs, len(srcMsgs))
	for i := range srcMsgs {
		assert.Equal(t, srcMsgs[i].Content, dupMsgs[i].Content)
		assert.Equal(t, srcMsgs[i].Sender, dupMsgs[i].Sender)
	}

	// The source is unmodified, session binding included.
	require.NoError(t, c.SelectChat(srcID))
	assert.Equal(t, "sess-1", c.SessionID())
	origMsgs := c.Messages()
	require.Len(t, origMsgs, 2)
	assert.Equal(t, "original question", origMsgs[0].Content)
}

func TestDuplicateNeedsActiveChat(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})
	_, err := c.Duplicate()
	assert.ErrorIs(t, err, ErrNoActiveChat)
}

func TestReusePrefillsFirstUserText(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"reply"}}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "seed question")
	submitAndRun(t, c, "followup")

	seed, err := c.Reuse()
	require.NoError(t, err)
	assert.Equal(t, "seed question", seed)

	// Fresh transient chat, nothing submitted yet.
	assert.Equal(t, model.CurrentChatID, c.ActiveChatID())
	assert.Empty(t, c.Messages())
}

func TestReuseWithoutMessages(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})
	_, err := c.Reuse()
	assert.ErrorIs(t, err, ErrNoUserMessage)
}

func TestRegenerateResubmitsLastUserMessage(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"second reply"}}
	c, _ := newTestController(t, fb)

	submitAndRun(t, c, "same question")

	ex, err := c.Regenerate()
	require.NoError(t, err)
	ex.Run(nil)

	// History is appended to, never rewritten.
	msgs := c.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "same question", msgs[2].Content)
	assert.Equal(t, "second reply", msgs[3].Content)
}

func TestRegenerateWithEmptyChat(t *testing.T) {
	c, _ := newTestController(t, &fakeBackend{})
	_, err := c.Regenerate()
	assert.ErrorIs(t, err, ErrNoUserMessage)
}

// =============================================================================
// PERSISTENCE TESTS
// =============================================================================

func TestStateSurvivesRestart(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"persisted reply"}, streamSessionID: "sess-1"}
	st, err := store.Open(filepath.Join(t.TempDir(), "chatline.db"))
	require.NoError(t, err)
	defer st.Close()

	c := New(fb, st, testLogger())
	submitAndRun(t, c, "remember me")
	chatID := c.ActiveChatID()

	// Same store, fresh controller: the restart path.
	c2 := New(fb, st, testLogger())
	assert.Equal(t, chatID, c2.ActiveChatID())
	assert.Equal(t, "sess-1", c2.SessionID())

	msgs := c2.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "remember me", msgs[0].Content)
	assert.Equal(t, "persisted reply", msgs[1].Content)

	chats := c2.Chats()
	require.Len(t, chats, 1)
	assert.Equal(t, "persisted reply", chats[0].Preview)
}

func TestUploadEchoesNotice(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"hi"}}
	c, _ := newTestController(t, fb)
	submitAndRun(t, c, "hello")

	files, err := c.Upload(context.Background(), []string{"/tmp/a.txt", "/tmp/b.txt"})
	require.NoError(t, err)
	require.Len(t, files, 2)

	msgs := c.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.SenderBot, last.Sender)
	assert.Contains(t, last.Content, "2 files")
	assert.Contains(t, last.Content, "a.txt")
	assert.Contains(t, last.Content, "b.txt")
}

func TestExportWritesMarkdown(t *testing.T) {
	fb := &fakeBackend{streamChunks: []string{"the answer"}}
	c, _ := newTestController(t, fb)
	submitAndRun(t, c, "Explain binary search")

	path := filepath.Join(t.TempDir(), "export.md")
	require.NoError(t, c.Export(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	data := string(raw)
	assert.Contains(t, data, "# Explain binary search")
	assert.Contains(t, data, "## You")
	assert.Contains(t, data, "## Assistant")
	assert.Contains(t, data, "the answer")
}
