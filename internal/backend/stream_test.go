// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// streamHandler writes each chunk with an explicit flush so chunk
// boundaries survive the transport.
func streamHandler(t *testing.T, sessionID string, chunks ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/stream", r.URL.Path)
		flusher, ok := w.(http.Flusher)
		require.True(t, ok)

		if sessionID != "" {
			w.Header().Set("x-session-id", sessionID)
		}
		w.WriteHeader(http.StatusOK)
		for _, chunk := range chunks {
			w.Write([]byte(chunk))
			flusher.Flush()
			// Give the client a chance to drain between chunks.
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// =============================================================================
// STREAMING TESTS
// =============================================================================

func TestStreamPromptDeliversChunksInOrder(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, "sess-7", "Hello", ", ", "world"))
	defer server.Close()

	var got []string
	client := newTestClient(server.URL)
	result, err := client.StreamPrompt(context.Background(), "hi", StreamOptions{
		OnChunk: func(chunk string) { got = append(got, chunk) },
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello, world", result.FullText)
	assert.Equal(t, "sess-7", result.SessionID)
	// Chunks arrive in delivery order and concatenate to the full text.
	assert.Equal(t, result.FullText, strings.Join(got, ""))
	assert.Equal(t, "Hello", got[0])
}

func TestStreamPromptSessionIDFallback(t *testing.T) {
	// No header from the server: keep the id we sent.
	server := httptest.NewServer(streamHandler(t, "", "ok"))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.StreamPrompt(context.Background(), "hi", StreamOptions{SessionID: "sess-mine"})
	require.NoError(t, err)
	assert.Equal(t, "sess-mine", result.SessionID)

	// Neither side has an id: result stays unbound.
	result, err = client.StreamPrompt(context.Background(), "hi", StreamOptions{})
	require.NoError(t, err)
	assert.Equal(t, "", result.SessionID)
}

func TestStreamPromptSendsRequestFields(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.StreamPrompt(context.Background(), "question", StreamOptions{
		SessionID:    "sess-2",
		SystemPrompt: "be brief",
		Model:        "gpt-test",
	})
	require.NoError(t, err)

	assert.Equal(t, "question", gotBody["message"])
	assert.Equal(t, "sess-2", gotBody["session_id"])
	assert.Equal(t, "be brief", gotBody["system_prompt"])
	assert.Equal(t, "gpt-test", gotBody["model"])
}

func TestStreamPromptErrorTag(t *testing.T) {
	// The server reports mid-flight failures as a tagged line inside a
	// 200 stream; the client must surface that as a request error.
	server := httptest.NewServer(streamHandler(t, "", "[ERROR] model quota exceeded\n"))
	defer server.Close()

	var got []string
	client := newTestClient(server.URL)
	_, err := client.StreamPrompt(context.Background(), "hi", StreamOptions{
		OnChunk: func(chunk string) { got = append(got, chunk) },
	})
	require.Error(t, err)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindRequest, clientErr.Kind)
	assert.Equal(t, "model quota exceeded", clientErr.Message)
	// The tagged line is not delivered as content.
	assert.Empty(t, got)
}

func TestStreamPromptNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid api key"))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.StreamPrompt(context.Background(), "hi", StreamOptions{})
	require.Error(t, err)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, KindRequest, clientErr.Kind)
	assert.Contains(t, clientErr.Message, "invalid api key")
	assert.False(t, IsAborted(err))
}

func TestStreamPromptAbort(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Write([]byte("partial"))
		flusher.Flush()
		// Hold the stream open until the client gives up.
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(server.URL)

	chunkSeen := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := client.StreamPrompt(ctx, "hi", StreamOptions{
			OnChunk: func(string) {
				select {
				case chunkSeen <- struct{}{}:
				default:
				}
			},
		})
		done <- err
	}()

	// Abort mid-stream, after the first chunk has landed.
	select {
	case <-chunkSeen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first chunk")
	}
	cancel()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, IsAborted(err), "expected ErrAborted, got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after cancellation")
	}
}

func TestStreamPromptAbortBeforeRequest(t *testing.T) {
	server := httptest.NewServer(streamHandler(t, "", "never read"))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newTestClient(server.URL)
	_, err := client.StreamPrompt(ctx, "hi", StreamOptions{})
	require.Error(t, err)
	assert.True(t, IsAborted(err))
}
