// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chatline backend API.
package backend

// =============================================================================
// REQUEST TYPES
// =============================================================================

// chatRequest is the request body shared by /chat and /chat/stream.
type chatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
	APIKey       string `json:"api_key,omitempty"`
	Model        string `json:"model,omitempty"`
	Clear        bool   `json:"clear,omitempty"`
}

// searchRequest is the request body for /websearch.
type searchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// ChatReply is the response of /chat (single-shot and clear calls).
type ChatReply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// searchResponse is the response of /websearch.
type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// StoredFile describes one uploaded file as stored by the backend.
type StoredFile struct {
	Name        string `json:"name"`
	StoredName  string `json:"stored_name"`
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

// uploadResponse is the response of /upload.
type uploadResponse struct {
	Files []StoredFile `json:"files"`
}

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamResult is the outcome of a completed streaming exchange.
//
// SessionID is taken from the x-session-id response header when present,
// else falls back to the session id that was sent; it is empty only when
// neither exists. The server is the source of truth for session identity
// but the client tolerates its absence.
type StreamResult struct {
	SessionID string
	FullText  string
}

// ChunkFunc is invoked synchronously, in delivery order, for every
// non-empty decoded chunk of a streaming response.
type ChunkFunc func(chunk string)

// StreamOptions carries the optional fields of a streaming chat request.
type StreamOptions struct {
	SessionID    string
	SystemPrompt string
	APIKey       string
	Model        string
	OnChunk      ChunkFunc
}
