// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chatline backend API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes client errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnection
	KindRequest
	KindUpload
	KindClear
	KindAborted
)

// ClientError represents an error from the backend client.
type ClientError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *ClientError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is match any ClientError of the same kind, so sentinel
// checks work without pointer identity.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel errors for easy checking.
var (
	// ErrAborted marks a user-initiated cancellation. It is deliberately
	// distinct from the request failures so callers can render
	// "generation stopped" instead of an error.
	ErrAborted = &ClientError{Kind: KindAborted, Message: "generation aborted"}

	// ErrUnreachable indicates the backend could not be reached at all.
	ErrUnreachable = &ClientError{Kind: KindConnection, Message: "backend is unreachable"}
)

// IsAborted checks if an error is a user-initiated cancellation.
func IsAborted(err error) bool {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return clientErr.Kind == KindAborted
	}
	return false
}

// requestError wraps a non-success HTTP response for chat/stream calls.
// The server puts human-readable detail in the body, so prefer that over
// the bare status line.
func requestError(kind ErrorKind, resp *http.Response) *ClientError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = "request failed: " + resp.Status
	}
	return &ClientError{Kind: kind, Message: msg}
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// maxErrorBody caps how much of an error response body is read.
	maxErrorBody = 64 * 1024

	// maxResponseBody caps non-streaming response bodies.
	maxResponseBody = 10 * 1024 * 1024
)

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend base URL (default: http://127.0.0.1:8001)
	BaseURL string

	// Timeout for non-streaming requests (default: 60s)
	Timeout time.Duration

	// SystemPrompt is sent with every chat request when non-empty.
	SystemPrompt string
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: "http://127.0.0.1:8001",
		Timeout: 60 * time.Second,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chatline backend.
//
// Every call returns a structurally uniform success shape and a typed
// *ClientError on the unhappy path, so the session controller never
// branches on transport internals.
//
// The Client is safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client

	// streamClient has no timeout; streaming lifetime is controlled by
	// the caller's context.
	streamClient *http.Client
}

// NewClient creates a new backend client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new backend client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8001"
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// SetBaseURL updates the backend base URL (config hot reload).
func (c *Client) SetBaseURL(url string) {
	c.config.BaseURL = strings.TrimSuffix(url, "/")
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckHealth verifies that the backend is reachable.
func (c *Client) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return &ClientError{Kind: KindConnection, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrUnreachable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{Kind: KindConnection, Message: "unexpected status from backend: " + resp.Status}
	}
	return nil
}

// =============================================================================
// SINGLE-SHOT CHAT
// =============================================================================

// SendOptions carries the optional fields of a single-shot chat request.
type SendOptions struct {
	SessionID    string
	SystemPrompt string
	APIKey       string
}

// SendPrompt sends a single-shot chat request and returns the full reply.
// Fails with a request-kind ClientError carrying the server-provided text
// (or a status-derived message) when the response is not successful.
func (c *Client) SendPrompt(ctx context.Context, message string, opts SendOptions) (*ChatReply, error) {
	body := chatRequest{
		Message:      message,
		SystemPrompt: firstNonEmpty(opts.SystemPrompt, c.config.SystemPrompt),
		SessionID:    opts.SessionID,
		APIKey:       opts.APIKey,
	}

	resp, err := c.postJSON(ctx, "/chat", body, c.httpClient)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, requestError(KindRequest, resp)
	}

	var reply ChatReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&reply); err != nil {
		return nil, &ClientError{Kind: KindRequest, Message: "failed to decode reply", Cause: err}
	}
	return &reply, nil
}

// =============================================================================
// CLEAR MEMORY
// =============================================================================

// ClearMemory tells the backend to drop server-side conversational memory
// for a session. It reuses the chat endpoint with the clear flag set.
func (c *Client) ClearMemory(ctx context.Context, sessionID, apiKey string) (*ChatReply, error) {
	body := chatRequest{
		Message:   "",
		SessionID: sessionID,
		APIKey:    apiKey,
		Clear:     true,
	}

	resp, err := c.postJSON(ctx, "/chat", body, c.httpClient)
	if err != nil {
		return nil, &ClientError{Kind: KindClear, Message: "clear memory failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, requestError(KindClear, resp)
	}

	var reply ChatReply
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&reply); err != nil {
		return nil, &ClientError{Kind: KindClear, Message: "failed to decode reply", Cause: err}
	}
	return &reply, nil
}

// =============================================================================
// WEB SEARCH
// =============================================================================

// SearchWeb runs a backend web search. Best-effort by contract: on any
// failure or non-success status it returns an empty list rather than an
// error, so callers treat "no results" and "search unavailable" the same.
func (c *Client) SearchWeb(ctx context.Context, query string, maxResults int) []SearchResult {
	if maxResults <= 0 {
		maxResults = 5
	}

	body := searchRequest{Query: query, MaxResults: maxResults}
	resp, err := c.postJSON(ctx, "/websearch", body, c.httpClient)
	if err != nil {
		logrus.WithError(err).Debug("web search unavailable")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		logrus.WithField("status", resp.Status).Debug("web search returned non-success")
		return nil
	}

	var result searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&result); err != nil {
		logrus.WithError(err).Debug("web search response malformed")
		return nil
	}
	return result.Results
}

// =============================================================================
// FILE UPLOAD
// =============================================================================

// UploadFiles uploads the named files as a multipart request (field name
// "files") and returns the stored-file descriptors. Fails with an
// upload-kind ClientError on non-success.
func (c *Client) UploadFiles(ctx context.Context, paths []string) ([]StoredFile, error) {
	if len(paths) == 0 {
		return nil, &ClientError{Kind: KindUpload, Message: "no files to upload"}
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, &ClientError{Kind: KindUpload, Message: "failed to open " + path, Cause: err}
		}
		part, err := w.CreateFormFile("files", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		f.Close()
		if err != nil {
			return nil, &ClientError{Kind: KindUpload, Message: "failed to read " + path, Cause: err}
		}
	}
	if err := w.Close(); err != nil {
		return nil, &ClientError{Kind: KindUpload, Message: "failed to finish multipart body", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/upload", &buf)
	if err != nil {
		return nil, &ClientError{Kind: KindUpload, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClientError{Kind: KindUpload, Message: "upload failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, requestError(KindUpload, resp)
	}

	var result uploadResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&result); err != nil {
		return nil, &ClientError{Kind: KindUpload, Message: "failed to decode upload response", Cause: err}
	}
	return result.Files, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// postJSON issues a JSON POST to the given path.
func (c *Client) postJSON(ctx context.Context, path string, body any, client *http.Client) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &ClientError{Kind: KindRequest, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, &ClientError{Kind: KindConnection, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, ErrAborted
		}
		return nil, &ClientError{Kind: KindConnection, Message: "backend request failed", Cause: err}
	}
	return resp, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
