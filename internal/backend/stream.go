// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chatline backend API.
package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
)

// sessionHeader is the response header carrying the backend session id.
const sessionHeader = "x-session-id"

// errTag prefixes error lines the server emits inside an otherwise-200
// stream when the upstream model call fails mid-flight.
const errTag = "[ERROR] "

// =============================================================================
// STREAMING CHAT
// =============================================================================

// StreamPrompt issues a streaming chat request and reads the response body
// incrementally. For every non-empty chunk, opts.OnChunk is called
// synchronously in delivery order. Cancellation is cooperative: cancel the
// context and the read loop stops within one chunk read, failing with
// ErrAborted rather than a generic error.
func (c *Client) StreamPrompt(ctx context.Context, message string, opts StreamOptions) (*StreamResult, error) {
	body := chatRequest{
		Message:      message,
		SystemPrompt: firstNonEmpty(opts.SystemPrompt, c.config.SystemPrompt),
		SessionID:    opts.SessionID,
		APIKey:       opts.APIKey,
		Model:        opts.Model,
	}

	// The stream client has no timeout; lifetime is bound to ctx.
	resp, err := c.postJSON(ctx, "/chat/stream", body, c.streamClient)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, requestError(KindRequest, resp)
	}

	// Header wins, then the id we sent. Empty means the server never
	// assigned one - callers must tolerate that.
	sessionID := resp.Header.Get(sessionHeader)
	if sessionID == "" {
		sessionID = opts.SessionID
	}

	reader := newStreamReader(resp.Body)
	full, err := reader.process(ctx, opts.OnChunk)
	if err != nil {
		return nil, err
	}

	return &StreamResult{SessionID: sessionID, FullText: full}, nil
}

// =============================================================================
// STREAM READER
// =============================================================================

// streamReader consumes a chunked text body one read at a time.
type streamReader struct {
	body io.Reader
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	accumulator strings.Builder
	buf         []byte
}

func newStreamReader(body io.Reader) *streamReader {
	return &streamReader{
		body: body,
		buf:  make([]byte, 4096),
	}
}

// process reads chunks until EOF, delivering each non-empty chunk to the
// callback. The context is observed at every iteration so abort latency is
// bounded by one chunk's transfer time, not the whole stream.
func (s *streamReader) process(ctx context.Context, onChunk ChunkFunc) (string, error) {
	for {
		select {
		case <-ctx.Done():
			return "", ErrAborted
		default:
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			chunk := string(s.buf[:n])

			// A stream that opens with the server's error tag is a
			// failed exchange dressed as a 200.
			if s.accumulator.Len() == 0 && strings.HasPrefix(chunk, errTag) {
				return "", &ClientError{
					Kind:    KindRequest,
					Message: strings.TrimSpace(strings.TrimPrefix(chunk, errTag)),
				}
			}

			s.accumulator.WriteString(chunk)
			if onChunk != nil {
				onChunk(chunk)
			}
		}

		if err != nil {
			if err == io.EOF {
				return s.accumulator.String(), nil
			}
			// Context cancellation surfaces through the body read once
			// the transport tears the connection down.
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return "", ErrAborted
			}
			return "", &ClientError{Kind: KindConnection, Message: "stream read failed", Cause: err}
		}
	}
}
