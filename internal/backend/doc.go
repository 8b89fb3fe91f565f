// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend provides the HTTP client for the chatline backend API.
//
// The backend owns the hard parts (model inference, web search, session
// memory); this package only translates intents into HTTP calls and
// normalizes failure into typed ClientError values:
//
//   - SendPrompt / ClearMemory: single-shot JSON round trips on /chat
//   - StreamPrompt: chunked text on /chat/stream with a synchronous
//     per-chunk callback and cooperative cancellation (ErrAborted)
//   - SearchWeb: best-effort, failure degrades to an empty result list
//   - UploadFiles: multipart upload on /upload
//
// Session identity travels in the x-session-id response header; the
// client echoes back whatever id it holds and adopts whatever the server
// returns.
package backend
