// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats and messages.
//
// A Message belongs to exactly one chat and is mutated only while its
// Streaming flag is set; a Conversation carries chat metadata (title,
// preview, last activity) plus the optional backend session binding.
// Message lists are owned by the session controller and persisted
// separately from chat metadata, mirroring how the sidebar only needs
// metadata while the transcript view needs the full list.
package model
