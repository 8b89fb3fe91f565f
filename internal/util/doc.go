// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small shared helpers for the chatline TUI:
// rune-safe string truncation, whitespace normalization for chat
// previews, and atomic file writes for exports.
package util
