// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search implements the /search command grammar and the prompt
// augmentation that weaves web results into a chat submission.
//
// Display text and transmitted text diverge deliberately: the user sees
// "Search: <query>" while the model receives the full citation block.
package search

import (
	"strconv"
	"strings"

	"github.com/jeranaias/chatline/internal/backend"
	"github.com/jeranaias/chatline/internal/util"
)

// =============================================================================
// COMMAND GRAMMAR
// =============================================================================

// commandPrefix is the leading token that triggers a web-search pre-step.
const commandPrefix = "/search"

// snippetMaxRunes caps each woven-in result snippet.
const snippetMaxRunes = 300

// ParseCommand recognizes a leading "/search <query>" token. A bare
// "/search" with nothing after it is not a command; the text passes
// through unchanged.
func ParseCommand(input string) (query string, ok bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == commandPrefix {
		return "", false
	}
	rest, found := strings.CutPrefix(trimmed, commandPrefix+" ")
	if !found {
		return "", false
	}
	query = strings.TrimSpace(rest)
	if query == "" {
		return "", false
	}
	return query, true
}

// DisplayText is what the user message shows in place of the raw command.
func DisplayText(query string) string {
	return "Search: " + query
}

// =============================================================================
// PROMPT AUGMENTATION
// =============================================================================

// BuildPrompt weaves search results into the text sent to the model: a
// ranked source list, a citation instruction, and the original question
// last. With no results it degrades to the bare query, so "search failed"
// and "no results" are indistinguishable downstream.
func BuildPrompt(query string, results []backend.SearchResult) string {
	if len(results) == 0 {
		return query
	}

	var b strings.Builder
	b.WriteString("Use the following web search results to answer the question. ")
	b.WriteString("Cite sources inline as [n] where relevant.\n\n")

	for i, r := range results {
		b.WriteString("[" + strconv.Itoa(i+1) + "] " + r.Title + "\n")
		b.WriteString("URL: " + r.URL + "\n")
		snippet := util.TruncateRunes(util.CollapseWhitespace(r.Content), snippetMaxRunes)
		if snippet != "" {
			b.WriteString(snippet + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("Question: " + query)
	return b.String()
}
