// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides local persistence for chats, messages, session
// state, and preferences. It is pure load/save: callers decide what to
// write and when, and treat failures as skippable (log and move on).
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jeranaias/chatline/internal/model"
)

// =============================================================================
// BUCKETS AND KEYS
// =============================================================================

var (
	bucketChats    = []byte("chats")
	bucketMessages = []byte("messages")
	bucketState    = []byte("state")
	bucketPrefs    = []byte("prefs")
)

var (
	keyActiveChat  = []byte("active_chat")
	keyLastSession = []byte("last_session")
)

// =============================================================================
// STORE
// =============================================================================

// Store wraps a single bbolt database file. All methods are safe for use
// from one goroutine at a time, matching the single event loop that owns
// the conversation state.
type Store struct {
	db *bolt.DB
}

// DefaultPath returns the database location under the user's home
// directory, ~/.chatline/chatline.db.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".chatline", "chatline.db"), nil
}

// Open opens (creating if necessary) the database at path. The parent
// directory is created when missing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	// Create all buckets up-front so reads never have to nil-check twice.
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketChats, bucketMessages, bucketState, bucketPrefs} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// SaveChat writes the chat metadata, keyed by chat id.
func (s *Store) SaveChat(chat *model.Conversation) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChats).Put([]byte(chat.ID), data)
	})
}

// LoadChat returns the chat with the given id, or nil if it does not exist.
func (s *Store) LoadChat(id string) (*model.Conversation, error) {
	var chat *model.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketChats).Get([]byte(id))
		if data == nil {
			return nil
		}
		chat = &model.Conversation{}
		return json.Unmarshal(data, chat)
	})
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// ListChats returns all chats ordered most-recently-active first. An empty
// database yields an empty list, not an error.
func (s *Store) ListChats() ([]*model.Conversation, error) {
	var chats []*model.Conversation
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketChats).ForEach(func(k, v []byte) error {
			var chat model.Conversation
			if err := json.Unmarshal(v, &chat); err != nil {
				// Skip malformed entries instead of failing the whole list.
				return nil
			}
			chats = append(chats, &chat)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(chats, func(i, j int) bool {
		return chats[i].UpdatedAt.After(chats[j].UpdatedAt)
	})
	return chats, nil
}

// =============================================================================
// MESSAGE OPERATIONS
// =============================================================================

// SaveMessages rewrites the full message list for a chat. Called after
// every applied chunk, so last-write-wins is the intended semantics.
func (s *Store) SaveMessages(chatID string, msgs []*model.Message) error {
	data, err := json.Marshal(msgs)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessages).Put([]byte(chatID), data)
	})
}

// LoadMessages returns the stored messages for a chat, empty when none
// exist. A message persisted mid-stream (the process died before finalize)
// comes back finalized; nothing will ever append to it again.
func (s *Store) LoadMessages(chatID string) ([]*model.Message, error) {
	var msgs []*model.Message
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketMessages).Get([]byte(chatID))
		if data == nil {
			return nil
		}
		return json.Unmarshal(data, &msgs)
	})
	if err != nil {
		return nil, err
	}

	for _, m := range msgs {
		if m.Streaming {
			m.FinalizeWith(m.Content)
		}
	}
	return msgs, nil
}

// ClearMessages removes the stored message list for a chat.
func (s *Store) ClearMessages(chatID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMessages).Delete([]byte(chatID))
	})
}

// =============================================================================
// SESSION STATE
// =============================================================================

// ActiveChatID returns the persisted active chat id, or "" when unset.
func (s *Store) ActiveChatID() (string, error) {
	return s.getState(keyActiveChat)
}

// SetActiveChatID persists the active chat id.
func (s *Store) SetActiveChatID(id string) error {
	return s.setState(keyActiveChat, id)
}

// LastSessionID returns the last backend session id bound by any chat,
// or "" when none has been.
func (s *Store) LastSessionID() (string, error) {
	return s.getState(keyLastSession)
}

// SetLastSessionID persists the most recently bound backend session id.
func (s *Store) SetLastSessionID(id string) error {
	return s.setState(keyLastSession, id)
}

func (s *Store) getState(key []byte) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		value = string(tx.Bucket(bucketState).Get(key))
		return nil
	})
	return value, err
}

func (s *Store) setState(key []byte, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketState).Put(key, []byte(value))
	})
}
