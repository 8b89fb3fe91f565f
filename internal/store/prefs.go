// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// =============================================================================
// PREFERENCES
// =============================================================================

var (
	keyAPIKey       = []byte("api_key")
	keyModel        = []byte("model")
	keyShowThinking = []byte("show_thinking")
	keySidebarOpen  = []byte("sidebar_open")
)

// Prefs holds the user preferences loaded once at startup and written on
// every change. No cross-field invariants.
type Prefs struct {
	APIKey       string
	Model        string
	ShowThinking bool
	SidebarOpen  bool
}

// DefaultPrefs returns the preferences used before anything has been saved.
func DefaultPrefs() Prefs {
	return Prefs{SidebarOpen: true}
}

// LoadPrefs reads all preferences, filling defaults for unset keys.
func (s *Store) LoadPrefs() (Prefs, error) {
	prefs := DefaultPrefs()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPrefs)
		if v := b.Get(keyAPIKey); v != nil {
			prefs.APIKey = string(v)
		}
		if v := b.Get(keyModel); v != nil {
			prefs.Model = string(v)
		}
		if v := b.Get(keyShowThinking); v != nil {
			prefs.ShowThinking = string(v) == "true"
		}
		if v := b.Get(keySidebarOpen); v != nil {
			prefs.SidebarOpen = string(v) == "true"
		}
		return nil
	})
	return prefs, err
}

// SetAPIKey persists the backend API key.
func (s *Store) SetAPIKey(key string) error {
	return s.setPref(keyAPIKey, key)
}

// SetModel persists the selected model name.
func (s *Store) SetModel(model string) error {
	return s.setPref(keyModel, model)
}

// SetShowThinking persists the "show thinking" flag.
func (s *Store) SetShowThinking(on bool) error {
	return s.setPref(keyShowThinking, strconv.FormatBool(on))
}

// SetSidebarOpen persists the sidebar visibility flag.
func (s *Store) SetSidebarOpen(open bool) error {
	return s.setPref(keySidebarOpen, strconv.FormatBool(open))
}

func (s *Store) setPref(key []byte, value string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPrefs).Put(key, []byte(value))
	})
}
