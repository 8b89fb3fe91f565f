// chatline - a terminal chat client for a streaming chatbot backend.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/jeranaias/chatline/internal/backend"
	"github.com/jeranaias/chatline/internal/config"
	"github.com/jeranaias/chatline/internal/session"
	"github.com/jeranaias/chatline/internal/store"
	"github.com/jeranaias/chatline/internal/ui/chat"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	var (
		configPath  = flag.String("config", "", "config file path (default ~/.chatline/config.toml)")
		backendURL  = flag.String("backend", "", "backend base URL (overrides config)")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("chatline %s (%s, %s)\n", Version, GitCommit, BuildDate)
		return
	}

	// A TUI owns the terminal; refuse to run piped.
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "chatline requires an interactive terminal")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	if *backendURL != "" {
		cfg.BackendURL = *backendURL
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := openLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log setup failed: %v\n", err)
		os.Exit(1)
	}
	log.WithField("version", Version).Info("chatline starting")

	if err := run(cfg, *configPath, log); err != nil {
		log.WithError(err).Error("chatline exited with error")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, log *logrus.Logger) error {
	dbPath, err := store.DefaultPath()
	if err != nil {
		return fmt.Errorf("cannot resolve store path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("cannot open store: %w", err)
	}
	defer st.Close()

	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:      cfg.BackendURL,
		Timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
		SystemPrompt: cfg.SystemPrompt,
	})

	controller := session.New(client, st, log)
	controller.SetSystemPrompt(cfg.SystemPrompt)
	seedPrefs(controller, cfg)

	m := chat.New(controller, log)
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.SetProgram(p)

	// Hot reload of the backend URL while running.
	if watcher := startConfigWatcher(configPath, log, client); watcher != nil {
		defer watcher.Close()
	}

	// Startup probe: an unreachable backend is a warning toast, not fatal.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		p.Send(chat.HealthMsg{Err: client.CheckHealth(ctx)})
	}()

	_, err = p.Run()
	return err
}

// loadConfig loads from the explicit path when given, else the default
// location.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// seedPrefs fills empty persisted preferences from the config file, so a
// fresh install starts with the configured key and model.
func seedPrefs(controller *session.Controller, cfg *config.Config) {
	prefs := controller.Prefs()
	if prefs.APIKey == "" && cfg.APIKey != "" {
		controller.SetAPIKey(cfg.APIKey)
	}
	if prefs.Model == "" && cfg.Model != "" {
		controller.SetModel(cfg.Model)
	}
}

// startConfigWatcher wires config hot reload; failures only log.
func startConfigWatcher(configPath string, log *logrus.Logger, client *backend.Client) *config.Watcher {
	path := configPath
	if path == "" {
		var err error
		path, err = config.Path()
		if err != nil {
			return nil
		}
	}

	watcher, err := config.NewWatcher(path, log, func(cfg *config.Config) {
		client.SetBaseURL(cfg.BackendURL)
	})
	if err != nil {
		log.WithError(err).Warn("config watch unavailable")
		return nil
	}
	return watcher
}

// openLogger sets up file logging under ~/.chatline. The terminal belongs
// to the TUI, so nothing ever logs to stderr after startup.
func openLogger(level string) (*logrus.Logger, error) {
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filepath.Join(dir, "chatline.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(file)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	// Packages using the standard logger must not write to the terminal
	// either.
	logrus.SetOutput(file)
	logrus.SetLevel(lvl)
	return log, nil
}
