// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "github.com/charmbracelet/lipgloss"

// Theme holds the styled components for the application.
type Theme struct {
	// ==========================================================================
	// HEADER AND STATUS
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	StatusBar   lipgloss.Style
	StatusKey   lipgloss.Style
	StatusDesc  lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	UserBubble     lipgloss.Style
	AssistantText  lipgloss.Style
	StoppedText    lipgloss.Style
	ErrorText      lipgloss.Style
	Timestamp      lipgloss.Style

	// ==========================================================================
	// SIDEBAR
	// ==========================================================================

	Sidebar            lipgloss.Style
	SidebarTitle       lipgloss.Style
	SidebarItem        lipgloss.Style
	SidebarItemActive  lipgloss.Style
	SidebarItemPreview lipgloss.Style

	// ==========================================================================
	// INPUT AND TOASTS
	// ==========================================================================

	InputContainer lipgloss.Style
	ToastError     lipgloss.Style
	ToastInfo      lipgloss.Style
	HelpOverlay    lipgloss.Style
}

// NewTheme builds the default theme.
func NewTheme() *Theme {
	return &Theme{
		Header: lipgloss.NewStyle().
			Background(SurfaceDim).
			Padding(0, 1),
		HeaderTitle: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		StatusBar: lipgloss.NewStyle().
			Background(SurfaceDim).
			Foreground(TextMuted).
			Padding(0, 1),
		StatusKey: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		StatusDesc: lipgloss.NewStyle().
			Foreground(TextMuted),

		UserLabel: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true),
		AssistantLabel: lipgloss.NewStyle().
			Foreground(Purple).
			Bold(true),
		UserBubble: lipgloss.NewStyle().
			Foreground(Text),
		AssistantText: lipgloss.NewStyle().
			Foreground(Text),
		StoppedText: lipgloss.NewStyle().
			Foreground(TextMuted).
			Italic(true),
		ErrorText: lipgloss.NewStyle().
			Foreground(Rose),
		Timestamp: lipgloss.NewStyle().
			Foreground(TextMuted),

		Sidebar: lipgloss.NewStyle().
			Background(SurfaceDim).
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			BorderForeground(Border),
		SidebarTitle: lipgloss.NewStyle().
			Foreground(Purple).
			Bold(true).
			Padding(0, 1),
		SidebarItem: lipgloss.NewStyle().
			Foreground(Text).
			Padding(0, 1),
		SidebarItemActive: lipgloss.NewStyle().
			Foreground(Cyan).
			Bold(true).
			Padding(0, 1),
		SidebarItemPreview: lipgloss.NewStyle().
			Foreground(TextMuted).
			Padding(0, 1),

		InputContainer: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(0, 1),
		ToastError: lipgloss.NewStyle().
			Foreground(Rose).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Rose).
			Padding(0, 1),
		ToastInfo: lipgloss.NewStyle().
			Foreground(Emerald).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Emerald).
			Padding(0, 1),
		HelpOverlay: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Border).
			Padding(1, 2),
	}
}
