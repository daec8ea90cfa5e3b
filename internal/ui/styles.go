// Package ui provides terminal styling for specd CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Ayu theme color palette, adaptive between light and dark terminals.
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300",
		Dark:  "#c2d94c",
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49",
		Dark:  "#ffb454",
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171",
		Dark:  "#f07178",
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99",
		Dark:  "#6c7680",
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6",
		Dark:  "#59c2ff",
	}
)

// Status styles, consistent across all commands.
var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)

	// HeaderStyle for section headers.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
)

// Status icons.
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
)

// RenderPass renders text with pass (green) styling.
func RenderPass(s string) string { return PassStyle.Render(s) }

// RenderWarn renders text with warning (yellow) styling.
func RenderWarn(s string) string { return WarnStyle.Render(s) }

// RenderFail renders text with fail (red) styling.
func RenderFail(s string) string { return FailStyle.Render(s) }

// RenderMuted renders text with muted (gray) styling.
func RenderMuted(s string) string { return MutedStyle.Render(s) }

// RenderAccent renders text with accent (blue) styling.
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderHeader renders a bold section header.
func RenderHeader(s string) string { return HeaderStyle.Render(s) }

// PhaseStyle returns the style for a lifecycle phase name.
func PhaseStyle(phase string) lipgloss.Style {
	switch phase {
	case "completed":
		return PassStyle
	case "implementation":
		return AccentStyle
	default:
		return WarnStyle
	}
}
