package ui

import (
	"github.com/charmbracelet/lipgloss"

	notifications "careLinkWs/internal/modules/notifications/domain"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	colorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	colorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	colorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	colorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	colorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	colorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	colorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

var badgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite).
	Background(colorBlue).
	Padding(0, 1)

var unreadCountStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorWhite).
	Background(colorRed).
	Padding(0, 1)

// reconnectingStyle stays subtle: the list is still usable from the last snapshot.
var reconnectingStyle = lipgloss.NewStyle().
	Foreground(colorGray).
	Italic(true)

var dropdownStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorBorder)

var itemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

var selectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(colorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(colorBlue)

var readItemStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var timestampStyle = lipgloss.NewStyle().
	Foreground(colorGray)

var errorStyle = lipgloss.NewStyle().
	Foreground(colorRed)

// typeStyle returns the marker colour of a notification type.
func typeStyle(t notifications.Type) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch t {
	case notifications.TypeWarning:
		return base.Foreground(colorYellow)
	case notifications.TypeSuccess:
		return base.Foreground(colorGreen)
	case notifications.TypeError:
		return base.Foreground(colorRed)
	default:
		return base.Foreground(colorBlue)
	}
}
