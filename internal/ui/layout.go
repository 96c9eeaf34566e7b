package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bikerent/internal/theme"
)

// Layout holds the terminal dimensions and the fixed bar heights.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout for a terminal of the given size.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentHeight returns the rows left between the header and status bar.
func (l Layout) ContentHeight() int {
	h := l.Height - l.HeaderHeight - l.StatusBarHeight
	if h < 0 {
		return 0
	}
	return h
}

// RenderHeader renders the title bar: title and optional unread badge on
// the left, status on the right.
func (l Layout) RenderHeader(title, badge, status string) string {
	left := theme.HeaderStyle.Render(title)
	if badge != "" {
		left = lipgloss.JoinHorizontal(lipgloss.Top, left, theme.BadgeStyle.Render(badge))
	}
	right := theme.HeaderStyle.Render(status)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		left,
		fill(theme.HeaderStyle, l.Width-lipgloss.Width(left)-lipgloss.Width(right)),
		right,
	)
}

// RenderStatusBar renders the bottom bar. Errors use a warning color.
func (l Layout) RenderStatusBar(text string, isErr bool) string {
	style := theme.StatusBarStyle
	if isErr {
		style = theme.ErrorBarStyle
	}
	rendered := style.Render(text)
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		rendered,
		fill(style, l.Width-lipgloss.Width(rendered)),
	)
}

// RenderWithFrame stacks header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// fill pads a bar to the terminal width in the bar's background.
func fill(style lipgloss.Style, width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(width).
		Background(style.GetBackground()).
		Render("")
}
