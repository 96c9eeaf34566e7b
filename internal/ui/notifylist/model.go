package notifylist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bikerent/internal/keys"
	"github.com/nhle/bikerent/internal/model"
	"github.com/nhle/bikerent/internal/notify"
	"github.com/nhle/bikerent/internal/theme"
)

// MarkReadMsg asks for one notification to be marked read.
type MarkReadMsg struct {
	ID string
}

// MarkAllReadMsg asks for every notification to be marked read.
type MarkAllReadMsg struct{}

// ReloadMsg asks for a forced reload from the server.
type ReloadMsg struct{}

// BookingActionMsg asks to approve or reject the booking behind a rental
// request.
type BookingActionMsg struct {
	NotificationID string
	BookingID      string
	Approve        bool
}

// Model is the notification list view.
type Model struct {
	list   list.Model
	keys   *keys.KeyMap
	snap   notify.Snapshot
	width  int
	height int
}

// New creates a notification list.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("notification", "notifications")

	return Model{list: l, keys: k, width: width, height: height}
}

// SetSnapshot replaces the displayed collection, keeping the cursor on
// the same notification when it is still present.
func (m *Model) SetSnapshot(s notify.Snapshot) tea.Cmd {
	selected, hadSelection := m.Selected()
	m.snap = s

	items := make([]list.Item, len(s.Notifications))
	cursor := 0
	for i, n := range s.Notifications {
		items[i] = Item{Notification: n}
		if hadSelection && n.ID == selected.ID {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(cursor)
	}
	return cmd
}

// Snapshot returns the collection currently shown.
func (m Model) Snapshot() notify.Snapshot {
	return m.snap
}

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.Read {
				return m, nil
			}
			return m, emit(MarkReadMsg{ID: n.ID})

		case key.Matches(msg, m.keys.MarkAllRead):
			return m, emit(MarkAllReadMsg{})

		case key.Matches(msg, m.keys.Refresh):
			return m, emit(ReloadMsg{})

		case key.Matches(msg, m.keys.Approve), key.Matches(msg, m.keys.Reject):
			n, ok := m.Selected()
			if !ok || n.Type != model.NotificationRentalRequest || n.BookingID() == "" {
				return m, nil
			}
			return m, emit(BookingActionMsg{
				NotificationID: n.ID,
				BookingID:      n.BookingID(),
				Approve:        key.Matches(msg, m.keys.Approve),
			})
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the list, or a placeholder while nothing can be listed.
func (m Model) View() string {
	if len(m.list.Items()) > 0 {
		return m.list.View()
	}

	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.snap.Loading:
		return style.Render("Loading notifications...")
	case !m.snap.Loaded:
		return style.Render("Notifications are not loaded yet.\n\nPress r to retry.")
	default:
		return style.Render("No notifications yet.")
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
