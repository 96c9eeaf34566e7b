package notifylist

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/bikerent/internal/keys"
	"github.com/nhle/bikerent/internal/model"
	"github.com/nhle/bikerent/internal/notify"
)

func snapshot(ns ...model.Notification) notify.Snapshot {
	return notify.Snapshot{Notifications: ns, Loaded: true, State: notify.StateReady}
}

func press(t *testing.T, m Model, k tea.KeyMsg) tea.Msg {
	t.Helper()
	_, cmd := m.Update(k)
	if cmd == nil {
		return nil
	}
	return cmd()
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSetSnapshot_KeepsCursor(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetSnapshot(snapshot(
		model.Notification{ID: "a", Title: "A"},
		model.Notification{ID: "b", Title: "B"},
	))
	m.list.Select(1)

	m.SetSnapshot(snapshot(
		model.Notification{ID: "new", Title: "New"},
		model.Notification{ID: "a", Title: "A"},
		model.Notification{ID: "b", Title: "B"},
	))

	n, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "b", n.ID)
}

func TestUpdate_MarkRead(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetSnapshot(snapshot(model.Notification{ID: "a", Title: "A"}))

	msg := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, MarkReadMsg{ID: "a"}, msg)

	m.SetSnapshot(snapshot(model.Notification{ID: "a", Title: "A", Read: true}))
	assert.Nil(t, press(t, m, tea.KeyMsg{Type: tea.KeyEnter}))
}

func TestUpdate_GlobalActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	assert.Equal(t, MarkAllReadMsg{}, press(t, m, runeKey('A')))
	assert.Equal(t, ReloadMsg{}, press(t, m, runeKey('r')))
}

func TestUpdate_BookingActions(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 20)
	m.SetSnapshot(snapshot(model.Notification{
		ID:    "n1",
		Type:  model.NotificationRentalRequest,
		Title: "New Rental Request",
		Data:  map[string]any{"bookingId": "bk1"},
	}))

	assert.Equal(t, BookingActionMsg{NotificationID: "n1", BookingID: "bk1", Approve: true}, press(t, m, runeKey('a')))
	assert.Equal(t, BookingActionMsg{NotificationID: "n1", BookingID: "bk1"}, press(t, m, runeKey('x')))

	m.SetSnapshot(snapshot(model.Notification{ID: "n2", Type: model.NotificationPayment}))
	assert.Nil(t, press(t, m, runeKey('a')))
}

func TestView_Placeholders(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 60, 10)

	m.SetSnapshot(notify.Snapshot{Loading: true})
	assert.Contains(t, m.View(), "Loading notifications")

	m.SetSnapshot(notify.Snapshot{})
	assert.Contains(t, m.View(), "not loaded yet")

	m.SetSnapshot(notify.Snapshot{Loaded: true})
	assert.Contains(t, m.View(), "No notifications yet")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "", relativeTime(time.Time{}, now))
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-48*time.Hour), now))
}
