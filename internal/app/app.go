package app

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bikerent/internal/gateway"
	"github.com/nhle/bikerent/internal/keys"
	"github.com/nhle/bikerent/internal/model"
	"github.com/nhle/bikerent/internal/session"
	appsync "github.com/nhle/bikerent/internal/sync"
	"github.com/nhle/bikerent/internal/ui"
	helpview "github.com/nhle/bikerent/internal/ui/help"
	"github.com/nhle/bikerent/internal/ui/login"
	"github.com/nhle/bikerent/internal/ui/notifylist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewNotifications
	ViewHelp
)

const expiredText = "Your session has expired. Please sign in again."

// Model is the root Bubble Tea model. It routes between the sign-in
// screen and the notification list and follows the session lifecycle.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	session      Session
	bookings     Bookings
	pollInterval time.Duration

	loginView login.Model
	listView  notifylist.Model
	helpView  helpview.Model

	// feed is the current session's poller, nil while signed out.
	feed    *appsync.Poller
	profile *model.Profile

	ready     bool
	resuming  bool
	status    string
	statusErr bool
}

// New creates the root model. pollInterval sets how often the
// notification list is reloaded in the background; zero disables it.
func New(s Session, b Bookings, pollInterval time.Duration) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView:  ViewLogin,
		keys:         k,
		session:      s,
		bookings:     b,
		pollInterval: pollInterval,
		loginView:    login.New(80, 24),
		listView:     notifylist.New(k, 80, 24),
		helpView:     helpview.New(k, 80, 24),
		resuming:     true,
		status:       "Restoring session...",
	}
}

// Init starts listening for session events and tries to resume the
// previous session.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForSessionEvent(),
		m.resume(),
		m.loginView.Init(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.loginView.SetSize(msg.Width, h)
		m.listView.SetSize(msg.Width, h)
		m.helpView.SetSize(msg.Width, h)
		return m.updateActiveView(msg)

	case sessionEventMsg:
		cmd := m.handleSessionEvent(msg.event)
		return m, tea.Batch(cmd, m.waitForSessionEvent())

	case resumeResultMsg:
		m.resuming = false
		if msg.err != nil {
			m.session.SetAtSignIn(true)
			m.setStatus("", false)
		}
		return m, nil

	case signInResultMsg:
		if msg.err != nil {
			return m, m.loginView.Reset(signInErrorText(msg.err))
		}
		return m, nil

	case login.CancelMsg:
		return m, m.quit()

	case login.SubmitMsg:
		m.setStatus("Signing in...", false)
		return m, m.signIn(msg.Email, msg.Password)

	case appsync.SnapshotMsg:
		if msg.Feed != m.feed {
			return m, nil
		}
		cmd := m.listView.SetSnapshot(msg.Snapshot)
		return m, tea.Batch(cmd, m.feed.WaitForSnapshot())

	case appsync.LoadResultMsg:
		if msg.Feed != m.feed {
			return m, nil
		}
		switch {
		case msg.Err == nil:
			if m.status == "Reloading..." {
				m.setStatus("", false)
			}
		case gateway.IsAuthError(msg.Err):
			// The session event switches to the sign-in view.
		default:
			m.setStatus("Could not load notifications. Press r to retry.", true)
		}
		return m, m.feed.WaitForNextResult()

	case notifylist.MarkReadMsg:
		if m.feed != nil {
			m.feed.Synchronizer().MarkAsRead(msg.ID, true)
		}
		return m, nil

	case notifylist.MarkAllReadMsg:
		if m.feed != nil {
			m.feed.Synchronizer().MarkAllAsRead()
		}
		return m, nil

	case notifylist.ReloadMsg:
		if m.feed != nil {
			m.setStatus("Reloading...", false)
			m.feed.Reload()
		}
		return m, nil

	case notifylist.BookingActionMsg:
		if m.profile == nil || !m.profile.IsOwner() {
			m.setStatus("Only bike owners can respond to rental requests.", true)
			return m, nil
		}
		m.setStatus("Updating booking...", false)
		return m, m.decideBooking(msg)

	case bookingResultMsg:
		m.setStatus(bookingStatusText(msg), msg.err != nil)
		if msg.err == nil && m.feed != nil {
			m.feed.Synchronizer().MarkAsRead(msg.action.NotificationID, true)
		}
		return m, nil

	case tea.KeyMsg:
		if m.currentView == ViewNotifications {
			m.setStatus("", false)
		}
		switch msg.String() {
		case "ctrl+c":
			return m, m.quit()

		case "q":
			if m.currentView != ViewLogin {
				return m, m.quit()
			}

		case "?":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			if m.currentView == ViewNotifications {
				m.previousView = m.currentView
				m.currentView = ViewHelp
				return m, nil
			}

		case "esc":
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}

		case "L":
			if m.currentView == ViewNotifications {
				m.setStatus("Signing out...", false)
				return m, m.signOut()
			}
		}
	}

	return m.updateActiveView(msg)
}

// handleSessionEvent switches views and swaps the per-session feed.
func (m *Model) handleSessionEvent(ev session.Event) tea.Cmd {
	m.stopFeed()

	switch ev.Kind {
	case session.EventSignedIn:
		m.profile = ev.Profile
		m.resuming = false
		m.currentView = ViewNotifications
		m.session.SetAtSignIn(false)
		m.setStatus("", false)
		if ev.Notifications == nil {
			return nil
		}
		m.feed = appsync.New(ev.Notifications, m.pollInterval)
		cmd := m.listView.SetSnapshot(ev.Notifications.Snapshot())
		return tea.Batch(cmd, m.feed.Start())

	case session.EventExpired:
		m.toLogin()
		m.setStatus(expiredText, true)
		return m.loginView.Reset(expiredText)

	default:
		m.toLogin()
		m.setStatus("Signed out.", false)
		return m.loginView.Reset("")
	}
}

func (m *Model) toLogin() {
	m.profile = nil
	m.currentView = ViewLogin
	m.session.SetAtSignIn(true)
}

func (m *Model) stopFeed() {
	if m.feed != nil {
		m.feed.Stop()
		m.feed = nil
	}
}

func (m *Model) quit() tea.Cmd {
	m.stopFeed()
	return tea.Quit
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		if m.resuming {
			return m, nil
		}
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewNotifications:
		m.listView, cmd = m.listView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	badge := ""
	if m.currentView != ViewLogin {
		if n := m.listView.Snapshot().Unread; n > 0 {
			badge = fmt.Sprintf("%d unread", n)
		}
	}
	header := m.layout.RenderHeader("BikeRent", badge, m.who())
	statusBar := m.layout.RenderStatusBar(m.statusText(), m.statusErr && m.status != "")

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		if m.resuming {
			return ""
		}
		return m.loginView.View()
	case ViewNotifications:
		return m.listView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// who describes the signed-in user for the header.
func (m Model) who() string {
	if m.profile == nil {
		return "signed out"
	}
	name := m.profile.Name
	if name == "" {
		name = m.profile.Email
	}
	if m.profile.Role != "" {
		return fmt.Sprintf("%s (%s)", name, m.profile.Role)
	}
	return name
}

// statusText returns the status message, or key hints for the view.
func (m Model) statusText() string {
	if m.status != "" {
		return m.status
	}

	switch m.currentView {
	case ViewLogin:
		return "enter submit | tab next field | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	default:
		hint := "enter read | A all read | r reload | ? help | L sign out | q quit"
		if m.profile != nil && m.profile.IsOwner() {
			hint = "a approve | x reject | " + hint
		}
		return hint
	}
}
