package app

import (
	"context"
	"errors"
	"log"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bikerent/internal/gateway"
	"github.com/nhle/bikerent/internal/model"
	"github.com/nhle/bikerent/internal/session"
)

// requestTimeout bounds the session commands started from the UI.
const requestTimeout = 30 * time.Second

// Session is the part of session.Manager the UI drives.
type Session interface {
	SignIn(ctx context.Context, email, password string) (*model.Profile, error)
	Resume(ctx context.Context) (*model.Profile, error)
	SignOut(ctx context.Context)
	SetAtSignIn(v bool)
	Events() <-chan session.Event
}

// sessionEventMsg wraps a lifecycle transition from the session manager.
type sessionEventMsg struct {
	event session.Event
}

// resumeResultMsg is sent when the startup resume attempt finishes.
type resumeResultMsg struct{ err error }

// signInResultMsg is sent when a sign-in attempt finishes.
type signInResultMsg struct{ err error }

// waitForSessionEvent returns a tea.Cmd that waits for the next session
// transition. It is re-issued after every event.
func (m Model) waitForSessionEvent() tea.Cmd {
	ch := m.session.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return sessionEventMsg{event: ev}
	}
}

// resume tries to restore the previous run's session.
func (m Model) resume() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := s.Resume(ctx)
		if err != nil && !errors.Is(err, session.ErrNoSession) {
			log.Printf("failed to resume session: %v", err)
		}
		return resumeResultMsg{err: err}
	}
}

// signIn authenticates with the entered credentials.
func (m Model) signIn(email, password string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		_, err := s.SignIn(ctx, email, password)
		if err != nil {
			log.Printf("sign-in failed for %s: %v", email, err)
		}
		return signInResultMsg{err: err}
	}
}

// signOut ends the session; the resulting event switches the view.
func (m Model) signOut() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		s.SignOut(ctx)
		return nil
	}
}

// signInErrorText turns a sign-in failure into a message for the form.
func signInErrorText(err error) string {
	if gateway.IsAuthError(err) {
		return "Invalid email or password."
	}
	var se *gateway.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return "Could not reach the server. Try again."
}
