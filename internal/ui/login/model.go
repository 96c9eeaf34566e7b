package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/bikerent/internal/theme"
)

// SubmitMsg carries the entered credentials.
type SubmitMsg struct {
	Email    string
	Password string
}

// CancelMsg is sent when the user aborts the form.
type CancelMsg struct{}

// credentials is shared by every copy of Model so the form's value
// pointers stay valid.
type credentials struct {
	email    string
	password string
}

// Model is the sign-in view.
type Model struct {
	form   *huh.Form
	creds  *credentials
	err    string
	busy   bool
	width  int
	height int
}

// New creates the sign-in view.
func New(width, height int) Model {
	m := Model{creds: &credentials{}, width: width, height: height}
	m.form = m.buildForm()
	return m
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&m.creds.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.creds.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth()).WithShowHelp(true)
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

// Reset clears the password and rebuilds the form, keeping the email and
// showing errText when set.
func (m *Model) Reset(errText string) tea.Cmd {
	m.creds.password = ""
	m.err = errText
	m.busy = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Init returns the form's initial command.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Update forwards messages to the form and reports completion.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.busy {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.busy = true
		m.err = ""
		submit := SubmitMsg{Email: strings.TrimSpace(m.creds.email), Password: m.creds.password}
		return m, func() tea.Msg { return submit }
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form centered in the content area.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in to BikeRent")

	parts := []string{title}
	if m.busy {
		parts = append(parts, theme.HelpStyle.Render("Signing in..."))
	} else {
		parts = append(parts, m.form.View())
	}
	if m.err != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).MarginTop(1).Render(m.err))
	}

	panel := theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("Email is required")
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 {
		return errors.New("Enter a valid email address")
	}
	return nil
}
