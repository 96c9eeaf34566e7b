package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nhle/bikerent/internal/api"
	"github.com/nhle/bikerent/internal/credential"
	"github.com/nhle/bikerent/internal/gateway"
	"github.com/nhle/bikerent/internal/model"
	"github.com/nhle/bikerent/internal/notify"
	"github.com/nhle/bikerent/internal/store"
)

// refreshCookieKey is the vault key holding the exported refresh cookie.
const refreshCookieKey = "refresh_cookie"

const teardownTimeout = 5 * time.Second

// ErrNoSession is returned by Resume when nothing was saved by a previous
// run.
var ErrNoSession = errors.New("no saved session")

// EventKind tags a session lifecycle transition.
type EventKind int

const (
	EventSignedIn EventKind = iota
	EventSignedOut
	EventExpired
)

func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed in"
	case EventSignedOut:
		return "signed out"
	case EventExpired:
		return "expired"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event reports a lifecycle transition to the UI. Notifications is set
// for EventSignedIn only.
type Event struct {
	Kind          EventKind
	Profile       *model.Profile
	Notifications *notify.Synchronizer
	Err           error
}

// Secrets is where the refresh cookie is kept between runs.
// *credential.Vault satisfies it.
type Secrets interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Pusher is the live channel. *socket.Hub satisfies it.
type Pusher interface {
	Subscribe(userID string, handler func(map[string]any)) (release func())
}

// Config wires a Manager.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Cache   store.ProfileCache
	Secrets Secrets

	// Pusher may be nil when no live channel is configured.
	Pusher Pusher

	// NotifyOptions are passed to every per-session synchronizer.
	NotifyOptions []notify.Option
}

// active is everything that lives exactly as long as one signed-in
// session.
type active struct {
	profile model.Profile
	sync    *notify.Synchronizer
	release func()
}

// Manager owns the session lifecycle: the access token, the refresh
// cookie, the cached profile and the per-session notification
// synchronizer. It is the gateway's Session.
type Manager struct {
	cfg     Config
	jar     *cookieStore
	gw      *gateway.Gateway
	client  *api.Client
	refresh *url.URL

	atSignIn atomic.Bool
	events   chan Event

	mu    sync.Mutex
	token string
	cur   *active
}

// NewManager builds the gateway and API client around a new Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Cache == nil || cfg.Secrets == nil {
		return nil, errors.New("session: cache and secrets are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	m := &Manager{
		cfg:    cfg,
		jar:    newCookieStore(),
		events: make(chan Event, 16),
	}

	m.gw = gateway.New(cfg.BaseURL, m, gateway.WithHTTPClient(&http.Client{
		Timeout: cfg.Timeout,
		Jar:     m.jar,
	}))
	m.client = api.NewClient(m.gw)

	u, err := url.Parse(m.gw.BaseURL() + "/auth/refresh")
	if err != nil {
		return nil, fmt.Errorf("parsing base url %q: %w", cfg.BaseURL, err)
	}
	m.refresh = u

	return m, nil
}

// Client returns the typed API client bound to this session.
func (m *Manager) Client() *api.Client {
	return m.client
}

// Gateway returns the request pipeline.
func (m *Manager) Gateway() *gateway.Gateway {
	return m.gw
}

// Events delivers lifecycle transitions.
func (m *Manager) Events() <-chan Event {
	return m.events
}

// AccessToken implements gateway.Session.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

// SetAccessToken implements gateway.Session. The refresh cookie may
// rotate with every refresh, so it is saved again.
func (m *Manager) SetAccessToken(token string) {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	m.saveCookie()
}

// AtSignIn implements gateway.Session.
func (m *Manager) AtSignIn() bool {
	return m.atSignIn.Load()
}

// SetAtSignIn records whether the sign-in screen is showing.
func (m *Manager) SetAtSignIn(v bool) {
	m.atSignIn.Store(v)
}

// Profile returns the signed-in user, if any.
func (m *Manager) Profile() (model.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return model.Profile{}, false
	}
	return m.cur.profile, true
}

// Notifications returns the current session's synchronizer, or nil when
// signed out.
func (m *Manager) Notifications() *notify.Synchronizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cur == nil {
		return nil
	}
	return m.cur.sync
}

// SignIn authenticates and starts a session.
func (m *Manager) SignIn(ctx context.Context, email, password string) (*model.Profile, error) {
	res, err := m.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	m.SetAccessToken(res.AccessToken)

	p := res.User
	if p.ID == "" {
		if id, err := userIDFromToken(res.AccessToken); err == nil {
			p.ID = id
		} else {
			log.Printf("session: %v", err)
		}
	}
	if p.Email == "" {
		p.Email = email
	}

	m.cacheProfile(ctx, p)
	return m.start(ctx, p), nil
}

// Resume restores the session saved by a previous run, if its refresh
// cookie is still accepted.
func (m *Manager) Resume(ctx context.Context) (*model.Profile, error) {
	saved, err := m.cfg.Secrets.Get(refreshCookieKey)
	if errors.Is(err, credential.ErrNotFound) || (err == nil && saved == "") {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("reading saved session: %w", err)
	}
	if err := m.jar.restore(m.refresh, saved); err != nil {
		return nil, err
	}

	token, err := m.gw.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("resuming session: %w", err)
	}

	p, err := m.cfg.Cache.GetProfile(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoProfile) {
			log.Printf("session: reading cached profile: %v", err)
		}
		p, err = m.client.Me(ctx)
		if err != nil {
			log.Printf("session: %v", err)
			id, idErr := userIDFromToken(token)
			if idErr != nil {
				return nil, fmt.Errorf("resuming session: %w", err)
			}
			p = &model.Profile{ID: id}
		}
		m.cacheProfile(ctx, *p)
	}

	return m.start(ctx, *p), nil
}

// SignOut ends the session at the user's request. The logout call is
// best effort; local state is always cleared.
func (m *Manager) SignOut(ctx context.Context) {
	if m.AccessToken() != "" {
		if err := m.client.Logout(ctx); err != nil {
			log.Printf("session: %v", err)
		}
	}
	m.teardown(EventSignedOut, nil, true)
}

// EndSession implements gateway.Session. It runs when the token can no
// longer be renewed.
func (m *Manager) EndSession(reason error) {
	log.Printf("session: ending session: %v", reason)
	m.teardown(EventExpired, reason, false)
}

// start installs a new active session and announces it.
func (m *Manager) start(ctx context.Context, p model.Profile) *model.Profile {
	s := notify.New(m.client, m.cfg.NotifyOptions...)

	uid := p.ID
	if uid == "" {
		if id, err := userIDFromToken(m.AccessToken()); err == nil {
			uid = id
		}
	}
	release := func() {}
	if m.cfg.Pusher != nil && uid != "" {
		release = m.cfg.Pusher.Subscribe(uid, s.OnLivePush)
	}

	m.mu.Lock()
	prev := m.cur
	m.cur = &active{profile: p, sync: s, release: release}
	m.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	m.atSignIn.Store(false)

	if err := s.ProbeUnreadCount(ctx); err != nil {
		log.Printf("session: %v", err)
	}

	m.emit(Event{Kind: EventSignedIn, Profile: &p, Notifications: s})
	return &p
}

// teardown clears every piece of session state. It is safe to call more
// than once; the event is only sent when a session was active, unless
// always is set.
func (m *Manager) teardown(kind EventKind, reason error, always bool) {
	m.mu.Lock()
	cur := m.cur
	m.cur = nil
	m.token = ""
	m.mu.Unlock()

	m.jar.reset()
	if err := m.cfg.Secrets.Delete(refreshCookieKey); err != nil {
		log.Printf("session: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := m.cfg.Cache.ClearProfiles(ctx); err != nil {
		log.Printf("session: clearing profile cache: %v", err)
	}

	if cur != nil {
		cur.stop()
	}
	m.atSignIn.Store(true)

	if cur != nil || always {
		m.emit(Event{Kind: kind, Err: reason})
	}
}

// stop releases the live subscription and discards the synchronizer. The
// synchronizer is closed in the background: its read-state worker may be
// the caller that triggered the teardown.
func (a *active) stop() {
	a.release()
	a.sync.Reset()
	go a.sync.Close()
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		log.Printf("session: event queue full, dropping %s", ev.Kind)
	}
}

func (m *Manager) cacheProfile(ctx context.Context, p model.Profile) {
	if p.ID == "" {
		return
	}
	if err := m.cfg.Cache.SaveProfile(ctx, p); err != nil {
		log.Printf("session: caching profile: %v", err)
	}
}

func (m *Manager) saveCookie() {
	v := m.jar.export(m.refresh)
	if v == "" {
		return
	}
	if err := m.cfg.Secrets.Set(refreshCookieKey, v); err != nil {
		log.Printf("session: saving refresh cookie: %v", err)
	}
}
