package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event names on the live channel.
const (
	EventSubscribe    = "owner:subscribe"
	EventUnsubscribe  = "owner:unsubscribe"
	EventNotification = "owner:notification"
)

const writeTimeout = 5 * time.Second

// Handler receives one decoded notification payload.
type Handler = func(payload map[string]any)

// envelope is the frame format in both directions.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type subscription struct {
	UserID string `json:"userId"`
}

// Hub multiplexes one websocket connection between any number of
// subscribers. Subscriptions are reference counted per user id, so the
// server sees a single subscribe for the first subscriber and a single
// unsubscribe after the last release. The connection is dialed on the
// first Subscribe and re-established after failures until Close.
type Hub struct {
	url    string
	dialer *websocket.Dialer
	token  func() string
	delay  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	conn     *websocket.Conn
	started  bool
	refs     map[string]int
	handlers map[string]map[int]Handler
	nextID   int
}

// Option customizes a Hub.
type Option func(*Hub)

// WithReconnectDelay sets the fixed wait between connection attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(h *Hub) { h.delay = d }
}

// WithTokenSource attaches a bearer token to every dial.
func WithTokenSource(fn func() string) Option {
	return func(h *Hub) { h.token = fn }
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(h *Hub) { h.dialer = d }
}

// NewHub creates a hub for the websocket endpoint at url. No connection
// is made until the first Subscribe.
func NewHub(url string, opts ...Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		url:      url,
		dialer:   websocket.DefaultDialer,
		delay:    5 * time.Second,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		refs:     make(map[string]int),
		handlers: make(map[string]map[int]Handler),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers handler for pushes addressed to userID. The
// returned release func drops the registration; calling it again is a
// no-op.
func (h *Hub) Subscribe(userID string, handler Handler) (release func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	if h.handlers[userID] == nil {
		h.handlers[userID] = make(map[int]Handler)
	}
	h.handlers[userID][id] = handler
	h.refs[userID]++

	if h.refs[userID] == 1 {
		h.sendLocked(EventSubscribe, userID)
	}
	if !h.started && h.ctx.Err() == nil {
		h.started = true
		go h.run()
	}

	var once sync.Once
	return func() {
		once.Do(func() { h.release(userID, id) })
	}
}

func (h *Hub) release(userID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.handlers[userID], id)
	h.refs[userID]--
	if h.refs[userID] > 0 {
		return
	}
	delete(h.refs, userID)
	delete(h.handlers, userID)
	h.sendLocked(EventUnsubscribe, userID)
}

// Subscribed reports how many subscribers hold userID.
func (h *Hub) Subscribed(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs[userID]
}

// Close stops the connection loop and drops the connection. Registered
// handlers are never called afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	h.cancel()
	started := h.started
	if h.conn != nil {
		h.conn.Close()
	}
	h.mu.Unlock()

	if started {
		<-h.done
	}
}

// sendLocked writes one frame if connected. Frames sent while
// disconnected are not queued: the subscribe set is replayed on every
// reconnect. Callers hold h.mu.
func (h *Hub) sendLocked(event, userID string) {
	if h.conn == nil {
		return
	}
	data, err := json.Marshal(subscription{UserID: userID})
	if err != nil {
		log.Printf("socket: encoding %s: %v", event, err)
		return
	}
	_ = h.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := h.conn.WriteJSON(envelope{Event: event, Data: data}); err != nil {
		log.Printf("socket: sending %s for %s: %v", event, userID, err)
	}
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		conn, err := h.dial()
		if err != nil {
			log.Printf("socket: connecting to %s: %v", h.url, err)
		} else {
			err = h.serve(conn)
			if h.ctx.Err() != nil {
				return
			}
			log.Printf("socket: connection lost: %v", err)
		}

		select {
		case <-h.ctx.Done():
			return
		case <-time.After(h.delay):
		}
	}
}

func (h *Hub) dial() (*websocket.Conn, error) {
	header := http.Header{}
	if h.token != nil {
		if tok := h.token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}
	conn, resp, err := h.dialer.DialContext(h.ctx, h.url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, err
	}
	return conn, nil
}

// serve attaches conn, replays the subscribe set and reads until the
// connection fails.
func (h *Hub) serve(conn *websocket.Conn) error {
	h.mu.Lock()
	if h.ctx.Err() != nil {
		h.mu.Unlock()
		conn.Close()
		return h.ctx.Err()
	}
	h.conn = conn
	for userID := range h.refs {
		h.sendLocked(EventSubscribe, userID)
	}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.conn == conn {
			h.conn = nil
		}
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		if env.Event != EventNotification {
			continue
		}

		var payload map[string]any
		if err := json.Unmarshal(env.Data, &payload); err != nil || payload == nil {
			log.Printf("socket: dropping malformed notification: %v", err)
			continue
		}
		h.dispatch(payload)
	}
}

// dispatch fans payload out to the handlers of the addressed user, or to
// every handler when the payload names none.
func (h *Hub) dispatch(payload map[string]any) {
	target := recipient(payload)

	h.mu.Lock()
	var hs []Handler
	for userID, byID := range h.handlers {
		if target != "" && userID != target {
			continue
		}
		for _, fn := range byID {
			hs = append(hs, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range hs {
		fn(payload)
	}
}

func recipient(p map[string]any) string {
	for _, k := range []string{"userId", "recipientId", "ownerId"} {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
