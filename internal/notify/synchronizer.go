package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nhle/bikerent/internal/model"
)

// Backend is the part of the marketplace API the synchronizer needs.
// *api.Client satisfies it.
type Backend interface {
	ListNotifications(ctx context.Context) ([]map[string]any, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// State is the synchronizer's position in the session lifecycle.
type State int

const (
	StateSignedOut State = iota
	StateIdle
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateSignedOut:
		return "signed out"
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Snapshot is a consistent copy of the synchronizer's view.
type Snapshot struct {
	Notifications []model.Notification
	Unread        int
	Loading       bool
	Loaded        bool
	State         State
}

// Synchronizer holds one session's notification collection and unread
// counter. It reconciles the bulk load, live pushes and read-state
// mutations into one list ordered newest first.
//
// Before the first successful load the itemized list stays empty: pushes
// are only counted, on top of the last probed server count. Once loaded,
// the counter always equals the number of unread records.
type Synchronizer struct {
	backend Backend
	remote  *remoteSync

	mu      sync.Mutex
	items   []model.Notification
	loaded  bool
	loading int
	probed  int
	pushed  int
	unread  int
	state   State
	gen     uint64
	closed  bool

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
}

// Option customizes a Synchronizer.
type Option func(*options)

type options struct {
	remoteTimeout time.Duration
	queueSize     int
}

// WithRemoteTimeout bounds each best-effort read-state call.
func WithRemoteTimeout(d time.Duration) Option {
	return func(o *options) { o.remoteTimeout = d }
}

// WithQueueSize sets how many read-state calls may wait to be sent.
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// New creates a synchronizer for a freshly signed-in session.
func New(backend Backend, opts ...Option) *Synchronizer {
	o := options{remoteTimeout: 10 * time.Second, queueSize: 64}
	for _, opt := range opts {
		opt(&o)
	}

	return &Synchronizer{
		backend: backend,
		remote:  newRemoteSync(backend, o.queueSize, o.remoteTimeout),
		state:   StateIdle,
		subs:    make(map[int]chan Snapshot),
	}
}

// Load fetches the full notification list and merges it into the
// collection. It is a no-op once loaded unless force is set. On failure
// the collection is left untouched and the error is returned; the caller
// may retry.
func (s *Synchronizer) Load(ctx context.Context, force bool) error {
	gen, ok := s.beginLoad(force)
	if !ok {
		return nil
	}
	defer s.endLoad()

	raw, err := s.backend.ListNotifications(ctx)
	if err != nil {
		log.Printf("failed to load notifications: %v", err)
		return fmt.Errorf("loading notifications: %w", err)
	}

	incoming := make([]model.Notification, 0, len(raw))
	for _, p := range raw {
		incoming = append(incoming, FromListPayload(p))
	}

	s.mu.Lock()
	if s.gen == gen {
		s.items = Merge(s.items, incoming)
		s.loaded = true
		s.state = StateReady
		s.pushed = 0
		s.probed = 0
		s.recount()
	}
	s.mu.Unlock()

	return nil
}

// beginLoad marks a load in progress. It reports false when nothing needs
// loading.
func (s *Synchronizer) beginLoad(force bool) (uint64, bool) {
	s.mu.Lock()
	if s.state == StateSignedOut || (s.loaded && !force) {
		s.mu.Unlock()
		return 0, false
	}
	s.loading++
	if !s.loaded {
		s.state = StateLoading
	}
	gen := s.gen
	s.mu.Unlock()

	s.publish()
	return gen, true
}

// endLoad releases the loading flag on every path.
func (s *Synchronizer) endLoad() {
	s.mu.Lock()
	s.loading--
	if s.loading == 0 && !s.loaded && s.state == StateLoading {
		s.state = StateIdle
	}
	s.mu.Unlock()

	s.publish()
}

// ProbeUnreadCount fetches only the server's unread counter. It matters
// until the first load lands; afterwards the collection is authoritative
// and the result is ignored.
func (s *Synchronizer) ProbeUnreadCount(ctx context.Context) error {
	n, err := s.backend.UnreadCount(ctx)
	if err != nil {
		log.Printf("failed to probe unread count: %v", err)
		return fmt.Errorf("probing unread count: %w", err)
	}

	s.mu.Lock()
	changed := false
	if !s.loaded && s.state != StateSignedOut {
		s.probed = n
		s.recount()
		changed = true
	}
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	return nil
}

// MarkAsRead marks one record read locally. When callAPI is set the
// change is also queued for a best-effort backend call. Local state is
// authoritative for the session: a failed call is logged and never rolls
// the record back.
func (s *Synchronizer) MarkAsRead(id string, callAPI bool) {
	s.mu.Lock()
	if s.state == StateSignedOut {
		s.mu.Unlock()
		return
	}
	changed := false
	for i := range s.items {
		if s.items[i].ID == id && !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	s.recount()
	s.mu.Unlock()

	if changed {
		s.publish()
	}
	if callAPI {
		s.remote.enqueue(id)
	}
}

// MarkAllAsRead marks every record read and zeroes the counter.
func (s *Synchronizer) MarkAllAsRead() {
	s.mu.Lock()
	if s.state == StateSignedOut {
		s.mu.Unlock()
		return
	}
	changed := s.unread != 0
	for i := range s.items {
		if !s.items[i].Read {
			s.items[i].Read = true
			changed = true
		}
	}
	s.probed = 0
	s.pushed = 0
	s.recount()
	s.mu.Unlock()

	if changed {
		s.publish()
	}
}

// OnLivePush handles a payload from the live channel. An unread record is
// counted at once; it joins the list only once the bulk load has landed,
// so the list never shows a partial view.
func (s *Synchronizer) OnLivePush(payload map[string]any) {
	n := FromPayload(payload)

	s.mu.Lock()
	if s.state == StateSignedOut {
		s.mu.Unlock()
		return
	}
	if s.loaded {
		s.items = Merge(s.items, []model.Notification{n})
	} else if !n.Read {
		s.pushed++
	}
	s.recount()
	s.mu.Unlock()

	s.publish()
}

// recount derives the unread counter. Callers hold s.mu.
func (s *Synchronizer) recount() {
	if s.loaded {
		s.unread = countUnread(s.items)
		return
	}
	s.unread = s.probed + s.pushed
}

// Snapshot returns a copy of the current view.
func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Notification, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Notifications: items,
		Unread:        s.unread,
		Loading:       s.loading > 0,
		Loaded:        s.loaded,
		State:         s.state,
	}
}

// UnreadCount returns the current unread counter.
func (s *Synchronizer) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Reset discards all accumulated state. A load still in flight is
// dropped when it returns, and read-state calls not yet sent are
// abandoned.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.items = nil
	s.loaded = false
	s.probed = 0
	s.pushed = 0
	s.unread = 0
	s.state = StateSignedOut
	s.gen++
	s.mu.Unlock()

	s.remote.abandon()
	s.publish()
}

// Subscribe returns a channel that receives a snapshot after every
// change, starting with the current one. Slow readers only see the latest
// snapshot. The returned func unsubscribes and closes the channel.
func (s *Synchronizer) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.Snapshot()
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if _, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(ch)
			}
		})
	}
}

// publish delivers the latest snapshot to every subscriber. The snapshot
// is taken under subMu so a later publish never loses to an earlier one.
func (s *Synchronizer) publish() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	if len(s.subs) == 0 {
		return
	}
	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Close stops the read-state worker after it drains queued calls and
// closes every subscription.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.remote.close()

	s.subMu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.subMu.Unlock()
}
