package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu       sync.Mutex
	list     []map[string]any
	listErr  error
	count    int
	countErr error
	markErr  error
	marked   []string
	calls    int

	// gate, when set, blocks ListNotifications until closed.
	gate chan struct{}
	// markGate, when set, blocks MarkNotificationRead until closed or
	// the call is cancelled.
	markGate chan struct{}
}

func (f *fakeBackend) ListNotifications(ctx context.Context) ([]map[string]any, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.list, f.listErr
}

func (f *fakeBackend) UnreadCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeBackend) MarkNotificationRead(ctx context.Context, id string) error {
	f.mu.Lock()
	f.marked = append(f.marked, id)
	gate, err := f.markGate, f.markErr
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) markedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.marked...)
}

func newSync(t *testing.T, b Backend) *Synchronizer {
	t.Helper()
	s := New(b, WithRemoteTimeout(time.Second))
	t.Cleanup(s.Close)
	return s
}

func TestSynchronizer_PushBeforeLoadOnlyCounts(t *testing.T) {
	s := newSync(t, &fakeBackend{})

	s.OnLivePush(map[string]any{"id": "p1", "title": "Hi", "read": false})

	snap := s.Snapshot()
	assert.Equal(t, 1, snap.Unread)
	assert.Empty(t, snap.Notifications)
	assert.False(t, snap.Loaded)
}

func TestSynchronizer_ReadPushBeforeLoadNotCounted(t *testing.T) {
	s := newSync(t, &fakeBackend{})
	s.OnLivePush(map[string]any{"id": "p1", "read": true})
	assert.Equal(t, 0, s.UnreadCount())
}

func TestSynchronizer_LoadCountsUnread(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{
		{"id": "1", "read": false},
		{"id": "2", "read": true},
	}}
	s := newSync(t, b)

	require.NoError(t, s.Load(context.Background(), false))

	snap := s.Snapshot()
	assert.Len(t, snap.Notifications, 2)
	assert.Equal(t, 1, snap.Unread)
	assert.True(t, snap.Loaded)
	assert.False(t, snap.Loading)
	assert.Equal(t, StateReady, snap.State)
}

func TestSynchronizer_LoadRecomputesOverPushes(t *testing.T) {
	b := &fakeBackend{count: 4, list: []map[string]any{{"id": "1"}, {"id": "2", "read": true}}}
	s := newSync(t, b)

	require.NoError(t, s.ProbeUnreadCount(context.Background()))
	s.OnLivePush(map[string]any{"id": "p1"})
	assert.Equal(t, 5, s.UnreadCount())

	require.NoError(t, s.Load(context.Background(), false))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestSynchronizer_PushDuringFirstLoad(t *testing.T) {
	b := &fakeBackend{
		list: []map[string]any{
			{"id": "1", "createdAt": "2025-03-01T10:00:00Z"},
			{"id": "2", "createdAt": "2025-03-01T09:00:00Z", "read": true},
		},
		gate: make(chan struct{}),
	}
	s := newSync(t, b)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), false) }()
	require.Eventually(t, func() bool { return s.Snapshot().Loading }, time.Second, 5*time.Millisecond)

	s.OnLivePush(map[string]any{"id": "p1", "title": "Request"})

	during := s.Snapshot()
	assert.Equal(t, 1, during.Unread)
	assert.Empty(t, during.Notifications)
	assert.False(t, during.Loaded)

	close(b.gate)
	require.NoError(t, <-done)

	// The loaded list is authoritative; a push the server did not return
	// is not listed and no longer counted.
	after := s.Snapshot()
	assert.True(t, after.Loaded)
	assert.Equal(t, []string{"1", "2"}, ids(after.Notifications))
	assert.Equal(t, 1, after.Unread)
	assert.Equal(t, countUnread(after.Notifications), after.Unread)
}

func TestSynchronizer_ForcedReloadKeepsRecordsWithoutID(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{
		{"type": "general", "title": "Welcome", "message": "Hello"},
		{"type": "payment", "title": "Paid", "read": false},
	}}
	s := newSync(t, b)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, true))
	first := ids(s.Snapshot().Notifications)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Load(ctx, true))
	}

	snap := s.Snapshot()
	assert.Len(t, snap.Notifications, 2)
	assert.ElementsMatch(t, first, ids(snap.Notifications))
	assert.Equal(t, 2, snap.Unread)
}

func TestSynchronizer_LoadOnlyOnceUnlessForced(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}}}
	s := newSync(t, b)
	ctx := context.Background()

	require.NoError(t, s.Load(ctx, false))
	require.NoError(t, s.Load(ctx, false))
	assert.Equal(t, 1, b.calls)

	require.NoError(t, s.Load(ctx, true))
	assert.Equal(t, 2, b.calls)
	assert.Len(t, s.Snapshot().Notifications, 1)
}

func TestSynchronizer_LoadFailureLeavesStateUntouched(t *testing.T) {
	b := &fakeBackend{listErr: errors.New("boom"), count: 2}
	s := newSync(t, b)
	require.NoError(t, s.ProbeUnreadCount(context.Background()))

	err := s.Load(context.Background(), false)
	require.Error(t, err)

	snap := s.Snapshot()
	assert.False(t, snap.Loaded)
	assert.False(t, snap.Loading)
	assert.Equal(t, StateIdle, snap.State)
	assert.Equal(t, 2, snap.Unread)

	b.mu.Lock()
	b.listErr = nil
	b.list = []map[string]any{{"id": "1"}}
	b.mu.Unlock()
	require.NoError(t, s.Load(context.Background(), false))
	assert.True(t, s.Snapshot().Loaded)
}

func TestSynchronizer_ProbeIgnoredAfterLoad(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}}, count: 9}
	s := newSync(t, b)

	require.NoError(t, s.Load(context.Background(), false))
	require.NoError(t, s.ProbeUnreadCount(context.Background()))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestSynchronizer_PushAfterLoadMerges(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "x", "title": "Original", "createdAt": "2025-01-01T00:00:00Z"}}}
	s := newSync(t, b)
	require.NoError(t, s.Load(context.Background(), false))

	s.OnLivePush(map[string]any{"id": "x", "title": "Updated"})

	snap := s.Snapshot()
	require.Len(t, snap.Notifications, 1)
	assert.Equal(t, "Updated", snap.Notifications[0].Title)
	assert.Equal(t, 1, snap.Unread)

	s.OnLivePush(map[string]any{"id": "y", "createdAt": "2025-02-01T00:00:00Z"})
	snap = s.Snapshot()
	require.Len(t, snap.Notifications, 2)
	assert.Equal(t, "y", snap.Notifications[0].ID)
	assert.Equal(t, 2, snap.Unread)
}

func TestSynchronizer_MarkAllAsRead(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3", "read": true}}}
	s := newSync(t, b)
	require.NoError(t, s.Load(context.Background(), false))
	require.Equal(t, 2, s.UnreadCount())

	s.MarkAllAsRead()

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Unread)
	for _, n := range snap.Notifications {
		assert.True(t, n.Read, n.ID)
	}
	assert.Empty(t, b.markedIDs())
}

func TestSynchronizer_MarkAllAsReadBeforeLoad(t *testing.T) {
	s := newSync(t, &fakeBackend{count: 3})
	require.NoError(t, s.ProbeUnreadCount(context.Background()))
	s.OnLivePush(map[string]any{"id": "p"})

	s.MarkAllAsRead()
	assert.Equal(t, 0, s.UnreadCount())
}

func TestSynchronizer_MarkAsRead(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}, {"id": "2"}}}
	s := New(b)
	require.NoError(t, s.Load(context.Background(), false))

	s.MarkAsRead("1", true)
	s.MarkAsRead("1", true)
	s.MarkAsRead("missing", false)
	assert.Equal(t, 1, s.UnreadCount())

	s.Close()
	assert.Equal(t, []string{"1", "1"}, b.markedIDs())
}

func TestSynchronizer_MarkAsReadFailureKeepsLocalState(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}}, markErr: errors.New("offline")}
	s := New(b)
	require.NoError(t, s.Load(context.Background(), false))

	s.MarkAsRead("1", true)
	s.Close()

	assert.Equal(t, []string{"1"}, b.markedIDs())
	snap := s.Snapshot()
	assert.True(t, snap.Notifications[0].Read)
	assert.Equal(t, 0, snap.Unread)
}

func TestSynchronizer_ResetDiscardsInFlightLoad(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}}, gate: make(chan struct{})}
	s := newSync(t, b)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background(), false) }()

	require.Eventually(t, func() bool { return s.Snapshot().Loading }, time.Second, 5*time.Millisecond)
	s.Reset()
	close(b.gate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Empty(t, snap.Notifications)
	assert.False(t, snap.Loaded)
	assert.Equal(t, StateSignedOut, snap.State)
}

func TestSynchronizer_ResetAbandonsQueuedReads(t *testing.T) {
	b := &fakeBackend{
		list:     []map[string]any{{"id": "1"}, {"id": "2"}, {"id": "3"}},
		markGate: make(chan struct{}),
	}
	s := New(b)
	require.NoError(t, s.Load(context.Background(), false))

	s.MarkAsRead("1", true)
	require.Eventually(t, func() bool { return len(b.markedIDs()) == 1 }, time.Second, 5*time.Millisecond)
	s.MarkAsRead("2", true)
	s.MarkAsRead("3", true)

	s.Reset()
	s.Close()

	assert.Equal(t, []string{"1"}, b.markedIDs())
}

func TestSynchronizer_SignedOutIgnoresEvents(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}}}
	s := newSync(t, b)
	s.Reset()

	s.OnLivePush(map[string]any{"id": "p"})
	require.NoError(t, s.Load(context.Background(), false))
	assert.Equal(t, 0, s.UnreadCount())
	assert.Equal(t, 0, b.calls)
}

func TestSynchronizer_SubscribeDeliversLatest(t *testing.T) {
	b := &fakeBackend{list: []map[string]any{{"id": "1"}, {"id": "2"}}}
	s := newSync(t, b)

	ch, unsubscribe := s.Subscribe()
	first := <-ch
	assert.False(t, first.Loaded)

	require.NoError(t, s.Load(context.Background(), false))

	var last Snapshot
	require.Eventually(t, func() bool {
		select {
		case last = <-ch:
		default:
		}
		return last.Loaded
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, last.Unread)

	unsubscribe()
	unsubscribe()
	_, open := <-ch
	assert.False(t, open)
}

func TestSynchronizer_CloseClosesSubscriptions(t *testing.T) {
	s := New(&fakeBackend{})
	ch, unsubscribe := s.Subscribe()
	<-ch

	s.Close()
	_, open := <-ch
	assert.False(t, open)
	unsubscribe()
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "state(9)", State(9).String())
}
