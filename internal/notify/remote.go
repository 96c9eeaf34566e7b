package notify

import (
	"context"
	"log"
	"sync"
	"time"
)

// remoteSync is the second half of an optimistic read: it persists read
// state to the backend in the background. Calls are best effort; a
// failure is logged and dropped, and nothing survives Close. After
// abandon, queued calls are skipped and one in flight is cancelled, so a
// finished session never talks to the backend with a later session's token.
type remoteSync struct {
	backend Backend
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	queue  chan string
	done   chan struct{}
}

func newRemoteSync(b Backend, size int, timeout time.Duration) *remoteSync {
	if size < 1 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &remoteSync{
		backend: b,
		timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
		queue:   make(chan string, size),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *remoteSync) run() {
	defer close(r.done)
	for id := range r.queue {
		if r.ctx.Err() != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		if err := r.backend.MarkNotificationRead(ctx, id); err != nil {
			log.Printf("failed to persist read state for notification %s: %v", id, err)
		}
		cancel()
	}
}

// enqueue schedules a read-state call without blocking the caller.
func (r *remoteSync) enqueue(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	select {
	case r.queue <- id:
	default:
		log.Printf("read-state queue full, dropping notification %s", id)
	}
}

// abandon drops every queued call and cancels the one in flight. It does
// not wait, since it may run on the worker itself.
func (r *remoteSync) abandon() {
	r.cancel()
	r.stop()
}

// close stops accepting calls and waits for queued ones to finish.
func (r *remoteSync) close() {
	r.stop()
	<-r.done
	r.cancel()
}

func (r *remoteSync) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
}
