package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/bikerent/internal/notify"
)

// loadTimeout is the maximum time allowed for a single load.
const loadTimeout = 30 * time.Second

// SnapshotMsg is a tea.Msg carrying the synchronizer's latest view.
type SnapshotMsg struct {
	Snapshot notify.Snapshot

	// Feed identifies the poller that produced the message, so a message
	// from a previous session can be told apart.
	Feed *Poller
}

// LoadResultMsg is a tea.Msg sent when a load attempt completes.
type LoadResultMsg struct {
	Err  error
	Feed *Poller
}

// Poller drives one session's synchronizer from the UI: it performs the
// lazy first load, periodic forced reloads and on-demand reloads, and
// bridges snapshots into the Bubble Tea runtime.
type Poller struct {
	sync     *notify.Synchronizer
	interval time.Duration

	snaps       <-chan notify.Snapshot
	unsubscribe func()

	resultCh  chan LoadResultMsg
	triggerCh chan struct{}
	stopCh    chan struct{}

	mu      gosync.Mutex
	running bool
	stopped bool
}

// New creates a poller for s. A zero interval disables periodic reloads.
func New(s *notify.Synchronizer, interval time.Duration) *Poller {
	snaps, unsubscribe := s.Subscribe()
	return &Poller{
		sync:        s,
		interval:    interval,
		snaps:       snaps,
		unsubscribe: unsubscribe,
		resultCh:    make(chan LoadResultMsg, 16),
		triggerCh:   make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
	}
}

// Synchronizer returns the synchronizer this poller drives.
func (p *Poller) Synchronizer() *notify.Synchronizer {
	return p.sync
}

// Start launches the load loop. The first load runs at once and only
// fetches if nothing is loaded yet. The returned command waits for the
// next snapshot.
func (p *Poller) Start() tea.Cmd {
	p.mu.Lock()
	if p.running || p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	go p.loop()

	return tea.Batch(p.WaitForSnapshot(), p.WaitForNextResult())
}

// Stop halts the load loop and detaches from the synchronizer.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.unsubscribe()
}

// Reload triggers an immediate forced reload.
func (p *Poller) Reload() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
		// A reload is already pending.
	}
}

func (p *Poller) loop() {
	p.load(false)

	var tick <-chan time.Time
	if p.interval > 0 {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-p.stopCh:
			return
		case <-tick:
			p.load(true)
		case <-p.triggerCh:
			p.load(true)
		}
	}
}

func (p *Poller) load(force bool) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()

	err := p.sync.Load(ctx, force)

	select {
	case p.resultCh <- LoadResultMsg{Err: err, Feed: p}:
	default:
		// Drop if the UI is not keeping up.
	}
}

// WaitForSnapshot returns a tea.Cmd that waits for the next snapshot. It
// returns nil once the poller is stopped.
func (p *Poller) WaitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-p.snaps
		if !ok {
			return nil
		}
		return SnapshotMsg{Snapshot: snap, Feed: p}
	}
}

// WaitForNextResult returns a tea.Cmd that waits for the next load
// result. It returns nil once the poller is stopped.
func (p *Poller) WaitForNextResult() tea.Cmd {
	return func() tea.Msg {
		select {
		case res := <-p.resultCh:
			return res
		case <-p.stopCh:
			return nil
		}
	}
}
