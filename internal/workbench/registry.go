package workbench

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// DefaultIdleTimeout is how long a workbench with no live view survives
// without a request.
const DefaultIdleTimeout = 30 * time.Minute

type entry struct {
	wb         *Workbench
	cancel     context.CancelFunc
	done       chan struct{}
	watchers   int
	lastActive time.Time
}

// Registry owns one Workbench per admin session together with its change
// subscription. The subscription lives from Open until Close, release of the
// last live view, an idle sweep, or CloseAll.
type Registry struct {
	store  recordStore
	feed   Feed
	center domain.LatLng
	idle   time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

type RegistryOption func(*Registry)

// WithIdleTimeout sets how long a workbench with no attached live view may
// go untouched before Sweep closes it.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.idle = d
		}
	}
}

func NewRegistry(store recordStore, feed Feed, center domain.LatLng, logger *slog.Logger, opts ...RegistryOption) *Registry {
	r := &Registry{
		store:   store,
		feed:    feed,
		center:  center,
		idle:    DefaultIdleTimeout,
		now:     time.Now,
		logger:  logger.With("component", "workbench_registry"),
		entries: make(map[string]*entry),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open returns the session's workbench, creating it and starting its
// subscription on first use.
func (r *Registry) Open(sessionID string) *Workbench {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.openLocked(sessionID).wb
}

func (r *Registry) openLocked(sessionID string) *entry {
	if e, ok := r.entries[sessionID]; ok {
		e.lastActive = r.now()
		return e
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &entry{
		wb:         New(r.store, r.center, r.logger.With("session", sessionID)),
		cancel:     cancel,
		done:       make(chan struct{}),
		lastActive: r.now(),
	}
	r.entries[sessionID] = e

	go func() {
		defer close(e.done)
		if err := e.wb.Run(ctx, r.feed); err != nil {
			r.logger.Warn("workbench subscription ended", "session", sessionID, "error", err)
		}
	}()
	r.logger.Info("workbench opened", "session", sessionID)
	return e
}

// Get returns the workbench for sessionID if one is open.
func (r *Registry) Get(sessionID string) (*Workbench, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		return nil, false
	}
	e.lastActive = r.now()
	return e.wb, true
}

// Attach registers a live view on the session's workbench, opening it if
// needed. The returned release func closes the workbench once no live views
// remain.
func (r *Registry) Attach(sessionID string) (*Workbench, func()) {
	r.mu.Lock()
	e := r.openLocked(sessionID)
	e.watchers++
	r.mu.Unlock()

	var once sync.Once
	return e.wb, func() {
		once.Do(func() { r.release(sessionID, e) })
	}
}

func (r *Registry) release(sessionID string, e *entry) {
	r.mu.Lock()
	e.watchers--
	e.lastActive = r.now()
	last := e.watchers <= 0 && r.entries[sessionID] == e
	if last {
		delete(r.entries, sessionID)
	}
	r.mu.Unlock()

	if last {
		r.stop(sessionID, e)
	}
}

// Close tears down the session's workbench, discarding its drafts.
func (r *Registry) Close(sessionID string) {
	r.mu.Lock()
	e, ok := r.entries[sessionID]
	delete(r.entries, sessionID)
	r.mu.Unlock()

	if ok {
		r.stop(sessionID, e)
	}
}

// Sweep closes every workbench that has no live view and has not been
// touched within the idle timeout as of now. It returns how many it closed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	expired := make(map[string]*entry)
	for id, e := range r.entries {
		if e.watchers <= 0 && now.Sub(e.lastActive) >= r.idle {
			expired[id] = e
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for id, e := range expired {
		r.logger.Info("workbench idle", "session", id, "last_active", e.lastActive)
		r.stop(id, e)
	}
	return len(expired)
}

// SweepEvery runs Sweep on every tick until ctx ends.
func (r *Registry) SweepEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}

// CloseAll tears down every workbench and waits for subscriptions to end.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for id, e := range entries {
		r.stop(id, e)
	}
}

// Len reports the number of open workbenches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry) stop(sessionID string, e *entry) {
	e.cancel()
	<-e.done
	e.wb.Close()
	r.logger.Info("workbench closed", "session", sessionID)
}
