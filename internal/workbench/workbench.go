package workbench

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// recordStore is the subset of store.RestrictionStore the workbench needs.
type recordStore interface {
	FetchAll(ctx context.Context) ([]domain.Restriction, error)
	Update(ctx context.Context, id string, patch domain.Patch) error
	Delete(ctx context.Context, id string) error
}

// Feed is a source of table change notifications.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error)
}

// Workbench serializes State transitions for one session. Store I/O never
// runs under the lock.
type Workbench struct {
	store  recordStore
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	watchers map[chan struct{}]struct{}
	closed   bool
}

func New(store recordStore, center domain.LatLng, logger *slog.Logger) *Workbench {
	return &Workbench{
		store:    store,
		now:      time.Now,
		logger:   logger.With("component", "workbench"),
		state:    Initial(center),
		watchers: make(map[chan struct{}]struct{}),
	}
}

func (w *Workbench) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Workbench) dispatch(m Msg) State {
	w.mu.Lock()
	w.state = Reduce(w.state, m)
	s := w.state
	for ch := range w.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	w.mu.Unlock()
	return s
}

// Watch returns a channel that receives a value after state changes.
// Notifications coalesce; call stop to unsubscribe. The channel is closed
// when the workbench is closed.
func (w *Workbench) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	w.watchers[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.watchers, ch)
			w.mu.Unlock()
		})
	}
}

// Close ends every live view by closing its Watch channel.
func (w *Workbench) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for ch := range w.watchers {
		close(ch)
		delete(w.watchers, ch)
	}
}

// Refresh re-fetches every record. A failed fetch leaves the previous
// records in place. Concurrent refreshes are not sequenced; the last to
// complete wins.
func (w *Workbench) Refresh(ctx context.Context) {
	records, err := w.store.FetchAll(ctx)
	if err != nil {
		w.logger.WarnContext(ctx, "fetch records failed", "error", err)
		return
	}
	w.dispatch(RecordsLoaded{Records: records})
}

// Select selects id. Unknown ids are accepted and leave the centre alone.
func (w *Workbench) Select(id string) State {
	return w.dispatch(Selected{ID: id})
}

// EditField stores value in the draft for id.
func (w *Workbench) EditField(id string, field domain.Field, value string) error {
	if field.Column() == "" {
		return fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
	}
	w.dispatch(FieldEdited{ID: id, Field: field, Value: value})
	return nil
}

// Approve writes the draft for id together with the approved status and the
// current time. The selection is cleared whether or not the write succeeds;
// the draft is kept. The returned error is informational.
func (w *Workbench) Approve(ctx context.Context, id string) error {
	draft := w.Snapshot().Drafts[id]
	err := w.store.Update(ctx, id, domain.ApprovalPatch(draft, w.now()))
	if err != nil {
		w.logger.ErrorContext(ctx, "approve failed", "id", id, "error", err)
	} else {
		w.logger.InfoContext(ctx, "restriction approved", "id", id)
	}
	w.dispatch(WriteSubmitted{ID: id})
	w.Refresh(ctx)
	return err
}

// Delete removes id. The selection is cleared whether or not the delete
// succeeds.
func (w *Workbench) Delete(ctx context.Context, id string) error {
	err := w.store.Delete(ctx, id)
	if err != nil {
		w.logger.ErrorContext(ctx, "delete failed", "id", id, "error", err)
	} else {
		w.logger.InfoContext(ctx, "restriction deleted", "id", id)
	}
	w.dispatch(WriteSubmitted{ID: id})
	w.Refresh(ctx)
	return err
}

// OnExternalChange reconciles a change notification: the selection is
// dropped first if the event touches it, then everything is re-fetched.
func (w *Workbench) OnExternalChange(ctx context.Context, ev domain.ChangeEvent) {
	w.logger.DebugContext(ctx, "change received", "kind", ev.Kind, "id", ev.AffectedID())
	w.dispatch(ChangeReceived{Event: ev})
	w.Refresh(ctx)
}

// Run performs the initial fetch and then applies change notifications
// until ctx ends or the feed closes.
func (w *Workbench) Run(ctx context.Context, feed Feed) error {
	events, err := feed.Subscribe(ctx)
	if err != nil {
		w.Refresh(ctx)
		return fmt.Errorf("subscribe to changes: %w", err)
	}
	w.Refresh(ctx)

	for ev := range events {
		w.OnExternalChange(ctx, ev)
	}
	if ctx.Err() != nil {
		return nil
	}
	return fmt.Errorf("change feed closed")
}
