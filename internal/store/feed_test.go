package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/parkadmin/internal/domain"
)

func receive(t *testing.T, ch <-chan domain.ChangeEvent) domain.ChangeEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "feed closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
		return domain.ChangeEvent{}
	}
}

func TestSQLiteFeedDeliversChanges(t *testing.T) {
	d := openTestDB(t)
	store := NewRestrictionStore(d, SQLite)
	seed(t, store, "before", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feed := NewSQLiteFeed(d, 10*time.Millisecond, slog.Default())
	ch, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	seed(t, store, "a", nil)
	require.NoError(t, store.Update(ctx, "a", domain.ApprovalPatch(nil, time.Now())))
	require.NoError(t, store.Delete(ctx, "a"))

	assert.Equal(t, domain.ChangeEvent{Kind: domain.ChangeInsert, NewID: "a"}, receive(t, ch))
	assert.Equal(t, domain.ChangeEvent{Kind: domain.ChangeUpdate, OldID: "a", NewID: "a"}, receive(t, ch))
	assert.Equal(t, domain.ChangeEvent{Kind: domain.ChangeDelete, OldID: "a"}, receive(t, ch))
}

func TestSQLiteFeedClosesOnCancel(t *testing.T) {
	d := openTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := NewSQLiteFeed(d, 10*time.Millisecond, slog.Default()).Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not close")
	}
}
