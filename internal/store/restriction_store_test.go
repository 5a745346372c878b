package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/parkadmin/internal/db"
	"github.com/vbonduro/parkadmin/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func seed(t *testing.T, s *RestrictionStore, id string, fields map[domain.Field]string) {
	t.Helper()
	_, err := s.Insert(context.Background(), domain.Restriction{
		ID:       id,
		Position: domain.LatLng{Lat: 51.5, Lng: -0.12},
		Fields:   fields,
	})
	require.NoError(t, err)
}

func TestRestrictionStoreFetchAll(t *testing.T) {
	store := NewRestrictionStore(openTestDB(t), SQLite)
	ctx := context.Background()

	seed(t, store, "a", map[domain.Field]string{domain.FieldRoadName: "High St", domain.FieldZone: "K"})
	seed(t, store, "b", nil)

	all, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "High St", all[0].Value(domain.FieldRoadName))
	assert.Equal(t, "K", all[0].Value(domain.FieldZone))
	assert.Equal(t, "", all[0].Value(domain.FieldNotes))
	assert.Equal(t, domain.StatusPending, all[0].Status)
	assert.Nil(t, all[0].ApprovedAt)
	assert.InDelta(t, 51.5, all[0].Position.Lat, 1e-9)

	assert.Equal(t, "b", all[1].ID)
	assert.Empty(t, all[1].Fields)
}

func TestRestrictionStoreFetchAllEmpty(t *testing.T) {
	store := NewRestrictionStore(openTestDB(t), SQLite)

	all, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRestrictionStoreApprove(t *testing.T) {
	store := NewRestrictionStore(openTestDB(t), SQLite)
	ctx := context.Background()
	seed(t, store, "a", map[domain.Field]string{domain.FieldRoadName: "High St"})

	now := time.Date(2024, 5, 1, 9, 30, 0, 250_000_000, time.UTC)
	patch := domain.ApprovalPatch(domain.Draft{domain.FieldNotes: "checked"}, now)
	require.NoError(t, store.Update(ctx, "a", patch))

	all, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.StatusApproved, all[0].Status)
	assert.Equal(t, "checked", all[0].Value(domain.FieldNotes))
	assert.Equal(t, "High St", all[0].Value(domain.FieldRoadName))
	require.NotNil(t, all[0].ApprovedAt)
	assert.True(t, now.Equal(*all[0].ApprovedAt))
}

func TestRestrictionStoreUpdateMissing(t *testing.T) {
	store := NewRestrictionStore(openTestDB(t), SQLite)

	err := store.Update(context.Background(), "nope", domain.ApprovalPatch(nil, time.Now()))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRestrictionStoreUpdateEmptyPatch(t *testing.T) {
	store := NewRestrictionStore(openTestDB(t), SQLite)
	seed(t, store, "a", nil)

	assert.Error(t, store.Update(context.Background(), "a", domain.Patch{}))
}

func TestRestrictionStoreDelete(t *testing.T) {
	store := NewRestrictionStore(openTestDB(t), SQLite)
	ctx := context.Background()
	seed(t, store, "a", nil)
	seed(t, store, "b", nil)

	require.NoError(t, store.Delete(ctx, "a"))

	all, err := store.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)

	assert.ErrorIs(t, store.Delete(ctx, "a"), domain.ErrNotFound)
}

func TestRoleStore(t *testing.T) {
	d := openTestDB(t)
	roles := NewRoleStore(d, SQLite)
	ctx := context.Background()

	_, err := roles.RoleOf(ctx, "g-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p := domain.Principal{ID: "g-1", Email: "a@example.com"}
	require.NoError(t, roles.Assign(ctx, p, domain.RoleAdmin))
	role, err := roles.RoleOf(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, role)

	require.NoError(t, roles.Assign(ctx, p, "viewer"))
	role, err = roles.RoleOf(ctx, "g-1")
	require.NoError(t, err)
	assert.Equal(t, domain.Role("viewer"), role)
}
