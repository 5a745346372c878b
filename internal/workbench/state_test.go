package workbench

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/parkadmin/internal/domain"
)

func rec(id string, st domain.Status, lat, lng float64) domain.Restriction {
	return domain.Restriction{
		ID:       id,
		Position: domain.LatLng{Lat: lat, Lng: lng},
		Fields:   map[domain.Field]string{domain.FieldRoadName: "Road " + id},
		Status:   st,
	}
}

func loaded(recs ...domain.Restriction) State {
	return Reduce(Initial(domain.DefaultCenter), RecordsLoaded{Records: recs})
}

func TestPendingIsDerived(t *testing.T) {
	s := loaded(
		rec("r1", domain.StatusPending, 1, 1),
		rec("r2", domain.StatusApproved, 2, 2),
		rec("r3", domain.StatusPending, 3, 3),
	)
	assert.Len(t, s.All, 3)
	assert.Equal(t, []string{"r1", "r3"}, ids(s.Pending))

	s = Reduce(s, RecordsLoaded{Records: []domain.Restriction{rec("r3", domain.StatusApproved, 3, 3)}})
	assert.Empty(t, s.Pending)
}

func TestSelectMovesCenterToRecord(t *testing.T) {
	s := loaded(rec("r1", domain.StatusPending, 51.5, -0.1))

	s = Reduce(s, Selected{ID: "r1"})
	assert.Equal(t, "r1", s.SelectedID)
	assert.Equal(t, domain.LatLng{Lat: 51.5, Lng: -0.1}, s.Center)
}

func TestSelectUnknownIDKeepsCenter(t *testing.T) {
	s := loaded(rec("r1", domain.StatusPending, 51.5, -0.1))

	s = Reduce(s, Selected{ID: "ghost"})
	assert.Equal(t, "ghost", s.SelectedID)
	assert.Equal(t, domain.DefaultCenter, s.Center)
	_, ok := s.Selected()
	assert.False(t, ok)
}

func TestFieldEditedTouchesOnlyDrafts(t *testing.T) {
	before := loaded(rec("r1", domain.StatusPending, 1, 1))

	after := Reduce(before, FieldEdited{ID: "r1", Field: domain.FieldRoadName, Value: "Oak St"})
	after = Reduce(after, FieldEdited{ID: "r1", Field: domain.FieldNotes, Value: "n"})

	assert.Equal(t, "Road r1", after.All[0].Value(domain.FieldRoadName))
	assert.Equal(t, domain.Draft{domain.FieldRoadName: "Oak St", domain.FieldNotes: "n"}, after.Drafts["r1"])
	assert.Empty(t, before.Drafts, "earlier snapshot must not observe later edits")
}

func TestFieldValuePrefersDraft(t *testing.T) {
	s := loaded(rec("r1", domain.StatusPending, 1, 1))
	assert.Equal(t, "Road r1", s.FieldValue("r1", domain.FieldRoadName))
	assert.Equal(t, "", s.FieldValue("r1", domain.FieldNotes))

	s = Reduce(s, FieldEdited{ID: "r1", Field: domain.FieldRoadName, Value: ""})
	assert.Equal(t, "", s.FieldValue("r1", domain.FieldRoadName))
	assert.Equal(t, "", s.FieldValue("missing", domain.FieldRoadName))
}

func TestWriteSubmittedClearsSelectionKeepsDraft(t *testing.T) {
	s := loaded(rec("r1", domain.StatusPending, 1, 1))
	s = Reduce(s, Selected{ID: "r1"})
	s = Reduce(s, FieldEdited{ID: "r1", Field: domain.FieldNotes, Value: "x"})

	s = Reduce(s, WriteSubmitted{ID: "r1"})
	assert.Empty(t, s.SelectedID)
	assert.Equal(t, "x", s.Drafts["r1"][domain.FieldNotes])
}

func TestDraftSurvivesDeselection(t *testing.T) {
	s := loaded(rec("r1", domain.StatusPending, 1, 1), rec("r2", domain.StatusPending, 2, 2))
	s = Reduce(s, Selected{ID: "r1"})
	s = Reduce(s, FieldEdited{ID: "r1", Field: domain.FieldNotes, Value: "keep"})
	s = Reduce(s, Selected{ID: "r2"})
	s = Reduce(s, Selected{ID: "r1"})

	assert.Equal(t, "keep", s.FieldValue("r1", domain.FieldNotes))
}

func TestChangeReceived(t *testing.T) {
	base := Reduce(loaded(rec("r1", domain.StatusPending, 1, 1)), Selected{ID: "r1"})

	tests := []struct {
		name  string
		event domain.ChangeEvent
		want  string
	}{
		{"delete of selected", domain.ChangeEvent{Kind: domain.ChangeDelete, OldID: "r1"}, ""},
		{"update of selected", domain.ChangeEvent{Kind: domain.ChangeUpdate, OldID: "r1", NewID: "r1"}, ""},
		{"delete of other", domain.ChangeEvent{Kind: domain.ChangeDelete, OldID: "r9"}, "r1"},
		{"insert", domain.ChangeEvent{Kind: domain.ChangeInsert, NewID: "r1"}, "r1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(base, ChangeReceived{Event: tt.event})
			assert.Equal(t, tt.want, s.SelectedID)
		})
	}
}

func TestChangeReceivedWithoutSelection(t *testing.T) {
	s := Reduce(loaded(), ChangeReceived{Event: domain.ChangeEvent{Kind: domain.ChangeDelete}})
	assert.Empty(t, s.SelectedID)
}

func ids(rs []domain.Restriction) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}
