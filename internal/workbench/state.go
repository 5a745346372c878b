// Package workbench holds the approval state for one admin session: the
// cached record set, the selection, and unsaved drafts.
package workbench

import (
	"github.com/vbonduro/parkadmin/internal/domain"
)

// State is an immutable snapshot. Reduce never modifies a State in place, so
// snapshots handed to renderers stay valid after later messages.
type State struct {
	All        []domain.Restriction
	Pending    []domain.Restriction
	SelectedID string
	Drafts     map[string]domain.Draft
	Center     domain.LatLng
}

// Initial returns the empty state centred on center.
func Initial(center domain.LatLng) State {
	return State{Drafts: map[string]domain.Draft{}, Center: center}
}

// Record finds id in All.
func (s State) Record(id string) (domain.Restriction, bool) {
	for _, r := range s.All {
		if r.ID == id {
			return r, true
		}
	}
	return domain.Restriction{}, false
}

// Selected returns the selected record when it is in All.
func (s State) Selected() (domain.Restriction, bool) {
	if s.SelectedID == "" {
		return domain.Restriction{}, false
	}
	return s.Record(s.SelectedID)
}

// FieldValue is what the edit box shows: the draft value, else the stored
// value, else "".
func (s State) FieldValue(id string, f domain.Field) string {
	if v, ok := s.Drafts[id][f]; ok {
		return v
	}
	if r, ok := s.Record(id); ok {
		return r.Value(f)
	}
	return ""
}

// Msg is an input to Reduce.
type Msg interface{ isMsg() }

// RecordsLoaded replaces the cached record set with a fetch result.
type RecordsLoaded struct{ Records []domain.Restriction }

// Selected selects ID, or clears the selection when ID is "".
type Selected struct{ ID string }

// FieldEdited records a draft value.
type FieldEdited struct {
	ID    string
	Field domain.Field
	Value string
}

// WriteSubmitted follows an approve or delete, whatever its outcome.
type WriteSubmitted struct{ ID string }

// ChangeReceived is a change notification from the store.
type ChangeReceived struct{ Event domain.ChangeEvent }

func (RecordsLoaded) isMsg()  {}
func (Selected) isMsg()       {}
func (FieldEdited) isMsg()    {}
func (WriteSubmitted) isMsg() {}
func (ChangeReceived) isMsg() {}

// Reduce applies m to s and returns the next state.
func Reduce(s State, m Msg) State {
	switch m := m.(type) {
	case RecordsLoaded:
		s.All = m.Records
		s.Pending = pendingOf(m.Records)

	case Selected:
		s.SelectedID = m.ID
		if r, ok := s.Record(m.ID); ok {
			s.Center = r.Position
		}

	case FieldEdited:
		drafts := make(map[string]domain.Draft, len(s.Drafts)+1)
		for id, d := range s.Drafts {
			drafts[id] = d
		}
		d := drafts[m.ID].Clone()
		d[m.Field] = m.Value
		drafts[m.ID] = d
		s.Drafts = drafts

	case WriteSubmitted:
		s.SelectedID = ""

	case ChangeReceived:
		switch m.Event.Kind {
		case domain.ChangeUpdate, domain.ChangeDelete:
			if s.SelectedID != "" && m.Event.AffectedID() == s.SelectedID {
				s.SelectedID = ""
			}
		}
	}
	return s
}

func pendingOf(all []domain.Restriction) []domain.Restriction {
	out := make([]domain.Restriction, 0, len(all))
	for _, r := range all {
		if r.Pending() {
			out = append(out, r)
		}
	}
	return out
}
