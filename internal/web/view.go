package web

import (
	"net/url"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/service"
	"github.com/vbonduro/parkadmin/internal/workbench"
)

type panelView struct {
	Pending []cardView
}

type cardView struct {
	ID    string
	Road  string
	Type  string
	Zone  string
	Times string
	// Edit is set on the selected card only.
	Edit *editView
}

type editView struct {
	ID            string
	Fields        []fieldView
	PhotoURL      string
	VisionEnabled bool
}

type fieldView struct {
	Label  string
	Column string
	Value  string
}

func (s *Server) panelView(state workbench.State) panelView {
	cards := make([]cardView, 0, len(state.Pending))
	for _, r := range state.Pending {
		card := cardView{
			ID:    r.ID,
			Road:  r.Value(domain.FieldRoadName),
			Type:  r.Value(domain.FieldRestrictionType),
			Zone:  r.Value(domain.FieldZone),
			Times: r.Value(domain.FieldTimes),
		}
		if r.ID == state.SelectedID {
			card.Edit = s.editView(state, r)
		}
		cards = append(cards, card)
	}
	return panelView{Pending: cards}
}

func (s *Server) editView(state workbench.State, r domain.Restriction) *editView {
	fields := make([]fieldView, len(domain.EditableFields))
	for i, f := range domain.EditableFields {
		fields[i] = fieldView{Label: string(f), Column: f.Column(), Value: state.FieldValue(r.ID, f)}
	}
	return &editView{
		ID:            r.ID,
		Fields:        fields,
		PhotoURL:      photoURL(r),
		VisionEnabled: s.deps.Photos != nil && s.deps.Photos.VisionEnabled() && r.ImageURL != "",
	}
}

// photoURL links remote photos directly and proxies store keys.
func photoURL(r domain.Restriction) string {
	switch {
	case r.ImageURL == "":
		return ""
	case service.IsRemote(r.ImageURL):
		return r.ImageURL
	default:
		return "/records/" + url.PathEscape(r.ID) + "/photo"
	}
}
