package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/gate"
	"github.com/vbonduro/parkadmin/internal/service"
	"github.com/vbonduro/parkadmin/internal/workbench"
)

const panelPartial = "partials/pending_panel.html"

func (s *Server) renderPanel(w http.ResponseWriter, wb *workbench.Workbench) {
	if err := s.renderPartial(w, panelPartial, s.panelView(wb.Snapshot())); err != nil {
		s.logger.Error("render partial error", "partial", panelPartial, "error", err)
	}
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	s.renderPanel(w, wb)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	id := r.PathValue("id")
	state := wb.Select(id)

	if _, ok := state.Record(id); ok {
		trigger, err := json.Marshal(map[string]domain.LatLng{"recenter": state.Center})
		if err == nil {
			w.Header().Set("HX-Trigger", string(trigger))
		}
	}
	s.renderPanel(w, wb)
}

// parseFieldForm reads "<field>=<value>" pairs where field is a label or
// column name. Any other key is rejected.
func parseFieldForm(r *http.Request) (map[domain.Field]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	values := make(map[domain.Field]string, len(r.PostForm))
	for key, vs := range r.PostForm {
		f, err := domain.ParseField(key)
		if err != nil {
			return nil, err
		}
		values[f] = vs[len(vs)-1]
	}
	return values, nil
}

func (s *Server) handleEditFields(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	id := r.PathValue("id")
	values, err := parseFieldForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if len(values) == 0 {
		http.Error(w, "no fields", http.StatusBadRequest)
		return
	}

	for f, v := range values {
		if err := wb.EditField(id, f, v); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleApprove folds any submitted values that differ from what the edit
// box already shows into the draft, then approves.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	id := r.PathValue("id")
	values, err := parseFieldForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	state := wb.Snapshot()
	for f, v := range values {
		if v != state.FieldValue(id, f) {
			if err := wb.EditField(id, f, v); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
		}
	}

	// Write failures are logged by the workbench and not surfaced.
	_ = wb.Approve(context.WithoutCancel(r.Context()), id)
	s.renderPanel(w, wb)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	_ = wb.Delete(context.WithoutCancel(r.Context()), r.PathValue("id"))
	s.renderPanel(w, wb)
}

// handleSuggest fills fields from the record photo. Fields the admin has
// already edited are left alone.
func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	id := r.PathValue("id")
	state := wb.Snapshot()
	rec, ok := state.Record(id)
	if !ok || s.deps.Photos == nil {
		http.NotFound(w, r)
		return
	}

	suggestions, err := s.deps.Photos.Suggest(r.Context(), rec.ImageURL)
	switch {
	case errors.Is(err, service.ErrVisionDisabled), errors.Is(err, domain.ErrNotFound):
		http.NotFound(w, r)
		return
	case errors.Is(err, service.ErrUnsupportedImage), errors.Is(err, service.ErrImageTooLarge):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		http.Error(w, "failed to read photo", http.StatusBadGateway)
		s.logger.Error("suggest failed", "id", id, "error", err)
		return
	}

	applied := 0
	for _, sg := range suggestions {
		if _, edited := state.Drafts[id][sg.Field]; edited {
			continue
		}
		if err := wb.EditField(id, sg.Field, sg.Value); err == nil {
			applied++
		}
	}
	s.logger.Info("suggestions applied", "id", id, "suggested", len(suggestions), "applied", applied)
	s.renderPanel(w, wb)
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	id := r.PathValue("id")
	rec, ok := wb.Snapshot().Record(id)
	if !ok || rec.ImageURL == "" || s.deps.Photos == nil {
		http.NotFound(w, r)
		return
	}
	if service.IsRemote(rec.ImageURL) {
		http.Redirect(w, r, rec.ImageURL, http.StatusFound)
		return
	}

	reader, mimeType, err := s.deps.Photos.Open(r.Context(), rec.ImageURL)
	if errors.Is(err, domain.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to open photo", http.StatusInternalServerError)
		s.logger.Error("open photo failed", "id", id, "error", err)
		return
	}
	defer closeWithLog(reader, "photo reader", s.logger)

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := io.Copy(w, reader); err != nil {
		s.logger.Error("write photo failed", "id", id, "error", err)
	}
}

// handleMarkers serves every known record as a GeoJSON point.
func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request, _ gate.Access, wb *workbench.Workbench) {
	state := wb.Snapshot()

	fc := geojson.NewFeatureCollection()
	for _, rec := range state.All {
		f := geojson.NewFeature(orb.Point{rec.Position.Lng, rec.Position.Lat})
		f.ID = rec.ID
		f.Properties["id"] = rec.ID
		f.Properties["status"] = string(rec.Status)
		f.Properties["road_name"] = rec.Value(domain.FieldRoadName)
		f.Properties["selected"] = rec.ID == state.SelectedID
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		http.Error(w, "failed to encode markers", http.StatusInternalServerError)
		s.logger.Error("marshal markers failed", "error", err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// closeWithLog closes c and logs any error, using label to identify the resource.
func closeWithLog(c io.Closer, label string, logger *slog.Logger) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close resource", "label", label, "error", err)
	}
}
