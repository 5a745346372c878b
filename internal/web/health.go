package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthHandler struct {
	probes map[string]Pinger
}

func newHealthHandler(probes map[string]Pinger) *healthHandler {
	return &healthHandler{probes: probes}
}

type healthResponse struct {
	Status     string                `json:"status"`
	Components map[string]compStatus `json:"components,omitempty"`
	Timestamp  time.Time             `json:"timestamp"`
}

type compStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
}

// Live is the liveness probe. Always returns 200.
func (h *healthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now()})
}

// Ready pings every probe: 200 if all answer, 503 otherwise.
func (h *healthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	components := make(map[string]compStatus, len(h.probes))
	overall := "ok"
	for name, p := range h.probes {
		start := time.Now()
		if err := p.Ping(ctx); err != nil {
			components[name] = compStatus{Status: "down"}
			overall = "down"
			continue
		}
		components[name] = compStatus{Status: "ok", Latency: time.Since(start).String()}
	}

	status := http.StatusOK
	if overall != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Status: overall, Components: components, Timestamp: time.Now()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}
