package web

import (
	"context"
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/gate"
	"github.com/vbonduro/parkadmin/internal/service"
	"github.com/vbonduro/parkadmin/internal/session"
	"github.com/vbonduro/parkadmin/internal/workbench"
)

type accessChecker interface {
	Check(ctx context.Context, token string) gate.Access
}

type sessionManager interface {
	Create(ctx context.Context, p domain.Principal) (string, *session.Session, error)
	Revoke(ctx context.Context, token string) error
}

type roleAssigner interface {
	Assign(ctx context.Context, p domain.Principal, role domain.Role) error
}

type identityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*domain.Principal, error)
}

type stateIssuer interface {
	Issue() (state, nonce string, err error)
	Verify(state, nonce string) error
}

// Deps are the collaborators the dashboard talks to.
type Deps struct {
	Gate        accessChecker
	Sessions    sessionManager
	Roles       roleAssigner
	Identity    identityProvider
	States      stateIssuer
	Workbenches *workbench.Registry
	Photos      *service.PhotoService
	// Probes are pinged by /readyz, keyed by component name.
	Probes map[string]Pinger
}

type Settings struct {
	MapsAPIKey      string
	MapZoom         int
	SessionTTL      time.Duration
	CookieSecure    bool
	BootstrapAdmins []string
}

type Server struct {
	deps      Deps
	settings  Settings
	templates embed.FS
	mux       *http.ServeMux
	upgrader  websocket.Upgrader
	tmplFuncs template.FuncMap
	logger    *slog.Logger
}

func NewServer(deps Deps, settings Settings, tmpl embed.FS, logger *slog.Logger) *Server {
	s := &Server{
		deps:      deps,
		settings:  settings,
		templates: tmpl,
		mux:       http.NewServeMux(),
		// A nil CheckOrigin rejects cross-origin handshakes.
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
		tmplFuncs: template.FuncMap{
			"inputID": func(id, column string) string { return "f-" + id + "-" + column },
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /auth/login", s.handleLogin)
	s.mux.HandleFunc("GET /auth/callback", s.handleCallback)
	s.mux.HandleFunc("POST /auth/logout", s.handleLogout)

	s.mux.HandleFunc("GET /panel", s.requireAdmin(s.handlePanel))
	s.mux.HandleFunc("POST /records/{id}/select", s.requireAdmin(s.handleSelect))
	s.mux.HandleFunc("POST /records/{id}/fields", s.requireAdmin(s.handleEditFields))
	s.mux.HandleFunc("POST /records/{id}/approve", s.requireAdmin(s.handleApprove))
	s.mux.HandleFunc("DELETE /records/{id}", s.requireAdmin(s.handleDelete))
	s.mux.HandleFunc("POST /records/{id}/suggest", s.requireAdmin(s.handleSuggest))
	s.mux.HandleFunc("GET /records/{id}/photo", s.requireAdmin(s.handlePhoto))
	s.mux.HandleFunc("GET /api/markers", s.requireAdmin(s.handleMarkers))
	s.mux.HandleFunc("GET /ws", s.requireAdmin(s.handleLive))

	health := newHealthHandler(s.deps.Probes)
	s.mux.HandleFunc("GET /healthz", health.Live)
	s.mux.HandleFunc("GET /readyz", health.Ready)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	chain(s.mux,
		recovery(s.logger),
		requestID,
		requestLogger(s.logger),
		securityHeaders,
	).ServeHTTP(w, r)
}

// renderPage parses and executes a full-page template set.
func (s *Server) renderPage(w http.ResponseWriter, status int, data any, files ...string) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, files...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderPartial parses and executes a single named partial template.
// The file must contain exactly one {{define "name"}}...{{end}} block.
func (s *Server) renderPartial(w http.ResponseWriter, file string, data any) error {
	tmpl, err := template.New("").Funcs(s.tmplFuncs).ParseFS(s.templates, file)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	// ParseFS registers both the file-basename template and any {{define}} blocks.
	// The {{define}} template is the one whose name is neither "" nor the
	// file basename.
	basename := file
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		basename = file[idx+1:]
	}
	for _, t := range tmpl.Templates() {
		if n := t.Name(); n != "" && n != basename {
			return t.Execute(w, data)
		}
	}
	return tmpl.ExecuteTemplate(w, basename, data)
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
