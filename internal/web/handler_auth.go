package web

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/gate"
	"github.com/vbonduro/parkadmin/internal/identity"
	"github.com/vbonduro/parkadmin/internal/identity/google"
	"github.com/vbonduro/parkadmin/internal/workbench"
)

const (
	sessionCookie = "parkadmin_session"
	nonceCookie   = "parkadmin_oauth_nonce"
	nonceMaxAge   = 600
)

type adminHandler func(w http.ResponseWriter, r *http.Request, access gate.Access, wb *workbench.Workbench)

func (s *Server) access(r *http.Request) (gate.Access, string) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return gate.Access{State: gate.Unauthenticated}, ""
	}
	return s.deps.Gate.Check(r.Context(), c.Value), c.Value
}

// requireAdmin answers 401 without a session and 403 without the admin
// role. A session that lost the role has its workbench torn down.
func (s *Server) requireAdmin(h adminHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		access, _ := s.access(r)
		switch access.State {
		case gate.Unauthenticated:
			s.deny(w, r, http.StatusUnauthorized)
			return
		case gate.NonAdmin:
			s.deps.Workbenches.Close(access.SessionID)
			s.deny(w, r, http.StatusForbidden)
			return
		}
		h(w, r, access, s.deps.Workbenches.Open(access.SessionID))
	}
}

// deny sends htmx back to the index page, which shows login or access denied.
func (s *Server) deny(w http.ResponseWriter, r *http.Request, status int) {
	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
	}
	http.Error(w, http.StatusText(status), status)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	access, _ := s.access(r)

	switch access.State {
	case gate.Unauthenticated:
		if err := s.renderPage(w, http.StatusOK, nil, "base.html", "pages/login.html"); err != nil {
			s.logger.Error("render page error", "page", "login", "error", err)
		}
	case gate.NonAdmin:
		s.deps.Workbenches.Close(access.SessionID)
		data := map[string]any{"Principal": access.Principal}
		if err := s.renderPage(w, http.StatusForbidden, data, "base.html", "pages/denied.html"); err != nil {
			s.logger.Error("render page error", "page", "denied", "error", err)
		}
	case gate.Admin:
		wb := s.deps.Workbenches.Open(access.SessionID)
		wb.Refresh(r.Context())
		state := wb.Snapshot()
		data := map[string]any{
			"Principal":  access.Principal,
			"MapsAPIKey": s.settings.MapsAPIKey,
			"Zoom":       s.settings.MapZoom,
			"Center":     state.Center,
			"Panel":      s.panelView(state),
		}
		if err := s.renderPage(w, http.StatusOK, data,
			"base.html", "pages/workbench.html", "partials/pending_panel.html",
		); err != nil {
			s.logger.Error("render page error", "page", "workbench", "error", err)
		}
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, nonce, err := s.deps.States.Issue()
	if err != nil {
		http.Error(w, "failed to start sign-in", http.StatusInternalServerError)
		s.logger.Error("issue oauth state failed", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     nonceCookie,
		Value:    nonce,
		Path:     "/auth",
		MaxAge:   nonceMaxAge,
		HttpOnly: true,
		Secure:   s.settings.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.deps.Identity.AuthCodeURL(state), http.StatusFound)
}

func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		s.logger.Info("sign-in cancelled at provider", "error", e)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	nonce, err := r.Cookie(nonceCookie)
	if err != nil {
		http.Error(w, "sign-in expired, please try again", http.StatusBadRequest)
		return
	}
	s.clearCookie(w, nonceCookie, "/auth")

	if err := s.deps.States.Verify(q.Get("state"), nonce.Value); err != nil {
		http.Error(w, "invalid sign-in state", http.StatusBadRequest)
		s.logger.Warn("oauth state rejected", "error", err)
		return
	}

	principal, err := s.deps.Identity.Exchange(ctx, q.Get("code"))
	switch {
	case errors.Is(err, google.ErrUnavailable):
		http.Error(w, "identity provider unavailable", http.StatusBadGateway)
		s.logger.Error("oauth exchange failed", "error", err)
		return
	case err != nil:
		http.Error(w, "sign-in failed", http.StatusUnauthorized)
		s.logger.Warn("oauth exchange rejected", "error", err)
		return
	}

	if s.isBootstrapAdmin(principal.Email) {
		if err := s.deps.Roles.Assign(ctx, *principal, domain.RoleAdmin); err != nil {
			s.logger.Error("bootstrap admin assignment failed", "email", principal.Email, "error", err)
		} else {
			s.logger.Info("bootstrap admin assigned", "principal", principal.ID)
		}
	}

	token, sess, err := s.deps.Sessions.Create(ctx, *principal)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		s.logger.Error("create session failed", "error", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.settings.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   s.settings.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("signed in", "principal", principal.ID, "session", sess.ID)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	access, token := s.access(r)
	if access.SessionID != "" {
		s.deps.Workbenches.Close(access.SessionID)
	}
	if token != "" {
		// The revoke must land even if the browser navigates away.
		if err := s.deps.Sessions.Revoke(context.WithoutCancel(r.Context()), token); err != nil {
			s.logger.Error("revoke session failed", "error", err)
		}
	}
	s.clearCookie(w, sessionCookie, "/")

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.settings.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) isBootstrapAdmin(email string) bool {
	return email != "" && slices.ContainsFunc(s.settings.BootstrapAdmins, func(e string) bool {
		return strings.EqualFold(strings.TrimSpace(e), email)
	})
}

var (
	_ stateIssuer      = (*identity.StateSigner)(nil)
	_ identityProvider = (*google.Provider)(nil)
)
