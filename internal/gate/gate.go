// Package gate decides whether a request belongs to an administrator.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/vbonduro/parkadmin/internal/domain"
	"github.com/vbonduro/parkadmin/internal/session"
)

type State int

const (
	Unauthenticated State = iota
	NonAdmin
	Admin
)

func (s State) String() string {
	switch s {
	case Admin:
		return "admin"
	case NonAdmin:
		return "non-admin"
	default:
		return "unauthenticated"
	}
}

// Access is the outcome of a gate check.
type Access struct {
	State     State
	SessionID string
	Principal domain.Principal
	Role      domain.Role
}

type sessionLookup interface {
	Lookup(ctx context.Context, token string) (*session.Session, error)
}

type roleLookup interface {
	RoleOf(ctx context.Context, principalID string) (domain.Role, error)
}

type Gate struct {
	sessions sessionLookup
	roles    roleLookup
	logger   *slog.Logger
}

func New(sessions sessionLookup, roles roleLookup, logger *slog.Logger) *Gate {
	return &Gate{sessions: sessions, roles: roles, logger: logger.With("component", "gate")}
}

// Check resolves a session token to an access decision. It never returns
// Admin unless the role lookup succeeded and returned the admin role.
func (g *Gate) Check(ctx context.Context, token string) Access {
	if token == "" {
		return Access{State: Unauthenticated}
	}

	sess, err := g.sessions.Lookup(ctx, token)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.WarnContext(ctx, "session lookup failed", "error", err)
		}
		return Access{State: Unauthenticated}
	}

	access := Access{State: NonAdmin, SessionID: sess.ID, Principal: sess.Principal}

	role, err := g.roles.RoleOf(ctx, sess.Principal.ID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		g.logger.InfoContext(ctx, "principal has no role", "principal", sess.Principal.ID)
		return access
	case err != nil:
		g.logger.ErrorContext(ctx, "role lookup failed", "principal", sess.Principal.ID, "error", err)
		return access
	}

	access.Role = role
	if role == domain.RoleAdmin {
		access.State = Admin
	}
	return access
}
