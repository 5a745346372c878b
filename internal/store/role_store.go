package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// RoleStore maps principal ids to roles via the users table.
type RoleStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewRoleStore(db *sql.DB, dialect Dialect) *RoleStore {
	return &RoleStore{db: db, sb: dialect.builder()}
}

// RoleOf returns domain.ErrNotFound when the principal has no users row.
func (s *RoleStore) RoleOf(ctx context.Context, principalID string) (domain.Role, error) {
	query, args, err := s.sb.Select("role").From("users").Where(sq.Eq{"id": principalID}).ToSql()
	if err != nil {
		return domain.RoleNone, fmt.Errorf("failed to build query: %w", err)
	}

	var role string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoleNone, fmt.Errorf("user %s: %w", principalID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RoleNone, fmt.Errorf("failed to look up role: %w", err)
	}
	return domain.Role(role), nil
}

// Assign upserts the role for a principal.
func (s *RoleStore) Assign(ctx context.Context, p domain.Principal, role domain.Role) error {
	query, args, err := s.sb.Insert("users").
		Columns("id", "email", "role").
		Values(p.ID, p.Email, string(role)).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = excluded.email, role = excluded.role").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}
	return nil
}
