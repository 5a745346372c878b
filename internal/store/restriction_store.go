package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/vbonduro/parkadmin/internal/domain"
)

const restrictionsTable = "parking_restrictions"

// Dialect selects placeholder style and timestamp encoding.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) builder() sq.StatementBuilderType {
	if d == Postgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// RestrictionStore reads and writes the parking_restrictions table.
type RestrictionStore struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
}

func NewRestrictionStore(db *sql.DB, dialect Dialect) *RestrictionStore {
	return &RestrictionStore{db: db, dialect: dialect, sb: dialect.builder()}
}

func restrictionColumns() []string {
	cols := []string{"id", "latitude", "longitude"}
	for _, f := range domain.EditableFields {
		cols = append(cols, f.Column())
	}
	return append(cols, "image_url", "status", "approved_at")
}

// FetchAll returns every record in the table's natural order.
func (s *RestrictionStore) FetchAll(ctx context.Context) ([]domain.Restriction, error) {
	query, args, err := s.sb.Select(restrictionColumns()...).From(restrictionsTable).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch restrictions: %w", err)
	}
	defer rows.Close()

	var out []domain.Restriction
	for rows.Next() {
		r, err := scanRestriction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating restrictions: %w", err)
	}
	return out, nil
}

func scanRestriction(rows *sql.Rows) (domain.Restriction, error) {
	var (
		r          domain.Restriction
		values     = make([]sql.NullString, len(domain.EditableFields))
		imageURL   sql.NullString
		status     string
		approvedAt sql.NullString
	)

	dest := []any{&r.ID, &r.Position.Lat, &r.Position.Lng}
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &imageURL, &status, &approvedAt)

	if err := rows.Scan(dest...); err != nil {
		return r, fmt.Errorf("failed to scan restriction: %w", err)
	}

	r.Fields = make(map[domain.Field]string, len(values))
	for i, v := range values {
		if v.Valid {
			r.Fields[domain.EditableFields[i]] = v.String
		}
	}
	r.ImageURL = imageURL.String

	st, err := domain.ParseStatus(status)
	if err != nil {
		return r, fmt.Errorf("restriction %s: %w", r.ID, err)
	}
	r.Status = st

	if approvedAt.Valid && approvedAt.String != "" {
		t, err := time.Parse(time.RFC3339Nano, approvedAt.String)
		if err != nil {
			return r, fmt.Errorf("restriction %s: bad approved_at %q: %w", r.ID, approvedAt.String, err)
		}
		r.ApprovedAt = &t
	}
	return r, nil
}

// Update applies patch to the record with the given id.
func (s *RestrictionStore) Update(ctx context.Context, id string, patch domain.Patch) error {
	set := patch.Map()
	if len(set) == 0 {
		return fmt.Errorf("update restriction %s: empty patch", id)
	}
	if patch.ApprovedAt != nil && s.dialect == Postgres {
		set["approved_at"] = patch.ApprovedAt.UTC()
	}

	query, args, err := s.sb.Update(restrictionsTable).
		SetMap(set).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update restriction: %w", err)
	}
	return expectOneRow(res, id)
}

// Delete removes the record with the given id.
func (s *RestrictionStore) Delete(ctx context.Context, id string) error {
	query, args, err := s.sb.Delete(restrictionsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete restriction: %w", err)
	}
	return expectOneRow(res, id)
}

// Insert adds a pending record and returns its id. Submissions normally
// arrive from the mobile app; this is used for seeding.
func (s *RestrictionStore) Insert(ctx context.Context, r domain.Restriction) (string, error) {
	if r.ID == "" {
		return "", errors.New("insert restriction: id is required")
	}
	if r.Status == "" {
		r.Status = domain.StatusPending
	}

	cols := []string{"id", "latitude", "longitude", "image_url", "status"}
	vals := []any{r.ID, r.Position.Lat, r.Position.Lng, nullable(r.ImageURL), string(r.Status)}
	for _, f := range domain.EditableFields {
		if v, ok := r.Fields[f]; ok {
			cols = append(cols, f.Column())
			vals = append(vals, v)
		}
	}

	query, args, err := s.sb.Insert(restrictionsTable).Columns(cols...).Values(vals...).ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("failed to insert restriction: %w", err)
	}
	return r.ID, nil
}

func (s *RestrictionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func expectOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("restriction %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
