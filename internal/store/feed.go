package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vbonduro/parkadmin/internal/domain"
)

// NotifyChannel is the Postgres channel the table trigger publishes on.
const NotifyChannel = "parking_restrictions"

const feedBuffer = 16

// SQLiteFeed delivers change events by polling the change log table that
// the SQLite triggers append to.
type SQLiteFeed struct {
	db       *sql.DB
	sb       sq.StatementBuilderType
	interval time.Duration
	logger   *slog.Logger
}

func NewSQLiteFeed(db *sql.DB, interval time.Duration, logger *slog.Logger) *SQLiteFeed {
	return &SQLiteFeed{
		db:       db,
		sb:       SQLite.builder(),
		interval: interval,
		logger:   logger.With("component", "sqlite_feed"),
	}
}

// Subscribe starts delivering events recorded after the call. The channel
// is closed when ctx ends.
func (f *SQLiteFeed) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	var last int64
	err := f.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM parking_restriction_changes").Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to read change log position: %w", err)
	}

	ch := make(chan domain.ChangeEvent, feedBuffer)
	go f.poll(ctx, last, ch)
	return ch, nil
}

func (f *SQLiteFeed) poll(ctx context.Context, last int64, ch chan<- domain.ChangeEvent) {
	defer close(ch)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		events, seq, err := f.since(ctx, last)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("poll change log failed", "error", err)
			continue
		}
		last = seq
		for _, ev := range events {
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (f *SQLiteFeed) since(ctx context.Context, after int64) ([]domain.ChangeEvent, int64, error) {
	query, args, err := f.sb.
		Select("seq", "kind", "COALESCE(old_id, '')", "COALESCE(new_id, '')").
		From("parking_restriction_changes").
		Where(sq.Gt{"seq": after}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, after, err
	}

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, after, err
	}
	defer rows.Close()

	var events []domain.ChangeEvent
	for rows.Next() {
		var ev domain.ChangeEvent
		if err := rows.Scan(&after, &ev.Kind, &ev.OldID, &ev.NewID); err != nil {
			return nil, after, err
		}
		events = append(events, ev)
	}
	return events, after, rows.Err()
}

// PostgresFeed delivers change events from LISTEN/NOTIFY. Each subscription
// holds one pooled connection until its context ends.
type PostgresFeed struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresFeed(pool *pgxpool.Pool, logger *slog.Logger) *PostgresFeed {
	return &PostgresFeed{pool: pool, logger: logger.With("component", "postgres_feed")}
}

func (f *PostgresFeed) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	conn, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	ch := make(chan domain.ChangeEvent, feedBuffer)
	go func() {
		defer close(ch)
		defer func() {
			if !conn.Conn().IsClosed() {
				uctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				if _, err := conn.Exec(uctx, "UNLISTEN *"); err != nil {
					f.logger.Warn("unlisten failed", "error", err)
				}
				cancel()
			}
			conn.Release()
		}()

		for {
			n, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				if ctx.Err() == nil {
					f.logger.Error("wait for notification failed", "error", err)
				}
				return
			}

			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
				f.logger.Warn("malformed change payload", "payload", n.Payload, "error", err)
				continue
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
