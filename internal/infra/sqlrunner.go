package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SQLExecutor is what the postgres task and character stores run against.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

// pgxConn is satisfied by *pgxpool.Pool and pgx.Tx.
type pgxConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

var (
	markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	errEmptyQuery    = errors.New("sql: empty query")
	errMissingMarker = errors.New("sql: marker missing or invalid")
)

// SQLRunner strips the `--sql <uuid>` marker from sqlinline statements before
// running them and tags every log line with it under "sql".
type SQLRunner struct {
	conn   pgxConn
	logger zerolog.Logger
}

// NewSQLRunner wraps the task store pool.
func NewSQLRunner(pool *pgxpool.Pool, logger zerolog.Logger) *SQLRunner {
	return newSQLRunner(pool, logger)
}

func newSQLRunner(conn pgxConn, logger zerolog.Logger) *SQLRunner {
	return &SQLRunner{conn: conn, logger: logger.With().Str("component", "taskstore.pg").Logger()}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	start := time.Now()
	tag, err := r.conn.Exec(ctx, body, args...)
	ev := r.logger.Debug()
	if err != nil {
		ev = r.logger.Error().Err(err)
	}
	ev.Str("sql", marker).
		Int64("rows", tag.RowsAffected()).
		Dur("elapsed", time.Since(start)).
		Msg("exec")
	return tag, err
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, body, err := extractMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	return loggedRow{
		row:    r.conn.QueryRow(ctx, body, args...),
		logger: r.logger,
		marker: marker,
		start:  time.Now(),
	}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, body, err := extractMarker(query)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, err := r.conn.Query(ctx, body, args...)
	if err != nil {
		r.logger.Error().Err(err).Str("sql", marker).Msg("query")
		return nil, err
	}
	return &loggedRows{Rows: rows, logger: r.logger, marker: marker, start: start}, nil
}

type loggedRow struct {
	row    pgx.Row
	logger zerolog.Logger
	marker string
	start  time.Time
}

// Scan logs failures other than a missing row; GetByID turns that one into
// domain.ErrNotFound.
func (l loggedRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	switch {
	case err == nil, errors.Is(err, pgx.ErrNoRows):
		l.logger.Debug().Str("sql", l.marker).Bool("found", err == nil).Dur("elapsed", time.Since(l.start)).Msg("query_row")
	default:
		l.logger.Error().Err(err).Str("sql", l.marker).Msg("query_row")
	}
	return err
}

type loggedRows struct {
	pgx.Rows
	logger zerolog.Logger
	marker string
	start  time.Time
	rows   int
}

func (l *loggedRows) Next() bool {
	if l.Rows.Next() {
		l.rows++
		return true
	}
	return false
}

func (l *loggedRows) Close() {
	l.Rows.Close()
	l.logger.Debug().Str("sql", l.marker).Int("rows", l.rows).Dur("elapsed", time.Since(l.start)).Msg("query")
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(...any) error { return e.err }

// extractMarker splits a sqlinline statement into its marker uuid and the
// SQL sent to postgres.
func extractMarker(query string) (marker, body string, err error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "", "", errEmptyQuery
	}
	first, rest, _ := strings.Cut(trimmed, "\n")
	first = strings.TrimSpace(first)
	if !markerRegexp.MatchString(first) {
		return "", "", errMissingMarker
	}
	return strings.TrimPrefix(first, "--sql "), rest, nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
