// Package pg is the Postgres-backed dag catalog. It feeds the
// authorization layer the set of dag ids a filter can range over.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"skein.org/internal/auth"
	"skein.org/internal/ids"
)

const (
	pgErrUniqueViolation = "23505"
)

var (
	ErrDagExists   = errors.New("pg: dag already registered")
	ErrDagNotFound = errors.New("pg: dag not found")
)

type Store struct {
	db *sql.DB
}

var _ auth.DagStore = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection pool. Used by tests with sqlmock.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ListIDs returns every active dag id, ordered for stable filtering output.
func (s *Store) ListIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select dag_id from dags
		where not is_stale
		order by dag_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// CreateDag registers a dag in the catalog.
func (s *Store) CreateDag(ctx context.Context, dagID string) error {
	if _, err := s.db.ExecContext(ctx, `
		insert into dags (id, dag_id)
		values ($1, $2)
	`, ids.New(), dagID); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return ErrDagExists
		}
		return err
	}
	return nil
}

// MarkStale drops a dag from authorization filtering without deleting its row.
func (s *Store) MarkStale(ctx context.Context, dagID string, stale bool) error {
	res, err := s.db.ExecContext(ctx, `
		update dags set is_stale = $2, updated_at = now()
		where dag_id = $1
	`, dagID, stale)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDagNotFound
	}
	return nil
}

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}
