// Package sqlstore implements the clinic repositories over database/sql. The
// queries are written once with '?' placeholders; a Dialect supplied by each
// driver rewrites them and classifies constraint violations.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/store"
)

// Dialect holds the few things that differ between database engines.
type Dialect struct {
	Name string

	// DollarPlaceholders rewrites '?' to $1, $2, ... (postgres).
	DollarPlaceholders bool

	IsUniqueViolation     func(error) bool
	IsForeignKeyViolation func(error) bool

	// BackupStatement copies the database into the file named by its only
	// parameter. Empty when the engine cannot do that from SQL.
	BackupStatement string
}

func (d Dialect) rebind(query string) string {
	if !d.DollarPlaceholders {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// mapErr translates driver errors into store sentinels.
func (d Dialect) mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case d.IsUniqueViolation != nil && d.IsUniqueViolation(err):
		return errors.Join(store.ErrAlreadyExists, err)
	case d.IsForeignKeyViolation != nil && d.IsForeignKeyViolation(err):
		return errors.Join(store.ErrReferenced, err)
	}
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier applies the dialect to every statement it runs.
type querier struct {
	db dbtx
	d  Dialect
}

func (q querier) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := q.db.ExecContext(ctx, q.d.rebind(query), args...)
	return res, q.d.mapErr(err)
}

// execOne runs a statement that must touch exactly one row.
func (q querier) execOne(ctx context.Context, query string, args ...any) error {
	n, err := q.execCount(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q querier) execCount(ctx context.Context, query string, args ...any) (int, error) {
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (q querier) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := q.db.QueryContext(ctx, q.d.rebind(query), args...)
	return rows, q.d.mapErr(err)
}

func (q querier) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, q.d.rebind(query), args...)
}

func (q querier) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := q.queryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, q.d.mapErr(err)
	}
	return n, nil
}

// MigrateFunc applies the driver's embedded migrations to db.
type MigrateFunc func(db *sql.DB) error

type Store struct {
	db      *sql.DB
	d       Dialect
	migrate MigrateFunc
}

// New wraps an open database. The store owns db from here on.
func New(db *sql.DB, d Dialect, migrate MigrateFunc) *Store {
	return &Store{db: db, d: d, migrate: migrate}
}

// DB exposes the underlying pool, mainly for driver tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Dialect() Dialect { return s.d }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Backup(ctx context.Context, dest string) error {
	if s.d.BackupStatement == "" {
		return store.ErrUnsupported
	}
	_, err := s.q().exec(ctx, s.d.BackupStatement, dest)
	return err
}

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(s.db)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx, q: querier{db: tx, d: s.d}}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) q() querier { return querier{db: s.db, d: s.d} }

func (s *Store) Users() store.Users               { return &usersRepo{q: s.q()} }
func (s *Store) Patients() store.Patients         { return &patientsRepo{q: s.q()} }
func (s *Store) Categories() store.Categories     { return &categoriesRepo{q: s.q()} }
func (s *Store) Appointments() store.Appointments { return &appointmentsRepo{q: s.q()} }

type txStore struct {
	tx *sql.Tx
	q  querier
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // outer DB stays open

// Ping is a no-op inside a transaction; the connection is already held.
func (t *txStore) Ping(ctx context.Context) error { return nil }

func (t *txStore) ApplyMigrations() error { return nil } // migrations run before any tx

func (t *txStore) Backup(ctx context.Context, dest string) error { return sql.ErrTxDone }

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users               { return &usersRepo{q: t.q} }
func (t *txStore) Patients() store.Patients         { return &patientsRepo{q: t.q} }
func (t *txStore) Categories() store.Categories     { return &categoriesRepo{q: t.q} }
func (t *txStore) Appointments() store.Appointments { return &appointmentsRepo{q: t.q} }

// scanner is the common surface of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// escapeLike escapes the LIKE wildcards so user input matches literally.
// Queries pair it with ESCAPE '\'.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

// utc normalises timestamps before they are written so both engines store
// the same representation.
func utc(t time.Time) time.Time { return t.UTC() }
