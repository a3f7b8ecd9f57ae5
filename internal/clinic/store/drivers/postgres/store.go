package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/store/sqlstore"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Dialect is the postgres flavour of the shared SQL repositories.
var Dialect = sqlstore.Dialect{
	Name:                  "postgres",
	DollarPlaceholders:    true,
	IsUniqueViolation:     func(err error) bool { return pgCode(err) == codeUniqueViolation },
	IsForeignKeyViolation: func(err error) bool { return pgCode(err) == codeForeignKeyViolation },
}

// NewStore connects to postgres through the pgx database/sql driver.
// dsn is a URL or keyword/value connection string.
func NewStore(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqlstore.New(db, Dialect, migrator(dsn)), nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
