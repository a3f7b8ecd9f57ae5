package postgres

import (
	"database/sql"
	"errors"

	"github.com/aussiebroadwan/clinic/internal/clinic/store/drivers/postgres/migrations"
	"github.com/aussiebroadwan/clinic/internal/clinic/store/sqlstore"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrator applies the embedded migrations over a short-lived pool of its
// own. The pgx migrate driver pins a connection for its advisory lock and
// closes the *sql.DB it was given, so it must not share the store's pool.
func migrator(dsn string) sqlstore.MigrateFunc {
	return func(*sql.DB) error {
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return err
		}

		driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
		if err != nil {
			_ = db.Close()
			return err
		}

		migrationsFilesystem, err := iofs.New(migrations.Migrations, ".")
		if err != nil {
			_ = driver.Close()
			return err
		}

		instance, err := migrate.NewWithInstance("iofs", migrationsFilesystem, "", driver)
		if err != nil {
			_ = driver.Close()
			return err
		}
		defer func() {
			_, _ = instance.Close()
		}()

		err = instance.Up()
		if err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}

		return nil
	}
}
