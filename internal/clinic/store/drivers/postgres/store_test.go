package postgres_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/clinic/internal/clinic/store"
	"github.com/aussiebroadwan/clinic/internal/clinic/store/drivers/postgres"
	"github.com/aussiebroadwan/clinic/internal/clinic/store/storetest"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	pgUser     = "clinic"
	pgPassword = "clinic"
)

// startPostgres runs a throwaway postgres container and returns the host:port
// it listens on.
func startPostgres(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container test skipped in -short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     pgUser,
			"POSTGRES_PASSWORD": pgPassword,
			"POSTGRES_DB":       "clinic",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("%s:%s", host, port.Port())
}

func dsn(addr, database string) string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", pgUser, pgPassword, addr, database)
}

func TestStoreConformance(t *testing.T) {
	addr := startPostgres(t)

	admin, err := sql.Open("pgx", dsn(addr, "clinic"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = admin.Close() })

	// Every subtest gets its own database so the suite starts empty.
	var seq atomic.Int32
	open := func(t *testing.T) store.Store {
		t.Helper()
		ctx := context.Background()

		name := fmt.Sprintf("clinic_test_%d", seq.Add(1))
		_, err := admin.ExecContext(ctx, "CREATE DATABASE "+name)
		require.NoError(t, err)

		s, err := postgres.NewStore(ctx, dsn(addr, name))
		require.NoError(t, err)
		require.NoError(t, s.ApplyMigrations())
		require.NoError(t, s.ApplyMigrations(), "second run is a no-op")
		t.Cleanup(func() { _ = s.Close() })
		return s
	}

	storetest.Run(t, open)

	t.Run("Backup", func(t *testing.T) {
		s := open(t)
		err := s.Backup(context.Background(), filepath.Join(t.TempDir(), "copy.db"))
		require.ErrorIs(t, err, store.ErrUnsupported)
	})
}
