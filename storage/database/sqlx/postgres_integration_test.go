//go:build integration

package sqlxrepos_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/storage/database"
	"github.com/trezcool/masomo-lms/testutil"
)

var (
	pgOnce      sync.Once
	pgConf      *core.Config
	pgErr       error
	pgContainer tc.Container
)

func init() {
	openDB = openPostgres
}

func TestMain(m *testing.M) {
	code := m.Run()
	if pgContainer != nil {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			fmt.Printf("terminating postgres: %v\n", err)
		}
	}
	os.Exit(code)
}

// openPostgres runs every repository test against a throwaway Postgres, reset between tests.
func openPostgres(t *testing.T) *sqlx.DB {
	t.Helper()
	pgOnce.Do(func() { pgConf, pgErr = startPostgres(context.Background()) })
	if pgErr != nil {
		if strings.Contains(pgErr.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", pgErr)
		}
		t.Fatalf("starting postgres: %v", pgErr)
	}

	db, err := database.Open(pgConf)
	if err != nil {
		t.Fatalf("opening postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.RunMigrations(db, "reset"); err != nil {
		t.Fatalf("resetting postgres: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("migrating postgres: %v", err)
	}
	return db
}

func startPostgres(ctx context.Context) (*core.Config, error) {
	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		Env:          map[string]string{"POSTGRES_USER": "masomo", "POSTGRES_PASSWORD": "masomo", "POSTGRES_DB": "masomo"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}
	pgContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		return nil, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, err
	}

	conf := testutil.Config()
	conf.Database = core.DatabaseConfig{
		Engine:     database.EnginePostgres,
		Host:       host,
		Port:       port.Port(),
		Name:       "masomo",
		User:       "masomo",
		Password:   "masomo",
		DisableTLS: true,
	}
	return conf, nil
}
