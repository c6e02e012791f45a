// Package testutil holds the fixtures shared by the package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/user"
	"github.com/trezcool/masomo-lms/storage/database"
)

const SecretKey = "test-secret-key"

// Config returns the configuration tests run with: in memory storage, local feed, no grace period.
func Config() *core.Config {
	return &core.Config{
		Env:                       "TEST",
		AppName:                   "Masomo",
		TestMode:                  true,
		SecretKey:                 SecretKey,
		FrontendBaseURL:           "http://localhost:3000",
		DefaultFromEmail:          "Masomo <noreply@localhost>",
		JWTExpirationDelta:        time.Hour,
		JWTRefreshExpirationDelta: 10 * time.Minute,
		PasswordResetTimeoutDelta: time.Hour,
		Server: core.ServerConfig{
			Host:           "localhost",
			DisableReqLogs: true,
		},
		Database: core.DatabaseConfig{Engine: database.EngineMemory},
		Quiz: core.QuizConfig{
			DraftStore:    "db",
			SweepInterval: time.Second,
		},
		Feed: core.FeedConfig{Backend: "local"},
	}
}

type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

// OpenSQLite returns a migrated in memory SQLite database, closed when the test ends.
func OpenSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := Config()
	conf.Database = core.DatabaseConfig{Engine: database.EngineSQLite, Name: ":memory:"}

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("OpenSQLite() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err = database.Migrate(db); err != nil {
		t.Fatalf("OpenSQLite() failed to migrate: %v", err)
	}
	return db
}

// FreezeTime makes core.Now return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) *time.Time {
	t.Helper()
	clock := now.UTC()
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return clock }
	t.Cleanup(func() { core.NowFunc = orig })
	return &clock
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		ID:        core.NewID(),
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	} else {
		usr.PasswordHash = []byte{}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
