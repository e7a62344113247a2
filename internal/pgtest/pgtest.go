// Package pgtest spins up throwaway Postgres databases for tests that
// exercise real SQL. Tests using it skip unless TEST_DATABASE_URL points
// at a reachable server the suite may create databases on.
package pgtest

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	pg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// NewDB creates a uniquely named database, applies the repo migrations
// and returns a connection to it. The database is dropped on cleanup.
func NewDB(t *testing.T) *sqlx.DB {
	t.Helper()

	baseURL := os.Getenv("TEST_DATABASE_URL")
	if baseURL == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping database test")
	}

	admin, err := sqlx.Connect("postgres", baseURL)
	if err != nil {
		t.Fatalf("connect admin db: %v", err)
	}

	var rnd [6]byte
	if _, err := rand.Read(rnd[:]); err != nil {
		admin.Close()
		t.Fatalf("random db suffix: %v", err)
	}
	dbName := fmt.Sprintf("stakearena_test_%s", hex.EncodeToString(rnd[:]))

	if _, err := admin.Exec(fmt.Sprintf(`CREATE DATABASE "%s" WITH TEMPLATE template0 ENCODING 'UTF8'`, dbName)); err != nil {
		admin.Close()
		t.Fatalf("create test database: %v", err)
	}

	testURL, err := replaceDBName(baseURL, dbName)
	if err != nil {
		admin.Close()
		t.Fatalf("build test dsn: %v", err)
	}

	db, err := sqlx.Connect("postgres", testURL)
	if err != nil {
		admin.Close()
		t.Fatalf("connect test db: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
		if _, err := admin.Exec(fmt.Sprintf(`DROP DATABASE IF EXISTS "%s" WITH (FORCE)`, dbName)); err != nil {
			t.Logf("drop test database %s: %v", dbName, err)
		}
		admin.Close()
	})

	applyMigrations(t, db)
	return db
}

func applyMigrations(t *testing.T, db *sqlx.DB) {
	t.Helper()

	driver, err := pg.WithInstance(db.DB, &pg.Config{})
	if err != nil {
		t.Fatalf("migrate driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsDir(t), "postgres", driver)
	if err != nil {
		t.Fatalf("migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
}

// migrationsDir resolves the repo's migrations directory relative to this
// file so tests pass regardless of the working directory.
func migrationsDir(t *testing.T) string {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot resolve migrations path")
	}
	dir := filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
	abs, err := filepath.Abs(dir)
	if err != nil {
		t.Fatalf("abs migrations path: %v", err)
	}
	return abs
}

func replaceDBName(dsn, dbName string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	u.Path = "/" + dbName
	return u.String(), nil
}
