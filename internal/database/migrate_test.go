package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func testMigrations(fsys fstest.MapFS, funcs map[string]MigrationFunc) Migrations {
	return Migrations{
		FS:          fsys,
		Dir:         "migrations",
		Funcs:       funcs,
		CreateTable: "CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)",
		Placeholder: "?",
	}
}

func openMigrationDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrations_OrdersFilesAndFuncs(t *testing.T) {
	ctx := context.Background()
	db := openMigrationDB(t)

	var order []string
	m := testMigrations(fstest.MapFS{
		"migrations/003_index.sql": {Data: []byte("CREATE INDEX t_name ON t(name);")},
		"migrations/001_table.sql": {Data: []byte("CREATE TABLE t (name TEXT);")},
		"migrations/README.md":     {Data: []byte("not a migration")},
	}, map[string]MigrationFunc{
		"002_seed": func(ctx context.Context, tx *sql.Tx) error {
			order = append(order, "002_seed")
			_, err := tx.ExecContext(ctx, "INSERT INTO t (name) VALUES ('seed')")
			return err
		},
	})

	ran, err := m.Migrate(ctx, db)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	want := []string{"001_table.sql", "002_seed", "003_index.sql"}
	if !slices.Equal(ran, want) {
		t.Errorf("expected applied %v, got %v", want, ran)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if !slices.Equal(applied, want) {
		t.Errorf("expected recorded %v, got %v", want, applied)
	}

	ran, err = m.Migrate(ctx, db)
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if len(ran) != 0 {
		t.Errorf("expected nothing to run twice, got %v", ran)
	}
	if len(order) != 1 {
		t.Errorf("expected Go step to run once, ran %d times", len(order))
	}
}

func TestMigrations_FailedStepIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	db := openMigrationDB(t)

	boom := errors.New("boom")
	m := testMigrations(fstest.MapFS{
		"migrations/001_table.sql": {Data: []byte("CREATE TABLE t (name TEXT);")},
	}, map[string]MigrationFunc{
		"002_fail": func(ctx context.Context, tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, "INSERT INTO t (name) VALUES ('partial')"); err != nil {
				return err
			}
			return boom
		},
	})

	ran, err := m.Migrate(ctx, db)
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if !slices.Equal(ran, []string{"001_table.sql"}) {
		t.Errorf("unexpected applied steps %v", ran)
	}

	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM t").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected failed step to roll back, found %d rows", count)
	}

	applied, err := AppliedMigrations(ctx, db)
	if err != nil {
		t.Fatalf("AppliedMigrations() error = %v", err)
	}
	if slices.Contains(applied, "002_fail") {
		t.Error("failed step must not be recorded")
	}
}
