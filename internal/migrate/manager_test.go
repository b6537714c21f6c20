package migrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func stubGoose(t *testing.T) {
	t.Helper()
	up, down, version, collect := gooseUpContext, gooseDownContext, gooseVersion, gooseCollect
	t.Cleanup(func() {
		gooseUpContext, gooseDownContext, gooseVersion, gooseCollect = up, down, version, collect
	})
}

func TestUpUsesConfiguredDir(t *testing.T) {
	stubGoose(t)
	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	mgr := NewManager(newDB(t), fstest.MapFS{}, "migrations")
	if err := mgr.Up(context.Background()); err != nil {
		t.Fatalf("Up error: %v", err)
	}
	if gotDir != "migrations" {
		t.Fatalf("expected dir migrations, got %q", gotDir)
	}
}

func TestUpWrapsFailure(t *testing.T) {
	stubGoose(t)
	boom := errors.New("boom")
	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom }

	err := NewManager(newDB(t), fstest.MapFS{}, "migrations").Up(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestDownDelegates(t *testing.T) {
	stubGoose(t)
	called := false
	gooseDownContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		called = true
		return nil
	}
	if err := NewManager(newDB(t), fstest.MapFS{}, "migrations").Down(context.Background()); err != nil {
		t.Fatalf("Down error: %v", err)
	}
	if !called {
		t.Fatal("expected goose down to run")
	}
}

func TestStatusListsAppliedMigrations(t *testing.T) {
	stubGoose(t)
	gooseVersion = func(context.Context, *sql.DB) (int64, error) { return 1, nil }
	gooseCollect = func(dir string, current, target int64) (goose.Migrations, error) {
		return goose.Migrations{
			{Version: 1, Source: "migrations/00001_identity.sql"},
			{Version: 2, Source: "migrations/00002_next.sql"},
		}, nil
	}
	applied, err := NewManager(newDB(t), fstest.MapFS{}, "migrations").Status(context.Background())
	if err != nil {
		t.Fatalf("Status error: %v", err)
	}
	if len(applied) != 1 || applied[0] != "00001_identity.sql" {
		t.Fatalf("unexpected status: %v", applied)
	}
}

func TestNilDatabaseIsRejected(t *testing.T) {
	if err := NewManager(nil, fstest.MapFS{}, "migrations").Up(context.Background()); err == nil {
		t.Fatal("expected error for nil db")
	}
}
