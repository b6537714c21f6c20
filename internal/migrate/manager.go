package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sync"

	"github.com/pressly/goose/v3"
)

const defaultVersionTable = "goose_db_version"

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// Seams for tests.
var (
	gooseUpContext   = goose.UpContext
	gooseDownContext = goose.DownContext
	gooseVersion     = goose.GetDBVersionContext
	gooseCollect     = goose.CollectMigrations
)

// Manager applies embedded goose migrations.
type Manager struct {
	db    *sql.DB
	fsys  fs.FS
	dir   string
	table string
}

// Option configures Manager.
type Option func(*Manager)

// WithVersionTable overrides the goose bookkeeping table.
func WithVersionTable(name string) Option {
	return func(m *Manager) {
		if name != "" {
			m.table = name
		}
	}
}

// NewManager constructs a Manager reading migrations from dir inside fsys.
func NewManager(db *sql.DB, fsys fs.FS, dir string, opts ...Option) *Manager {
	m := &Manager{
		db:    db,
		fsys:  fsys,
		dir:   dir,
		table: defaultVersionTable,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) configure() error {
	if m.db == nil {
		return errors.New("database connection unavailable")
	}
	goose.SetBaseFS(m.fsys)
	goose.SetTableName(m.table)
	return goose.SetDialect("pgx")
}

// Up applies all pending migrations.
func (m *Manager) Up(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.configure(); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent applied migration.
func (m *Manager) Down(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.configure(); err != nil {
		return err
	}
	if err := gooseDownContext(ctx, m.db, m.dir); err != nil {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

// Status returns the applied migrations in order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	if err := m.configure(); err != nil {
		return nil, err
	}
	current, err := gooseVersion(ctx, m.db)
	if err != nil {
		return nil, fmt.Errorf("read schema version: %w", err)
	}
	all, err := gooseCollect(m.dir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}
	var applied []string
	for _, mig := range all {
		if mig.Version <= current {
			applied = append(applied, path.Base(mig.Source))
		}
	}
	return applied, nil
}
