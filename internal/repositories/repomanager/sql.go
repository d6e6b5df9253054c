package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/srbio/internal/common"
	"github.com/dmitrijs2005/srbio/internal/dbx"
	"github.com/dmitrijs2005/srbio/internal/logging"
	"github.com/dmitrijs2005/srbio/internal/migrations"
	"github.com/dmitrijs2005/srbio/internal/repositories/admins"
	"github.com/dmitrijs2005/srbio/internal/repositories/attendance"
	"github.com/dmitrijs2005/srbio/internal/repositories/devices"
	"github.com/dmitrijs2005/srbio/internal/repositories/users"
)

var trackedTables = []string{"devices", "enrolled_users", "user_profiles", "attendance_events", "admins"}

// SQLRepositoryManager serves both sqlite and postgres.
type SQLRepositoryManager struct {
	db      *sql.DB
	driver  string
	dialect dbx.Dialect
	logger  logging.Logger
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Open connects with driver ("sqlite" or "pgx"), migrates the schema and
// reconciles columns.
func Open(ctx context.Context, driver, dsn string, logger logging.Logger) (*SQLRepositoryManager, error) {
	dialect, ok := dbx.DialectForDriver(driver)
	if !ok {
		return nil, fmt.Errorf("database driver %q: %w", driver, common.ErrorInvalidArgument)
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dialect == dbx.SQLite && isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	m := NewSQLRepositoryManager(db, driver, dialect, logger)
	if err := m.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := m.EnsureColumns(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return m, nil
}

// NewSQLRepositoryManager wraps an already opened database without
// migrating it.
func NewSQLRepositoryManager(db *sql.DB, driver string, dialect dbx.Dialect, logger logging.Logger) *SQLRepositoryManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SQLRepositoryManager{db: db, driver: driver, dialect: dialect, logger: logger.With("module", "store")}
}

func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func (m *SQLRepositoryManager) DB() *sql.DB          { return m.db }
func (m *SQLRepositoryManager) Dialect() dbx.Dialect { return m.dialect }

func (m *SQLRepositoryManager) Devices(db dbx.DBTX) devices.Repository {
	return devices.NewSQLRepository(dbx.Bind(m.dialect, db))
}

func (m *SQLRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewSQLRepository(dbx.Bind(m.dialect, db))
}

func (m *SQLRepositoryManager) Attendance(db dbx.DBTX) attendance.Repository {
	return attendance.NewSQLRepository(dbx.Bind(m.dialect, db))
}

func (m *SQLRepositoryManager) Admins(db dbx.DBTX) admins.Repository {
	return admins.NewSQLRepository(dbx.Bind(m.dialect, db))
}

// RunMigrations applies the embedded goose migrations for the dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, m.db, migrations.Dir(m.dialect.GooseDialect())); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (m *SQLRepositoryManager) Status(ctx context.Context) (*StoreStatus, error) {
	st := &StoreStatus{Driver: m.driver, Tables: make(map[string]int, len(trackedTables))}
	for _, t := range trackedTables {
		var n int
		if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", t, err)
		}
		st.Tables[t] = n
	}

	if m.dialect == dbx.SQLite {
		var pages, pageSize int64
		if err := m.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pages); err != nil {
			return nil, fmt.Errorf("failed to read page count: %w", err)
		}
		if err := m.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
			return nil, fmt.Errorf("failed to read page size: %w", err)
		}
		st.SizeBytes = pages * pageSize
	} else {
		if err := m.db.QueryRowContext(ctx, `SELECT pg_database_size(current_database())`).Scan(&st.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to read database size: %w", err)
		}
	}
	return st, nil
}

// Optimize reclaims space and refreshes planner statistics.
func (m *SQLRepositoryManager) Optimize(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM", "ANALYZE"} {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to %s: %w", strings.ToLower(stmt), err)
		}
	}
	m.logger.Info(ctx, "store optimized", "driver", m.driver)
	return nil
}

// Snapshot writes a consistent copy of a sqlite store to path. Postgres
// deployments back up with their own tooling.
func (m *SQLRepositoryManager) Snapshot(ctx context.Context, path string) error {
	if m.dialect != dbx.SQLite {
		return fmt.Errorf("snapshot on %s: %w", m.driver, common.ErrorUnsupported)
	}
	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, path); err != nil {
		return fmt.Errorf("failed to snapshot store: %w", err)
	}
	return nil
}

func (m *SQLRepositoryManager) Close() error {
	return m.db.Close()
}
