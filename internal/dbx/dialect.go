package dbx

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Dialect identifies the SQL flavour behind a connection.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

// DialectForDriver maps a database/sql driver name to its Dialect.
func DialectForDriver(driver string) (Dialect, bool) {
	switch driver {
	case "sqlite", "sqlite3":
		return SQLite, true
	case "pgx", "postgres":
		return Postgres, true
	}
	return "", false
}

// GooseDialect is the name goose.SetDialect expects.
func (d Dialect) GooseDialect() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite3"
}

// Rebind rewrites '?' placeholders to $1..$n for postgres. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if d != Postgres || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Bind wraps db so every query is rebound for d before it runs.
func Bind(d Dialect, db DBTX) DBTX {
	if d != Postgres {
		return db
	}
	if b, ok := db.(*boundDB); ok {
		return b
	}
	return &boundDB{d: d, db: db}
}

type boundDB struct {
	d  Dialect
	db DBTX
}

func (b *boundDB) ExecContext(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.d.Rebind(q), args...)
}

func (b *boundDB) QueryContext(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.d.Rebind(q), args...)
}

func (b *boundDB) QueryRowContext(ctx context.Context, q string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.d.Rebind(q), args...)
}

// IsUniqueViolation reports whether err is a unique-constraint failure from
// either backend.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
