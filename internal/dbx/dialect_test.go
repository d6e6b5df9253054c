package dbx

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialect_Rebind(t *testing.T) {
	tests := []struct {
		name string
		d    Dialect
		in   string
		want string
	}{
		{"sqlite untouched", SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{"postgres numbered", Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{"quoted question mark", Postgres, "SELECT '?' , x FROM t WHERE a = ?", "SELECT '?' , x FROM t WHERE a = $1"},
		{"no placeholders", Postgres, "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.Rebind(tt.in))
		})
	}
}

func TestDialectForDriver(t *testing.T) {
	d, ok := DialectForDriver("pgx")
	require.True(t, ok)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "pgx", d.GooseDialect())

	d, ok = DialectForDriver("sqlite")
	require.True(t, ok)
	assert.Equal(t, SQLite, d)
	assert.Equal(t, "sqlite3", d.GooseDialect())

	_, ok = DialectForDriver("mysql")
	assert.False(t, ok)
}

func TestBind_RebindsForPostgres(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	bound := Bind(Postgres, db)
	assert.Same(t, bound, Bind(Postgres, bound))

	mock.ExpectExec("UPDATE devices SET name = $1 WHERE id = $2").
		WithArgs("lobby", "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT name FROM devices WHERE id = $1").
		WithArgs("d1").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("lobby"))

	_, err = bound.ExecContext(context.Background(), "UPDATE devices SET name = ? WHERE id = ?", "lobby", "d1")
	require.NoError(t, err)

	var name string
	require.NoError(t, bound.QueryRowContext(context.Background(), "SELECT name FROM devices WHERE id = ?", "d1").Scan(&name))
	assert.Equal(t, "lobby", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBind_SQLitePassthrough(t *testing.T) {
	db, _, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	assert.Same(t, DBTX(db), Bind(SQLite, db))
}

func TestIsUniqueViolation_Postgres(t *testing.T) {
	err := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
}
