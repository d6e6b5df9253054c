package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/srbio/internal/dbx"
)

type column struct {
	table, name string
	sqliteDef   string
	postgresDef string
}

// knownColumns lists every column the code reads. A store created by an
// older build gets the missing ones added; nothing is ever dropped.
var knownColumns = []column{
	{"devices", "port", "INTEGER NOT NULL DEFAULT 4370", "INTEGER NOT NULL DEFAULT 4370"},
	{"devices", "status", "TEXT NOT NULL DEFAULT 'offline'", "TEXT NOT NULL DEFAULT 'offline'"},
	{"devices", "last_seen_at", "INTEGER NULL", "BIGINT NULL"},
	{"devices", "mac_address", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"devices", "model", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"devices", "firmware", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"devices", "serial_number", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"enrolled_users", "role", "TEXT NOT NULL DEFAULT 'user'", "TEXT NOT NULL DEFAULT 'user'"},
	{"enrolled_users", "credential", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"enrolled_users", "card_number", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"enrolled_users", "internal_slot", "INTEGER NOT NULL DEFAULT 0", "INTEGER NOT NULL DEFAULT 0"},
	{"user_profiles", "address", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"user_profiles", "city", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"user_profiles", "province", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"user_profiles", "tax_id", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"user_profiles", "phone", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"user_profiles", "email", "TEXT NOT NULL DEFAULT ''", "TEXT NOT NULL DEFAULT ''"},
	{"attendance_events", "verification_method", "INTEGER NOT NULL DEFAULT 0", "INTEGER NOT NULL DEFAULT 0"},
	{"attendance_events", "event_kind", "INTEGER NOT NULL DEFAULT 0", "INTEGER NOT NULL DEFAULT 0"},
}

// EnsureColumns adds any knownColumns missing from the live schema.
func (m *SQLRepositoryManager) EnsureColumns(ctx context.Context) error {
	existing := map[string]map[string]struct{}{}

	for _, c := range knownColumns {
		cols, ok := existing[c.table]
		if !ok {
			var err error
			cols, err = m.tableColumns(ctx, c.table)
			if err != nil {
				return err
			}
			existing[c.table] = cols
		}
		if _, ok := cols[c.name]; ok {
			continue
		}

		def := c.sqliteDef
		if m.dialect == dbx.Postgres {
			def = c.postgresDef
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", c.table, c.name, def)
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to add column %s.%s: %w", c.table, c.name, err)
		}
		cols[c.name] = struct{}{}
		m.logger.Info(ctx, "added missing column", "table", c.table, "column", c.name)
	}
	return nil
}

func (m *SQLRepositoryManager) tableColumns(ctx context.Context, table string) (map[string]struct{}, error) {
	out := map[string]struct{}{}

	if m.dialect == dbx.Postgres {
		rows, err := m.db.QueryContext(ctx,
			`SELECT column_name FROM information_schema.columns WHERE table_schema = current_schema() AND table_name = $1`, table)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		defer rows.Close()
		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
			}
			out[name] = struct{}{}
		}
		return out, rows.Err()
	}

	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, typ        string
			dflt             any
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to inspect %s: %w", table, err)
		}
		out[name] = struct{}{}
	}
	return out, rows.Err()
}
