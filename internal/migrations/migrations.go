// Package migrations embeds the goose migrations for both store dialects.
package migrations

import "embed"

// Migrations holds sqlite/*.sql and postgres/*.sql.
//
//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

// Dir returns the directory inside Migrations for a goose dialect name.
func Dir(gooseDialect string) string {
	if gooseDialect == "pgx" || gooseDialect == "postgres" {
		return "postgres"
	}
	return "sqlite"
}
