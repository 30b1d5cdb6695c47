// Package migrations embeds the SQLite schema for the sqlite registry
// backend. Importing it registers the files with the database package.
package migrations

import (
	"embed"

	"github.com/nerrad567/presence-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
