// Package database provides the SQLite connection used by the sqlite
// registry backend.
//
// This package manages:
//   - Opening the database file with WAL mode and a busy timeout
//   - Versioned schema migrations read from an fs.FS (embedded by the
//     migrations package)
//   - Health checks for the metrics endpoint
//
// The database file is created with 0600 permissions. All queries in the
// repositories use parameterised statements.
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
