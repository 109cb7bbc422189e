// Package database provides the SQLite store used for persistent counters.
//
// The database is a single file opened with WAL mode and a busy timeout so
// the API can read counters while the stats consumer writes them. Schema
// changes are plain SQL files applied in filename order:
//
//	20261014_120000_counters.up.sql
//	20261014_120000_counters.down.sql
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
