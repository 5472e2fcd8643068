// Package database provides SQLite storage for SkyBridge Core.
//
// This package manages:
//   - Database connection lifecycle with WAL mode
//   - Schema migrations (embedded SQL files)
//   - Health checks for monitoring
//
// # Why SQLite
//
// SkyBridge runs as a single ground-station process next to the operator.
// Dashboard state is small (per-device card state, the active gateway
// serial) and written infrequently, so an embedded database with a single
// writer is the right fit. Flight telemetry goes to InfluxDB, not here.
//
// # Migrations
//
// Schema changes are embedded SQL files registered via MigrationsFS.
// Filenames follow YYYYMMDD_HHMMSS_description.up.sql with an optional
// matching .down.sql. Each migration runs in its own transaction, so a
// failed migration leaves earlier ones committed and can be retried.
//
// # Usage
//
//	db, err := database.Open(database.Config{
//	    Path:        "./data/skybridge.db",
//	    WALMode:     true,
//	    BusyTimeout: 5,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
