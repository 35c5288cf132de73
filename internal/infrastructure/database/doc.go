// Package database opens the gateway's optional SQLite store and applies
// its schema migrations.
//
// The store only holds the command audit log (see package audit). It is
// disabled by default; enable it with database.enabled in config.yaml.
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
//
// Migrations are embedded .up.sql files applied in filename order. There
// are no down migrations; schema changes are additive.
package database
