// Package migrations embeds the gateway's SQL schema files into the binary.
package migrations

import "embed"

// FS holds the *.up.sql files, applied by database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
