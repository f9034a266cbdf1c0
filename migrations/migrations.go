// Package migrations embeds the listingkeeper schema migrations so the
// binary can migrate a database without shipping SQL files alongside it.
package migrations

import "embed"

// SqliteMigrations holds sqlite/NNN_name.sql, applied in filename order.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

// PostgresMigrations holds postgres/NNN_name.sql, applied in filename order.
//
//go:embed postgres/*.sql
var PostgresMigrations embed.FS
