// Package migrations embeds the SQL migration files for the sqlite
// vector store.
package migrations

import "embed"

// FS holds the *.up.sql migration files, applied in version order.
//
//go:embed *.up.sql
var FS embed.FS
