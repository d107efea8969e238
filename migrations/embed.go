// Package migrations embeds the versioned SQL schema applied by internal/migration.
package migrations

import "embed"

// FS holds the golang-migrate style NNNNNN_name.{up,down}.sql files.
//
//go:embed *.sql
var FS embed.FS
