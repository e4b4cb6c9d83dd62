package migrations

import "embed"

// FS contains embedded SQLite migrations for the failure index.
//
//go:embed *.sql
var FS embed.FS
