// Package migrations embeds the SQLite schema migrations for the core
// engine store.
package migrations

import "embed"

// FS contains the embedded SQLite migrations.
//
//go:embed *.sql
var FS embed.FS
