// Package migrations embeds the PostgreSQL schema so the binaries carry it.
package migrations

import "embed"

// FS holds the numbered up/down SQL files
//
//go:embed *.sql
var FS embed.FS
